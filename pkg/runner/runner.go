package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/lendflow/internal/logging"
)

// DefaultGreeting opens a new conversation.
const DefaultGreeting = "Hello! I can help you with a personal loan. Tell me how much you need to get started."

// Commands understood by the runner itself rather than the engine.
const (
	CommandStatus = "/status"
	CommandID     = "/id"
)

// Runner handles the conversation loop using the provided IO.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// SessionID resumes a conversation. Empty starts a new one.
	SessionID string

	// Greeting is shown when a new conversation starts.
	Greeting string
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger:   logging.NewNop(),
		Greeting: DefaultGreeting,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives conv until the input ends, the customer types "exit" or "quit", or ctx is
// canceled. It returns nil on a normal end.
func (r *Runner) Run(ctx context.Context, conv Conversation) error {
	handler := r.resolveHandler()

	id, err := r.resolveSession(ctx, conv, handler)
	if err != nil {
		return err
	}

	signals := NewSignalManager(ctx)
	defer signals.Stop()

	for {
		text, err := handler.Input(signals.Context())
		if err != nil {
			signals.CheckRace()
			if signals.Context().Err() != nil {
				r.Logger.Debug("runner interrupted", "conversation_id", id)
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		switch strings.ToLower(text) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case CommandID:
			_ = handler.SystemOutput(ctx, "Conversation "+id)
			continue
		case CommandStatus:
			st, err := conv.Status(ctx, id)
			if err != nil {
				return fmt.Errorf("status error: %w", err)
			}
			_ = handler.SystemOutput(ctx, formatStatus(st.EligibilityStatus, string(st.CurrentStage), st.RiskCategory))
			continue
		}

		reply, err := conv.Submit(signals.Context(), id, text)
		if err != nil {
			if signals.Context().Err() != nil {
				return nil
			}
			if errors.Is(err, ErrInputTooLarge) || errors.Is(err, ErrInvalidUTF8) {
				_ = handler.SystemOutput(ctx, fmt.Sprintf("Error: %v. Please try again.", err))
				continue
			}
			return fmt.Errorf("submit error: %w", err)
		}
		if err := handler.Output(signals.Context(), reply); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		r.Logger.Debug("turn rendered", "conversation_id", id, "stage", reply.Stage)
	}
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}

func (r *Runner) resolveSession(ctx context.Context, conv Conversation, handler IOHandler) (string, error) {
	if r.SessionID != "" {
		_ = handler.SystemOutput(ctx, "Resuming conversation "+r.SessionID)
		return r.SessionID, nil
	}
	s, err := conv.Start(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to start conversation: %w", err)
	}
	_ = handler.SystemOutput(ctx, "Conversation "+s.ID)
	if r.Greeting != "" {
		_ = handler.SystemOutput(ctx, r.Greeting)
	}
	return s.ID, nil
}

func formatStatus(eligibility, stage, risk string) string {
	return fmt.Sprintf("Stage: %s | Eligibility: %s | Risk: %s", stage, eligibility, risk)
}

package runner

import (
	"context"

	"github.com/aretw0/lendflow/pkg/domain"
)

// IOHandler defines the strategy for interacting with the customer.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a reply.
	Output(ctx context.Context, reply *domain.Reply) error

	// Input reads the next message.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (session id, status, errors).
	// This is distinct from conversation content.
	SystemOutput(ctx context.Context, msg string) error
}

// Conversation is the engine surface the runner drives.
type Conversation interface {
	Start(ctx context.Context) (*domain.Session, error)
	Submit(ctx context.Context, conversationID, message string) (*domain.Reply, error)
	Status(ctx context.Context, conversationID string) (domain.LoanStatus, error)
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

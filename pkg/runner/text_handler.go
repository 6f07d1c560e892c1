package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lendflow/pkg/domain"
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	// Pace enables the suggested delay between cascaded responses.
	Pace bool

	inputChan chan inputResult
	startOnce sync.Once
	sleep     func(ctx context.Context, d time.Duration)
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithPacing honors the progress hint of cascaded replies.
func WithPacing(pace bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.Pace = pace
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honor context cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			// Backoff for non-fatal errors to prevent CPU spikes on persistent failure
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// Output prints the reply. With pacing, cascaded responses appear one stage at a time.
func (h *TextHandler) Output(ctx context.Context, reply *domain.Reply) error {
	parts := []string{reply.Response}
	delay := time.Duration(0)
	if h.Pace && reply.Progress != nil && len(reply.Progress.Steps) > 0 {
		parts = strings.Split(reply.Response, "\n\n")
		delay = time.Duration(reply.Progress.SuggestedDelayMS) * time.Millisecond
	}

	for i, part := range parts {
		if i > 0 && delay > 0 {
			h.sleep(ctx, delay)
			if ctx.Err() != nil {
				return nil
			}
		}
		fmt.Fprintln(h.Writer, strings.TrimSpace(h.render(part)))
		if i < len(parts)-1 {
			fmt.Fprintln(h.Writer)
		}
	}

	if len(reply.Suggestions) > 0 {
		fmt.Fprintf(h.Writer, "\nTry: %s\n", strings.Join(reply.Suggestions, " · "))
	}
	return nil
}

func (h *TextHandler) render(msg string) string {
	if h.Renderer == nil {
		return msg
	}
	rendered, err := h.Renderer(msg)
	if err != nil {
		return msg
	}
	return rendered
}

// Input prompts and reads one sanitized line. Rejected input is reported and read again.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

// SystemOutput prints a bracketed meta-message.
func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

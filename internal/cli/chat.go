package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/lendflow"
	"github.com/aretw0/lendflow/internal/presentation/tui"
	"github.com/aretw0/lendflow/pkg/runner"
	"golang.org/x/term"
)

// ChatOptions configures an interactive conversation.
type ChatOptions struct {
	// ConversationID resumes a stored conversation. Empty starts a new one.
	ConversationID string
	// JSON switches to JSON lines IO for piping into other tools.
	JSON bool
	// Quiet hides the banner.
	Quiet bool

	In  io.Reader
	Out io.Writer
}

// RunChat runs one conversation on the terminal until the customer leaves.
func RunChat(ctx context.Context, engine *lendflow.Engine, logger *slog.Logger, opts ChatOptions) error {
	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(in, out)
	} else {
		interactive := isTerminal(out)
		handlerOpts := []runner.TextHandlerOption{runner.WithPacing(interactive)}
		if interactive {
			handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(tui.NewRenderer(terminalWidth(out))))
		}
		handler = runner.NewTextHandler(in, out, handlerOpts...)
		if !opts.Quiet {
			tui.PrintBanner(out, lendflow.Version)
		}
	}

	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithInputHandler(handler),
		runner.WithSessionID(opts.ConversationID),
	)
	err := handleExecutionError(r.Run(ctx, engine))
	if err == nil && !opts.JSON && !opts.Quiet {
		printSystemMessage(out, "Goodbye.")
	}
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

/*
Package runner implements the interactive conversation loop used by the lendflow CLI.

It bridges a Conversation (usually *lendflow.Engine) and the terminal: it reads customer
messages through a pluggable IOHandler, submits them, and renders each reply. Input is
sanitized before it reaches the engine.

# Key Components

  - Runner: reads, submits and renders until EOF, "exit" or an interrupt.
  - IOHandler: decouples how messages are read and replies are shown.
  - TextHandler: interactive terminal mode, pacing cascaded replies.
  - JSONHandler: JSON-Lines mode for scripted clients.

# Usage

	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)))
	err := r.Run(ctx, engine)
*/
package runner

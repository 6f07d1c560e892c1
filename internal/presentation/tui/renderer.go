package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a markdown to ANSI renderer for replies.
// If glamour cannot be initialized, replies are passed through unchanged.
func NewRenderer(width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(s string) (string, error) { return s, nil }
	}
	return r.Render
}

package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	` _                _  __ _`,
	`| | ___ _ __   __| |/ _| | _____      __`,
	`| |/ _ \ '_ \ / _' | |_| |/ _ \ \ /\ / /`,
	`| |  __/ | | | (_| |  _| | (_) \ V  V /`,
	`|_|\___|_| |_|\__,_|_| |_|\___/ \_/\_/`,
}

// Teal to green, one color per line.
var bannerColors = []string{"#0d9488", "#14b8a6", "#10b981", "#22c55e", "#84cc16"}

// PrintBanner writes the lendflow banner followed by the version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i])))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, out.String("  personal loans, one message at a time  v"+v).Faint())
	}
	fmt.Fprintln(w)
}

package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"    __ _  __ _  ___ _ __   ___ _   _", "#818cf8"},
	{"   / _` |/ _` |/ _ \\ '_ \\ / __| | | |", "#a78bfa"},
	{"  | (_| | (_| |  __/ | | | (__| |_| |", "#c084fc"},
	{"   \\__,_|\\__, |\\___|_| |_|\\___|\\__, |", "#e879f9"},
	{"         |___/                 |___/", "#f472b6"},
}

// PrintBanner writes the agency banner, colored when out supports it.
func PrintBanner(out io.Writer, version string) {
	o := termenv.NewOutput(out)

	fmt.Fprintln(out)
	for _, l := range bannerLines {
		fmt.Fprintln(out, o.String(l.text).Foreground(o.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(out, o.String("  "+version).Faint())
	}
	fmt.Fprintln(out)
}

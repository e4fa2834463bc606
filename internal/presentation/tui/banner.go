package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the strata banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	colors := []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6"}
	lines := []string{
		"      _             _",
		"  ___| |_ _ __ __ _| |_ __ _",
		" / __| __| '__/ _` | __/ _` |",
		" \\__ \\ |_| | | (_| | || (_| |",
		" |___/\\__|_|  \\__,_|\\__\\__,_|",
	}
	fmt.Fprintln(w)
	for i, l := range lines {
		fmt.Fprintln(w, out.String(l).Foreground(out.Color(colors[i])))
	}
	fmt.Fprintln(w, out.String("  "+version).Faint())
	fmt.Fprintln(w)
}

// StepHeader writes a one-line heading announcing a job.
func StepHeader(w io.Writer, step int, job, dir string) {
	out := termenv.NewOutput(w)
	fmt.Fprintf(w, "%s %s %s\n",
		out.String(fmt.Sprintf("[%d]", step)).Bold().Foreground(out.Color("#a78bfa")),
		out.String(job).Bold(),
		out.String(dir).Faint(),
	)
}

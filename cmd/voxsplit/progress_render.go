package main

import (
	"fmt"
	"io"
	"time"

	"voxsplit/internal/progress"
)

// progressRenderer draws a single updating progress line on a terminal.
// Off-terminal it stays silent; the structured log stream carries progress.
type progressRenderer struct {
	out      io.Writer
	active   bool
	rendered bool
	lastLen  int
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	return &progressRenderer{out: out, active: stderrIsTerminal()}
}

func (r *progressRenderer) render(e progress.Event) {
	if !r.active {
		return
	}
	line := fmt.Sprintf("%s: %5.1f%% %s", e.Stage.Label(), e.Percent, e.Message)
	if e.KnownETA {
		line += fmt.Sprintf(" (eta %s", e.ETA.Round(time.Second))
		if e.KnownSpeed {
			line += fmt.Sprintf(", %.1fx", e.SpeedRatio)
		}
		line += ")"
	}
	pad := ""
	if len(line) < r.lastLen {
		pad = fmt.Sprintf("%*s", r.lastLen-len(line), "")
	}
	fmt.Fprintf(r.out, "\r%s%s", line, pad)
	r.lastLen = len(line)
	r.rendered = true
}

func (r *progressRenderer) finish() {
	if r.active && r.rendered {
		fmt.Fprintln(r.out)
	}
}

// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

var outputStyles = struct {
	Label   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}{
	Label:   lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
}

// Printer writes command results to stdout and problems to stderr.
//
// # Description
//
// Result lines keep a fixed "LABEL: fields" shape so scripts can parse them.
// Only the label is styled, and only when the stream is a terminal and
// NO_COLOR is unset; piped output is always plain text.
type Printer struct {
	out       io.Writer
	errOut    io.Writer
	styled    bool
	errStyled bool
}

// NewPrinter creates a Printer for the given streams.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{
		out:       out,
		errOut:    errOut,
		styled:    isTerminal(out),
		errStyled: isTerminal(errOut),
	}
}

// isTerminal reports whether w is a terminal that accepts color.
func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) render(style lipgloss.Style, styled bool, s string) string {
	if !styled {
		return s
	}
	return style.Render(s)
}

// Result prints "LABEL: <formatted>" on stdout.
func (p *Printer) Result(label, format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.render(outputStyles.Label, p.styled, label+":"), fmt.Sprintf(format, args...))
}

// Line prints an unlabeled line on stdout.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Banner prints a framing line such as "--- END CONTENTS ---".
func (p *Printer) Banner(format string, args ...any) {
	fmt.Fprintln(p.out, p.render(outputStyles.Muted, p.styled, fmt.Sprintf(format, args...)))
}

// Raw writes s to stdout unchanged.
func (p *Printer) Raw(s string) {
	fmt.Fprint(p.out, s)
}

// Warn prints a warning on stderr.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.errOut, "%s %s\n", p.render(outputStyles.Warning, p.errStyled, "Warning:"), fmt.Sprintf(format, args...))
}

// Error prints err on stderr.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.errOut, "%s %v\n", p.render(outputStyles.Error, p.errStyled, "Error:"), err)
}

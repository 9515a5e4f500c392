// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Prompter asks the user to confirm a destructive action.
type Prompter interface {
	// Confirm returns true only on an explicit yes.
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// NewPrompter picks a Prompter for the given input stream.
//
// # Description
//
// A terminal on in gets an interactive huh form. Any other reader gets a
// line prompter that reads one "y/N" answer, so piped input still works and
// an empty or closed stdin declines.
func NewPrompter(in io.Reader, out io.Writer) Prompter {
	if f, ok := in.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return &FormPrompter{in: in, out: out}
	}
	return &LinePrompter{reader: bufio.NewReader(in), out: out}
}

// =============================================================================
// FormPrompter
// =============================================================================

// FormPrompter renders a confirmation form on a terminal.
type FormPrompter struct {
	in  io.Reader
	out io.Writer
}

// Confirm shows a Yes/No form. Aborting the form (Ctrl+C) declines.
func (p *FormPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithInput(p.in).WithOutput(p.out)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// =============================================================================
// LinePrompter
// =============================================================================

// LinePrompter reads a single line answer.
type LinePrompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewLinePrompter creates a LinePrompter over explicit streams.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{reader: bufio.NewReader(in), out: out}
}

// Confirm prints "<prompt> [y/N]: " and accepts y or yes in any case.
// EOF declines.
func (p *LinePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)

	line, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// =============================================================================
// AutoApprove
// =============================================================================

// AutoApprove confirms everything. Used for --yes.
type AutoApprove struct{}

// Confirm always returns true.
func (AutoApprove) Confirm(context.Context, string) (bool, error) {
	return true, nil
}

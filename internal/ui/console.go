// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package ui prints user-facing status lines. Output is coloured only when
// it goes to a terminal.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Console writes tagged status lines to one writer.
type Console struct {
	out   io.Writer
	color bool

	infoStyle    lipgloss.Style
	successStyle lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
	headerStyle  lipgloss.Style
	labelStyle   lipgloss.Style
}

// New returns a console writing to out.
func New(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:          out,
		color:        isTerminal(out),
		infoStyle:    r.NewStyle().Foreground(lipgloss.Color("39")),
		successStyle: r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		warningStyle: r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		errorStyle:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		headerStyle:  r.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		labelStyle:   r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

var (
	// Stdout is the console for normal output.
	Stdout = New(os.Stdout)

	// Stderr is the console for errors.
	Stderr = New(os.Stderr)
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Console) render(s lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return s.Render(text)
}

func (c *Console) line(s lipgloss.Style, tag, format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, "%s %s\n", c.render(s, tag), fmt.Sprintf(format, args...))
}

// Info prints an informational line.
func (c *Console) Info(format string, args ...any) {
	c.line(c.infoStyle, "[INFO]", format, args...)
}

// Success prints a completion line.
func (c *Console) Success(format string, args ...any) {
	c.line(c.successStyle, "[SUCCESS]", format, args...)
}

// Warning prints a warning line.
func (c *Console) Warning(format string, args ...any) {
	c.line(c.warningStyle, "[WARNING]", format, args...)
}

// Error prints an error line.
func (c *Console) Error(format string, args ...any) {
	c.line(c.errorStyle, "[ERROR]", format, args...)
}

// Header prints a section title preceded by a blank line.
func (c *Console) Header(title string) {
	_, _ = fmt.Fprintf(c.out, "\n%s\n", c.render(c.headerStyle, "=== "+title+" ==="))
}

// Field prints an indented "label: value" pair.
func (c *Console) Field(label string, value any) {
	_, _ = fmt.Fprintf(c.out, "  %s %v\n", c.render(c.labelStyle, label+":"), value)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux renders CLI output for the shop counter.
//
// # Modes
//
//   - ModeRich: colours, icons and boxes. Used on a terminal.
//   - ModeMinimal: icons without colour. Used when NO_COLOR is set or
//     output is piped.
//   - ModeMachine: plain "KEY: value" lines for scripts.
//
// TEADESK_OUTPUT=rich|minimal|machine overrides detection.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// =============================================================================
// Colour Palette
// =============================================================================

var (
	ColorLeaf    = lipgloss.Color("#7BAE5A") // Fresh leaf green - highlights, success
	ColorMatcha  = lipgloss.Color("#5C8A3C") // Matcha - titles
	ColorOolong  = lipgloss.Color("#B5804A") // Oolong amber - borders
	ColorRooibos = lipgloss.Color("#C0503A") // Rooibos red - errors
	ColorHoney   = lipgloss.Color("#E3B341") // Honey - warnings
	ColorSteam   = lipgloss.Color("#8A8F94") // Steam grey - muted text
)

// Styles are the lipgloss styles shared by every Printer.
var Styles = struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorMatcha),
	Label:   lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSteam),
	Success: lipgloss.NewStyle().Foreground(ColorLeaf),
	Warning: lipgloss.NewStyle().Foreground(ColorHoney),
	Error:   lipgloss.NewStyle().Foreground(ColorRooibos),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorOolong).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
	IconCup     Icon = "🍵"
)

// =============================================================================
// Modes
// =============================================================================

// Mode selects how much decoration output carries.
type Mode string

const (
	ModeRich    Mode = "rich"
	ModeMinimal Mode = "minimal"
	ModeMachine Mode = "machine"
)

// ParseMode reads a mode name. Unknown names fall back to ModeMinimal.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full":
		return ModeRich
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModeMinimal
	}
}

// DetectMode picks a mode for f from TEADESK_OUTPUT, NO_COLOR and whether
// f is a terminal.
func DetectMode(f *os.File) Mode {
	if env := os.Getenv("TEADESK_OUTPUT"); env != "" {
		return ParseMode(env)
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModeMinimal
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeRich
	}
	return ModeMinimal
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes decorated output. Errors and warnings go to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
}

// NewPrinter creates a Printer. A nil errOut sends everything to out.
func NewPrinter(out, errOut io.Writer, mode Mode) *Printer {
	if errOut == nil {
		errOut = out
	}
	return &Printer{out: out, errOut: errOut, mode: mode}
}

// Stdout returns a Printer on stdout/stderr with the detected mode.
func Stdout() *Printer {
	return NewPrinter(os.Stdout, os.Stderr, DetectMode(os.Stdout))
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode { return p.mode }

func (p *Printer) style(s lipgloss.Style, text string) string {
	if p.mode != ModeRich {
		return text
	}
	return s.Render(text)
}

// Title prints a heading. Machine mode skips it.
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.out, p.style(Styles.Title, text))
}

// Success prints a confirmation.
func (p *Printer) Success(text string) {
	p.status(p.out, "OK", IconSuccess, Styles.Success, text)
}

// Warning prints a warning to errOut.
func (p *Printer) Warning(text string) {
	p.status(p.errOut, "WARN", IconWarning, Styles.Warning, text)
}

// Error prints an error to errOut.
func (p *Printer) Error(text string) {
	p.status(p.errOut, "ERROR", IconError, Styles.Error, text)
}

func (p *Printer) status(w io.Writer, tag string, icon Icon, s lipgloss.Style, text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(w, "%s: %s\n", tag, text)
		return
	}
	fmt.Fprintf(w, "%s %s\n", p.style(s, string(icon)), p.style(s, text))
}

// Text prints text as is.
func (p *Printer) Text(text string) {
	fmt.Fprintln(p.out, text)
}

// Muted prints secondary text. Machine mode skips it.
func (p *Printer) Muted(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.out, p.style(Styles.Muted, text))
}

// Box prints content under a title, boxed in rich mode.
func (p *Printer) Box(title, content string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.out, "%s:\n%s\n", title, content)
	case ModeMinimal:
		fmt.Fprintf(p.out, "%s\n%s\n", title, content)
	default:
		fmt.Fprintln(p.out, Styles.Box.Render(Styles.Title.Render(title)+"\n"+content))
	}
}

// Field is one labelled value.
type Field struct {
	Label string
	Value string
}

// Fields prints labelled values with the values aligned.
func (p *Printer) Fields(fields ...Field) {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Label))
	}
	for _, f := range fields {
		if p.mode == ModeMachine {
			fmt.Fprintf(p.out, "%s: %s\n", strings.ToUpper(strings.ReplaceAll(f.Label, " ", "_")), f.Value)
			continue
		}
		label := fmt.Sprintf("%-*s", width, f.Label)
		fmt.Fprintf(p.out, "%s  %s\n", p.style(Styles.Label, label), f.Value)
	}
}

// Referrals renders progress toward the discount, e.g. "●●○ 2/3".
func (p *Printer) Referrals(count, threshold int) string {
	if p.mode == ModeMachine || threshold <= 0 {
		return fmt.Sprintf("%d/%d", count, threshold)
	}
	filled := min(count, threshold)
	dots := p.style(Styles.Success, strings.Repeat("●", filled)) +
		p.style(Styles.Muted, strings.Repeat("○", threshold-filled))
	return fmt.Sprintf("%s %d/%d", dots, count, threshold)
}

// Reply prints a chat answer with a note on how it was produced.
func (p *Printer) Reply(source, text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.out, "SOURCE: %s\n%s\n", source, text)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", string(IconCup), p.style(Styles.Muted, "("+source+")"))
	fmt.Fprintln(p.out, text)
}

package ui

import (
	"strings"

	"github.com/Makepad-fr/tada/internal/model"
)

// Theme bundles palette + symbols + box borders.
// All UI helpers pull from `current`.
type Theme struct {
	Title, Muted, Accent, Success, Error, Pending, Deferred string
	CornerTL, CornerTR, CornerBL, CornerBR                 string
	H, V                                                   string
	SymNew, SymStarted, SymDeferred, SymCompleted          string
}

var current Theme

func init() { SetTheme("classic") }

// Themes lists the names SetTheme understands.
var Themes = []string{"classic", "neon", "mono"}

func SetTheme(name string) {
	switch strings.ToLower(name) {
	case "neon":
		current = Theme{
			Title: "\033[95m", // bright magenta
			Muted: fgGray, Accent: "\033[96m",
			Success: fgGreen, Error: fgRed, Pending: "\033[93m", Deferred: fgMagenta,
			CornerTL: "╭", CornerTR: "╮", CornerBL: "╰", CornerBR: "╯",
			H: "─", V: "│",
			SymNew: "◻", SymStarted: "◐", SymDeferred: "◌", SymCompleted: "◼",
		}
	case "mono":
		disableColor = true
		current = Theme{
			CornerTL: "+", CornerTR: "+", CornerBL: "+", CornerBR: "+",
			H: "-", V: "|",
			SymNew: "[ ]", SymStarted: "[~]", SymDeferred: "[z]", SymCompleted: "[x]",
		}
	default: // classic
		current = Theme{
			Title: bold, Muted: fgGray, Accent: fgBlue,
			Success: fgGreen, Error: fgRed, Pending: fgYellow, Deferred: fgMagenta,
			CornerTL: "┌", CornerTR: "┐", CornerBL: "└", CornerBR: "┘",
			H: "─", V: "│",
			SymNew: "☐", SymStarted: "▶", SymDeferred: "⏸", SymCompleted: "☑",
		}
	}
}

// Expose what renderers need
func Current() Theme { return current }

// StatusSymbol returns the bare symbol for s in the current theme.
func StatusSymbol(s model.Status) string {
	switch s {
	case model.StatusStarted:
		return current.SymStarted
	case model.StatusDeferred:
		return current.SymDeferred
	case model.StatusCompleted:
		return current.SymCompleted
	}
	return current.SymNew
}

// StatusColor returns the palette entry used for s.
func StatusColor(s model.Status) string {
	switch s {
	case model.StatusStarted:
		return current.Pending
	case model.StatusDeferred:
		return current.Deferred
	case model.StatusCompleted:
		return current.Success
	}
	return current.Muted
}

// StatusMark is the colored symbol for s.
func StatusMark(s model.Status) string { return C(StatusColor(s), StatusSymbol(s)) }

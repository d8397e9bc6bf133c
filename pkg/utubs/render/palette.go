package render

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette is the stylesheet used by Terminal.
type Palette struct {
	title    lipgloss.Style
	tag      lipgloss.Style
	selected lipgloss.Style
	disabled lipgloss.Style
	href     lipgloss.Style
	ok       lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	help     lipgloss.Style
}

// NewPalette builds a palette from title, success, error, warning and muted colors.
func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:    NewBold(t),
		tag:      NewStyle(t),
		selected: NewBold(s).Underline(true),
		disabled: NewStyle(h).Strikethrough(true),
		href:     NewEm(h),
		ok:       NewBold(s),
		err:      NewBold(e),
		warn:     NewStyle(w),
		help:     NewEm(h),
	}
}

// DefaultPalette is the palette used by the CLI.
func DefaultPalette() *Palette {
	return NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/playsync/internal/session"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	badge lipgloss.Style
	panel lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		badge: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		panel: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(h)).Padding(0, 1),
	}
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

// stateBadge renders the session state as a colored label.
func (p *Palette) stateBadge(state session.State) string {
	var bg lipgloss.Color
	switch state {
	case session.Authenticated:
		bg = lipgloss.Color("#04B575")
	case session.Authenticating, session.LoggingOut:
		bg = lipgloss.Color("#FFA500")
	default:
		bg = lipgloss.Color("#626262")
	}
	return p.badge.Background(bg).Foreground(lipgloss.Color("#FFFFFF")).Render(state.String())
}

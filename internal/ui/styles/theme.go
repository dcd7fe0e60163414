// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
	ModeNoTTY = "notty"
)

// Theme holds the styled components of the chat UI.
type Theme struct {
	Mode   string
	IsDark bool

	Width  int
	Height int

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style

	UserLabel  lipgloss.Style
	AgentLabel lipgloss.Style
	UserBody   lipgloss.Style
	AgentBody  lipgloss.Style
	Partial    lipgloss.Style
	Timestamp  lipgloss.Style

	Card            lipgloss.Style
	CardTitle       lipgloss.Style
	CardDescription lipgloss.Style
	CardLayout      lipgloss.Style

	Button       lipgloss.Style
	ButtonKey    lipgloss.Style
	ButtonLink   lipgloss.Style
	ButtonsEmpty lipgloss.Style

	StatusBar  lipgloss.Style
	StatusItem lipgloss.Style
	Typing     lipgloss.Style
	Error      lipgloss.Style
	Hint       lipgloss.Style
}

// NewTheme builds a theme for mode. "auto" asks the terminal for its
// background; "notty" drops all color.
func NewTheme(mode string) *Theme {
	t := &Theme{Mode: mode}
	switch mode {
	case ModeDark:
		t.IsDark = true
	case ModeLight:
		t.IsDark = false
	case ModeNoTTY:
		t.IsDark = true
	default:
		t.Mode = ModeAuto
		t.IsDark = termenv.HasDarkBackground()
	}

	lipgloss.SetHasDarkBackground(t.IsDark)
	if t.Mode == ModeNoTTY {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	t.initStyles()
	return t
}

// GlamourStyle names the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	switch {
	case t.Mode == ModeNoTTY:
		return "notty"
	case t.IsDark:
		return "dark"
	default:
		return "light"
	}
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(UserBubbleBorder)
	t.AgentLabel = lipgloss.NewStyle().Bold(true).Foreground(AgentBubbleBorder)
	t.UserBody = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(1)
	t.AgentBody = lipgloss.NewStyle().
		Foreground(AgentBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AgentBubbleBorder).
		PaddingLeft(1)
	t.Partial = lipgloss.NewStyle().Foreground(Amber)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)

	t.Card = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(CardBorder).
		Padding(0, 1).
		MarginRight(1)
	t.CardTitle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary)
	t.CardDescription = lipgloss.NewStyle().Foreground(TextSecondary)
	t.CardLayout = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	t.Button = lipgloss.NewStyle().
		Foreground(Emerald).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Emerald).
		Padding(0, 1).
		MarginRight(1)
	t.ButtonKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.ButtonLink = lipgloss.NewStyle().Foreground(LinkColor).Underline(true)
	t.ButtonsEmpty = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusItem = lipgloss.NewStyle().MarginRight(2)
	t.Typing = lipgloss.NewStyle().Foreground(Amber)
	t.Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Hint = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize updates the theme dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// ContentWidth is the usable width inside the message column.
func (t *Theme) ContentWidth() int {
	w := t.Width - 4
	if w < 20 {
		return 20
	}
	return w
}

// CardWidth sizes carousel cards so that up to three fit side by side.
func (t *Theme) CardWidth(cards int) int {
	if cards < 1 {
		cards = 1
	}
	if cards > 3 {
		cards = 3
	}
	w := t.ContentWidth()/cards - 3
	if w < 16 {
		return 16
	}
	return w
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/vfchat/internal/ui/styles"
)

// Line-mode styles. Colors come from the shared palette; lipgloss drops
// them when the output is not a terminal.
var (
	errorStyle = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(styles.TextMuted)

	userLabelStyle  = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	agentLabelStyle = lipgloss.NewStyle().Foreground(styles.Emerald).Bold(true)

	cardTitleStyle = lipgloss.NewStyle().Bold(true)
	buttonKeyStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	linkStyle      = lipgloss.NewStyle().Foreground(styles.LinkColor).Underline(true)
)

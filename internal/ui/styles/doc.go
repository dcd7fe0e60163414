// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the vfchat TUI.
//
// Colors are lipgloss.AdaptiveColor values so they follow the terminal
// background. NewTheme pins that background when the user picks a mode
// explicitly, and reports the matching glamour style for Markdown.
package styles

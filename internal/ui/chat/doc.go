// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen chat view.
//
// The Model owns a conversation.Session and is the only code that touches
// it: trace events, timer ticks and stream completions all arrive as
// Bubble Tea messages and are applied in Update. Requests run in commands
// off the loop and post their events back through a Sender.
//
// # Usage
//
//	var sender chat.Sender
//	m := chat.New(chat.Options{
//	    Backend: client,
//	    Launch:  true,
//	    Send:    sender.Send,
//	})
//	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
//	sender.Attach(p)
//	_, err := p.Run()
//	m.Close()
//
// # Keys
//
//   - Enter: send the input line
//   - 1-9: press a button (input line empty)
//   - Ctrl+R: start a new conversation
//   - Ctrl+X: dismiss the newest carousel
//   - PgUp/PgDn, mouse wheel: scroll; End: follow the newest message
//   - Ctrl+C: quit
package chat

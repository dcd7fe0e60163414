// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender posts messages into a running program from other goroutines. The
// program is attached after it has been created, so messages sent before
// that are dropped.
type Sender struct {
	mu sync.Mutex
	p  *tea.Program
}

// Attach sets the program messages are sent to.
func (s *Sender) Attach(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
}

// Send posts msg to the attached program.
func (s *Sender) Send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

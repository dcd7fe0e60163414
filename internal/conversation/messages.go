// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/vfchat/internal/model"
	"github.com/jeranaias/vfchat/internal/trace"
)

// TraceMsg delivers one decoded trace event for a request.
type TraceMsg struct {
	Request uint64
	Event   trace.Event
}

// StreamDoneMsg is sent exactly once when a request's stream ends.
// Err is nil on a clean end of stream.
type StreamDoneMsg struct {
	Request uint64
	Err     error
}

// Indicators are the transient UI affordances derived from session state.
type Indicators struct {
	// Typing is set while the agent is working on a reply.
	Typing bool
	// ButtonsLoading is set between a send and the next choice event.
	ButtonsLoading bool
	// Streaming is set while a reveal or completion turn is active.
	Streaming bool
}

// Snapshot is a read-only copy of what the renderer needs.
type Snapshot struct {
	Messages     []model.Message
	Buttons      []trace.Button
	Bindings     []model.Binding
	Indicators   Indicators
	ShouldFollow bool
}

// Binding returns the carousel binding for a message id, if any.
func (s Snapshot) Binding(id string) (model.Binding, bool) {
	for _, b := range s.Bindings {
		if b.MessageID == id {
			return b, true
		}
	}
	return model.Binding{}, false
}

// batch combines commands, dropping nils.
func batch(cmds ...tea.Cmd) tea.Cmd {
	valid := make([]tea.Cmd, 0, len(cmds))
	for _, c := range cmds {
		if c != nil {
			valid = append(valid, c)
		}
	}
	switch len(valid) {
	case 0:
		return nil
	case 1:
		return valid[0]
	default:
		return tea.Batch(valid...)
	}
}

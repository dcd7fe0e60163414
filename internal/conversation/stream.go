// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/vfchat/internal/trace"
)

// StreamFunc runs one request, calling handle for each event in order.
type StreamFunc func(ctx context.Context, handle func(trace.Event)) error

// StreamCmd returns a command that runs stream off the event loop. Every
// event is posted with send as a TraceMsg tagged with request; the command's
// own result is the single StreamDoneMsg, which therefore arrives after all
// of them.
func StreamCmd(ctx context.Context, request uint64, stream StreamFunc, send func(tea.Msg)) tea.Cmd {
	return func() tea.Msg {
		err := stream(ctx, func(ev trace.Event) {
			send(TraceMsg{Request: request, Event: ev})
		})
		return StreamDoneMsg{Request: request, Err: err}
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/vfchat/internal/model"
	"github.com/jeranaias/vfchat/internal/trace"
)

func newTestMachine(t *testing.T) (*Machine, *model.Store, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	store := model.NewStore()
	m := New(store, WithLogger(zap.New(core)), WithInactivityTimeout(time.Millisecond))
	return m, store, logs
}

func payload(state trace.CompletionState, content string) trace.CompletionPayload {
	return trace.CompletionPayload{State: state, Content: content}
}

func TestMachine_Assembly(t *testing.T) {
	m, store, _ := newTestMachine(t)

	out, cmd := m.Handle(payload(trace.CompletionStart, ""))
	require.Equal(t, Started, out)
	require.NotNil(t, cmd)
	id := m.MessageID()
	require.True(t, strings.HasPrefix(id, "completion-"), id)

	for _, c := range []string{"Hel", "lo"} {
		out, _ = m.Handle(payload(trace.CompletionContent, c))
		require.Equal(t, Appended, out)
		msg, _ := store.Get(id)
		assert.True(t, msg.IsPartial, "partial before end")
	}

	out, cmd = m.Handle(payload(trace.CompletionEnd, ""))
	assert.Equal(t, Ended, out)
	assert.Nil(t, cmd)

	msg, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Hello", msg.Content)
	assert.False(t, msg.IsPartial)
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, m.MessageID())
}

func TestMachine_ContentOrderPreserved(t *testing.T) {
	m, store, _ := newTestMachine(t)
	m.Start()
	id := m.MessageID()

	parts := []string{"a", "", "b", "b", " ", "ç", "😀"}
	for _, p := range parts {
		m.Content(p)
	}
	m.End()

	msg, _ := store.Get(id)
	assert.Equal(t, strings.Join(parts, ""), msg.Content)
}

func TestMachine_ContentWhileIdle(t *testing.T) {
	m, store, logs := newTestMachine(t)

	out, cmd := m.Content("orphan")
	assert.Equal(t, Ignored, out)
	assert.Nil(t, cmd)
	assert.Equal(t, 0, store.Len())

	entries := logs.FilterMessage("completion_anomaly").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestMachine_EndWhileIdle(t *testing.T) {
	m, store, _ := newTestMachine(t)
	assert.Equal(t, Ignored, m.End())
	assert.Equal(t, 0, store.Len())
}

func TestMachine_StartWhileStreamingFinalizesPrevious(t *testing.T) {
	m, store, logs := newTestMachine(t)

	m.Start()
	first := m.MessageID()
	m.Content("kept")

	out, _ := m.Start()
	require.Equal(t, Started, out)
	second := m.MessageID()
	require.NotEqual(t, first, second)

	prev, _ := store.Get(first)
	assert.Equal(t, "kept", prev.Content)
	assert.False(t, prev.IsPartial)

	p, ok := store.Partial()
	require.True(t, ok)
	assert.Equal(t, second, p.ID)
	assert.Equal(t, 1, logs.FilterMessage("completion_anomaly").Len())
}

func TestMachine_StartRejectedByStore(t *testing.T) {
	m, store, logs := newTestMachine(t)
	require.NoError(t, store.Add(model.NewAgentMessage("text-1", true)))

	out, cmd := m.Start()
	assert.Equal(t, Ignored, out)
	assert.Nil(t, cmd)
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, 1, logs.FilterMessage("completion start failed").Len())
}

func TestMachine_ActiveMessageRemoved(t *testing.T) {
	m, store, _ := newTestMachine(t)
	m.Start()
	store.Remove(m.MessageID())

	out, _ := m.Content("late")
	assert.Equal(t, Ignored, out)
	assert.False(t, m.Active())
}

func TestMachine_UnknownState(t *testing.T) {
	m, _, logs := newTestMachine(t)
	out, _ := m.Handle(payload("pause", ""))
	assert.Equal(t, Ignored, out)
	assert.Equal(t, 1, logs.FilterMessage("completion_anomaly").Len())
}

func TestMachine_Inactivity(t *testing.T) {
	m, _, _ := newTestMachine(t)

	m.Start()
	first := InactivityMsg{Gen: m.gen}
	assert.True(t, m.HandleInactivity(first))

	m.Content("x")
	assert.False(t, m.HandleInactivity(first), "re-armed timer makes earlier one stale")
	current := InactivityMsg{Gen: m.gen}
	assert.True(t, m.HandleInactivity(current))

	m.StopTimer()
	assert.False(t, m.HandleInactivity(current))
	assert.True(t, m.Active(), "StopTimer keeps the turn")

	m.Content("y")
	current = InactivityMsg{Gen: m.gen}
	m.End()
	assert.False(t, m.HandleInactivity(current))
}

func TestMachine_TimerCmdDeliversGeneration(t *testing.T) {
	m, _, _ := newTestMachine(t)
	_, cmd := m.Start()
	require.NotNil(t, cmd)

	msg, ok := cmd().(InactivityMsg)
	require.True(t, ok)
	assert.True(t, m.HandleInactivity(msg))
}

func TestMachine_LastActivity(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := model.NewStore()
	m := New(store, WithClock(func() time.Time { return now }))

	assert.True(t, m.LastActivityAt().IsZero())
	m.Start()
	assert.Equal(t, now, m.LastActivityAt())

	now = now.Add(time.Second)
	m.Content("x")
	assert.Equal(t, now, m.LastActivityAt())

	m.End()
	assert.True(t, m.LastActivityAt().IsZero())
}

func TestMachine_Reset(t *testing.T) {
	m, store, _ := newTestMachine(t)
	m.Start()
	id := m.MessageID()
	m.Content("x")
	gen := InactivityMsg{Gen: m.gen}

	m.Reset()
	assert.Equal(t, Idle, m.State())
	assert.False(t, m.HandleInactivity(gen))

	// Reset leaves the store alone; the owner clears it.
	msg, ok := store.Get(id)
	require.True(t, ok)
	assert.True(t, msg.IsPartial)
}

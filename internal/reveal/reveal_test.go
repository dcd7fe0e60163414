// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reveal

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	updates []string
	done    int
}

func (r *recorder) update(s string) { r.updates = append(r.updates, s) }
func (r *recorder) finish()         { r.done++ }

// run drives the scheduler the way the event loop would, without waiting on
// real timers.
func run(s *Scheduler) {
	for s.Active() {
		s.Step(StepMsg{Gen: s.gen})
	}
}

func TestReveal_Monotonic(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"ascii", "abc", []string{"a", "ab", "abc"}},
		{"single", "x", []string{"x"}},
		{"multibyte", "héllo", []string{"h", "hé", "hél", "héll", "héllo"}},
		{"emoji cluster", "a👍🏽b", []string{"a", "a👍🏽", "a👍🏽b"}},
		{"combining mark", "e\u0301!", []string{"e\u0301", "e\u0301!"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New(time.Millisecond)
			var r recorder
			cmd := s.Reveal("m1", tc.text, r.update, r.finish)
			require.NotNil(t, cmd)
			assert.Equal(t, "m1", s.Target())

			run(s)

			if diff := cmp.Diff(tc.want, r.updates); diff != "" {
				t.Errorf("updates mismatch (-want +got):\n%s", diff)
			}
			for i := 1; i < len(r.updates); i++ {
				assert.Greater(t, len(r.updates[i]), len(r.updates[i-1]))
			}
			assert.Equal(t, 1, r.done)
			assert.False(t, s.Active())
		})
	}
}

func TestReveal_StaleStepIgnored(t *testing.T) {
	s := New(time.Millisecond)
	var first, second recorder

	s.Reveal("m1", "abc", first.update, first.finish)
	stale := StepMsg{Gen: s.gen}
	s.Step(stale)

	s.Reveal("m2", "xy", second.update, second.finish)
	assert.Nil(t, s.Step(stale), "step from superseded reveal")
	assert.Equal(t, []string{"a"}, first.updates)
	assert.Equal(t, 0, first.done, "cancelled reveal never completes")

	run(s)
	assert.Equal(t, []string{"x", "xy"}, second.updates)
	assert.Equal(t, 1, second.done)
}

func TestReveal_Flush(t *testing.T) {
	s := New(time.Millisecond)
	var r recorder
	s.Reveal("m1", "hello", r.update, r.finish)
	s.Step(StepMsg{Gen: s.gen})
	gen := s.gen

	assert.Equal(t, "m1", s.Flush())
	assert.Equal(t, []string{"h", "hello"}, r.updates)
	assert.Equal(t, 1, r.done)
	assert.False(t, s.Active())

	assert.Nil(t, s.Step(StepMsg{Gen: gen}))
	assert.Empty(t, s.Flush())
	assert.Equal(t, 1, r.done)
}

func TestReveal_Cancel(t *testing.T) {
	s := New(time.Millisecond)
	var r recorder
	s.Reveal("m1", "hello", r.update, r.finish)
	gen := s.gen

	s.Cancel()
	assert.Nil(t, s.Step(StepMsg{Gen: gen}))
	assert.Empty(t, r.updates)
	assert.Equal(t, 0, r.done)
	assert.Empty(t, s.Target())
}

func TestReveal_Instant(t *testing.T) {
	s := New(0)
	var r recorder
	cmd := s.Reveal("m1", "hello", r.update, r.finish)
	assert.Nil(t, cmd)
	assert.Equal(t, []string{"hello"}, r.updates)
	assert.Equal(t, 1, r.done)
}

func TestReveal_EmptyText(t *testing.T) {
	s := New(time.Millisecond)
	var r recorder
	assert.Nil(t, s.Reveal("m1", "", r.update, r.finish))
	assert.Empty(t, r.updates)
	assert.Equal(t, 1, r.done)
}

func TestReveal_TickCarriesGeneration(t *testing.T) {
	s := New(time.Millisecond)
	var r recorder
	cmd := s.Reveal("m1", "ab", r.update, r.finish)

	msg, ok := cmd().(StepMsg)
	require.True(t, ok)
	next := s.Step(msg)
	require.NotNil(t, next)
	assert.Equal(t, []string{"a"}, r.updates)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reveal animates text that has already arrived in full, exposing it
// one grapheme cluster at a time as if it were still streaming.
//
// Steps are tea.Tick commands carrying a generation token. Starting a new
// reveal, flushing, or cancelling bumps the generation, so steps scheduled
// for an older reveal are ignored and never write into a message that has
// since been finalized or replaced.
package reveal

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rivo/uniseg"
)

// DefaultDelay is the pause between two steps.
const DefaultDelay = 5 * time.Millisecond

// StepMsg advances the reveal that scheduled it.
type StepMsg struct {
	Gen uint64
}

// task is one in-flight reveal.
type task struct {
	target   string
	text     string
	bounds   []int // byte offset of the end of each grapheme cluster
	pos      int   // clusters delivered so far
	onUpdate func(string)
	onDone   func()
}

// Scheduler runs at most one reveal at a time.
// It is driven from the session event loop and is not safe for concurrent use.
type Scheduler struct {
	delay  time.Duration
	gen    uint64
	active *task
}

// New creates a scheduler with the given step delay. A delay <= 0 reveals
// synchronously in a single update.
func New(delay time.Duration) *Scheduler {
	return &Scheduler{delay: delay}
}

// SetDelay changes the delay used by subsequent steps.
func (s *Scheduler) SetDelay(d time.Duration) {
	s.delay = d
}

// Delay returns the step delay.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// Reveal starts exposing text for the message target. Any reveal in flight is
// cancelled without further callbacks. onUpdate receives strictly growing
// prefixes of text ending with text itself; onDone fires exactly once after
// the last update.
func (s *Scheduler) Reveal(target, text string, onUpdate func(string), onDone func()) tea.Cmd {
	s.Cancel()

	if text == "" || s.delay <= 0 {
		if text != "" {
			onUpdate(text)
		}
		onDone()
		return nil
	}

	s.active = &task{
		target:   target,
		text:     text,
		bounds:   boundaries(text),
		onUpdate: onUpdate,
		onDone:   onDone,
	}
	return s.tick()
}

// Step handles a StepMsg. Stale messages are ignored.
func (s *Scheduler) Step(msg StepMsg) tea.Cmd {
	t := s.active
	if t == nil || msg.Gen != s.gen {
		return nil
	}

	t.pos++
	t.onUpdate(t.text[:t.bounds[t.pos-1]])
	if t.pos < len(t.bounds) {
		return s.tick()
	}

	s.finish()
	return nil
}

// Flush completes the in-flight reveal immediately, delivering the full text
// and firing onDone. It returns the target message id, or "" if idle.
func (s *Scheduler) Flush() string {
	t := s.active
	if t == nil {
		return ""
	}
	if t.pos < len(t.bounds) {
		t.onUpdate(t.text)
	}
	s.finish()
	return t.target
}

// Cancel invalidates the in-flight reveal without any further callbacks.
func (s *Scheduler) Cancel() {
	s.gen++
	s.active = nil
}

// Active reports whether a reveal is in flight.
func (s *Scheduler) Active() bool {
	return s.active != nil
}

// Target returns the message id of the in-flight reveal, or "".
func (s *Scheduler) Target() string {
	if s.active == nil {
		return ""
	}
	return s.active.target
}

func (s *Scheduler) finish() {
	done := s.active.onDone
	s.active = nil
	s.gen++
	done()
}

func (s *Scheduler) tick() tea.Cmd {
	gen := s.gen
	return tea.Tick(s.delay, func(time.Time) tea.Msg {
		return StepMsg{Gen: gen}
	})
}

// boundaries returns the end offset of every grapheme cluster in text.
func boundaries(text string) []int {
	out := make([]int, 0, len(text))
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		_, to := g.Positions()
		out = append(out, to)
	}
	return out
}

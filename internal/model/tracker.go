// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Source is the kind of producer that created a message.
type Source string

const (
	SourceText     Source = "text"
	SourceChoice   Source = "choice"
	SourceCarousel Source = "carousel"
)

// SourceTracker maps message ids to the producer that created them.
// It is session-scoped and never persisted.
type SourceTracker struct {
	sources map[string]Source
}

// NewSourceTracker creates an empty tracker.
func NewSourceTracker() *SourceTracker {
	return &SourceTracker{sources: make(map[string]Source)}
}

// Set records the source of a message.
func (t *SourceTracker) Set(id string, src Source) {
	t.sources[id] = src
}

// Get returns the recorded source of a message.
func (t *SourceTracker) Get(id string) (Source, bool) {
	src, ok := t.sources[id]
	return src, ok
}

// Len returns the number of tracked messages.
func (t *SourceTracker) Len() int {
	return len(t.sources)
}

// Reset forgets every entry.
func (t *SourceTracker) Reset() {
	t.sources = make(map[string]Source)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"time"

	"github.com/jeranaias/vfchat/internal/trace"
)

// Binding attaches a carousel payload to the message it renders in place of.
type Binding struct {
	MessageID string
	Cards     []trace.Card
	Layout    string
	Timestamp time.Time
}

// Membership is what a synchronisation pass needs from the message store.
type Membership interface {
	Has(id string) bool
}

// BindingTable maps message ids to carousel bindings.
// Several carousels may be visible at once; each is keyed independently.
type BindingTable struct {
	bindings map[string]Binding
}

// NewBindingTable creates an empty table.
func NewBindingTable() *BindingTable {
	return &BindingTable{bindings: make(map[string]Binding)}
}

// Set upserts a binding by message id. Other keys are untouched.
func (t *BindingTable) Set(b Binding) {
	if b.MessageID == "" {
		return
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now()
	}
	t.bindings[b.MessageID] = b
}

// Get returns the binding for a message id.
func (t *BindingTable) Get(id string) (Binding, bool) {
	b, ok := t.bindings[id]
	return b, ok
}

// Sync removes every binding whose message is no longer present and returns
// how many were removed. This is the only removal path besides Reset.
func (t *BindingTable) Sync(messages Membership) int {
	removed := 0
	for id := range t.bindings {
		if !messages.Has(id) {
			delete(t.bindings, id)
			removed++
		}
	}
	return removed
}

// All returns the bindings ordered by arrival.
func (t *BindingTable) All() []Binding {
	out := make([]Binding, 0, len(t.bindings))
	for _, b := range t.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Len returns the number of bindings.
func (t *BindingTable) Len() int {
	return len(t.bindings)
}

// Reset removes every binding.
func (t *BindingTable) Reset() {
	t.bindings = make(map[string]Binding)
}

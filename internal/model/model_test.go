// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/vfchat/internal/trace"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hi")
	if msg.Role != RoleUser {
		t.Errorf("Role = %v, want %v", msg.Role, RoleUser)
	}
	if msg.IsPartial {
		t.Error("user message should be final")
	}
	if !strings.HasPrefix(msg.ID, "user-") {
		t.Errorf("ID = %q, want user- prefix", msg.ID)
	}
	if msg.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID("text")
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAgent, "Agent"},
		{Role("system"), "system"},
	}
	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("%v.DisplayName() = %q, want %q", tc.role, got, tc.want)
		}
	}
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_AddAndGet(t *testing.T) {
	s := NewStore()
	if err := s.Add(NewUserMessage("hello")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(NewAgentMessage("text-1", true)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	got, ok := s.Get("text-1")
	if !ok || !got.IsPartial || got.Role != RoleAgent {
		t.Errorf("Get(text-1) = %+v, %v", got, ok)
	}
	if last, _ := s.Last(); last.ID != "text-1" {
		t.Errorf("Last().ID = %q, want text-1", last.ID)
	}
}

func TestStore_AddRejects(t *testing.T) {
	s := NewStore()
	_ = s.Add(NewAgentMessage("a", true))

	tests := []struct {
		name string
		msg  Message
		want error
	}{
		{"empty id", Message{Role: RoleAgent}, ErrEmptyID},
		{"duplicate id", NewAgentMessage("a", false), ErrDuplicateID},
		{"second partial", NewAgentMessage("b", true), ErrPartialExists},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Add(tc.msg); !errors.Is(err, tc.want) {
				t.Errorf("Add() error = %v, want %v", err, tc.want)
			}
		})
	}

	if s.Len() != 1 {
		t.Errorf("Len = %d after rejected adds, want 1", s.Len())
	}
}

func TestStore_SinglePartial(t *testing.T) {
	s := NewStore()
	_ = s.Add(NewAgentMessage("a", true))
	if err := s.Finalize("a"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, ok := s.Partial(); ok {
		t.Error("Partial() should be empty after Finalize")
	}
	if err := s.Add(NewAgentMessage("b", true)); err != nil {
		t.Fatalf("Add after finalize: %v", err)
	}
	p, ok := s.Partial()
	if !ok || p.ID != "b" {
		t.Errorf("Partial() = %q, %v; want b", p.ID, ok)
	}
}

func TestStore_ContentOnlyChangesWhilePartial(t *testing.T) {
	s := NewStore()
	_ = s.Add(NewAgentMessage("a", true))

	_ = s.AppendContent("a", "Hel")
	_ = s.AppendContent("a", "lo")
	if got, _ := s.Get("a"); got.Content != "Hello" {
		t.Fatalf("Content = %q, want Hello", got.Content)
	}

	_ = s.Finalize("a")
	if err := s.AppendContent("a", "!"); !errors.Is(err, ErrNotPartial) {
		t.Errorf("AppendContent on final = %v, want ErrNotPartial", err)
	}
	if err := s.SetContent("a", "x"); !errors.Is(err, ErrNotPartial) {
		t.Errorf("SetContent on final = %v, want ErrNotPartial", err)
	}
	if got, _ := s.Get("a"); got.Content != "Hello" {
		t.Errorf("Content changed after finalize: %q", got.Content)
	}
	if err := s.AppendContent("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendContent on missing = %v, want ErrNotFound", err)
	}
}

func TestStore_FinalizeIdempotent(t *testing.T) {
	s := NewStore()
	_ = s.Add(NewAgentMessage("a", true))
	_ = s.Finalize("a")
	v := s.Version()
	if err := s.Finalize("a"); err != nil {
		t.Errorf("second Finalize: %v", err)
	}
	if s.Version() != v {
		t.Error("no-op Finalize should not bump version")
	}
}

func TestStore_Versions(t *testing.T) {
	s := NewStore()
	_ = s.Add(NewAgentMessage("a", true))
	idv := s.IDVersion()
	v := s.Version()

	_ = s.AppendContent("a", "x")
	if s.Version() == v {
		t.Error("AppendContent should bump Version")
	}
	if s.IDVersion() != idv {
		t.Error("AppendContent should not bump IDVersion")
	}

	s.Remove("a")
	if s.IDVersion() == idv {
		t.Error("Remove should bump IDVersion")
	}
}

func TestStore_RemoveAndReset(t *testing.T) {
	s := NewStore()
	_ = s.Add(NewAgentMessage("a", false))
	_ = s.Add(NewAgentMessage("b", true))
	_ = s.Add(NewAgentMessage("c", false))

	if !s.Remove("b") {
		t.Fatal("Remove(b) = false")
	}
	if s.Remove("b") {
		t.Error("second Remove(b) = true")
	}
	if got := strings.Join(s.IDs(), ","); got != "a,c" {
		t.Errorf("IDs = %s, want a,c", got)
	}
	if _, ok := s.Partial(); ok {
		t.Error("removing the partial should clear it")
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len after Reset = %d", s.Len())
	}
}

func TestStore_MessagesIsCopy(t *testing.T) {
	s := NewStore()
	_ = s.Add(NewAgentMessage("a", true))
	msgs := s.Messages()
	msgs[0].Content = "mutated"
	if got, _ := s.Get("a"); got.Content != "" {
		t.Errorf("store mutated through copy: %q", got.Content)
	}
}

func TestStore_KeepsEveryMessage(t *testing.T) {
	s := NewStore()
	_ = s.Add(NewAgentMessage("first", false))
	const n = 1500
	for i := 0; i < n; i++ {
		_ = s.Add(NewAgentMessage(NewID("text"), false))
	}
	if s.Len() != n+1 {
		t.Errorf("Len = %d, want %d", s.Len(), n+1)
	}
	if !s.Has("first") {
		t.Error("oldest message removed without a reset")
	}
}

// =============================================================================
// SOURCE TRACKER TESTS
// =============================================================================

func TestSourceTracker(t *testing.T) {
	tr := NewSourceTracker()
	tr.Set("a", SourceText)
	tr.Set("b", SourceCarousel)

	if src, ok := tr.Get("b"); !ok || src != SourceCarousel {
		t.Errorf("Get(b) = %v, %v", src, ok)
	}
	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("Len after Reset = %d", tr.Len())
	}
}

// =============================================================================
// BINDING TABLE TESTS
// =============================================================================

func TestBindingTable_IndependentKeys(t *testing.T) {
	tb := NewBindingTable()
	cards1 := []trace.Card{{ID: "c1", Title: "One"}}
	cards2 := []trace.Card{{ID: "c2", Title: "Two"}}

	tb.Set(Binding{MessageID: "m1", Cards: cards1})
	tb.Set(Binding{MessageID: "m2", Cards: cards2})

	if tb.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tb.Len())
	}
	b1, _ := tb.Get("m1")
	if b1.Cards[0].Title != "One" {
		t.Errorf("m1 binding = %+v", b1)
	}

	// Upsert replaces only its own key.
	tb.Set(Binding{MessageID: "m1", Cards: cards2})
	b1, _ = tb.Get("m1")
	b2, _ := tb.Get("m2")
	if b1.Cards[0].ID != "c2" || b2.Cards[0].ID != "c2" || tb.Len() != 2 {
		t.Errorf("after upsert m1=%+v m2=%+v", b1, b2)
	}

	tb.Set(Binding{})
	if tb.Len() != 2 {
		t.Error("empty message id should be ignored")
	}
}

func TestBindingTable_Sync(t *testing.T) {
	s := NewStore()
	_ = s.Add(NewAgentMessage("m1", false))
	_ = s.Add(NewAgentMessage("m2", false))

	tb := NewBindingTable()
	tb.Set(Binding{MessageID: "m1"})
	tb.Set(Binding{MessageID: "m2"})

	s.Remove("m1")
	if n := tb.Sync(s); n != 1 {
		t.Errorf("Sync removed %d, want 1", n)
	}
	if _, ok := tb.Get("m1"); ok {
		t.Error("m1 binding should be gone")
	}
	if _, ok := tb.Get("m2"); !ok {
		t.Error("m2 binding should remain")
	}

	s.Reset()
	tb.Sync(s)
	if tb.Len() != 0 {
		t.Errorf("Len after store reset + sync = %d", tb.Len())
	}
}

func TestBindingTable_AllOrdered(t *testing.T) {
	tb := NewBindingTable()
	now := time.Now()
	tb.Set(Binding{MessageID: "late", Timestamp: now.Add(time.Second)})
	tb.Set(Binding{MessageID: "early", Timestamp: now})

	all := tb.All()
	if len(all) != 2 || all[0].MessageID != "early" || all[1].MessageID != "late" {
		t.Errorf("All() order = %+v", all)
	}
}

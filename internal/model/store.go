// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyID       = errors.New("message id is empty")
	ErrDuplicateID   = errors.New("message id already in store")
	ErrNotFound      = errors.New("message not found")
	ErrPartialExists = errors.New("another message is still partial")
	ErrNotPartial    = errors.New("message is already final")
)

// =============================================================================
// STORE
// =============================================================================

// Store is the ordered collection of conversation turns.
// At most one message is partial at any time; Add enforces it.
// A Store is owned by the session event loop and is not safe for concurrent use.
type Store struct {
	messages []*Message
	byID     map[string]*Message
	partial  string

	version   uint64
	idVersion uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		messages: make([]*Message, 0),
		byID:     make(map[string]*Message),
	}
}

// Add appends a message. It fails if the id is empty or taken, or if msg is
// partial while another partial message exists.
func (s *Store) Add(msg Message) error {
	if msg.ID == "" {
		return ErrEmptyID
	}
	if _, ok := s.byID[msg.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}
	if msg.IsPartial && s.partial != "" {
		return fmt.Errorf("%w: %s", ErrPartialExists, s.partial)
	}

	m := msg
	s.messages = append(s.messages, &m)
	s.byID[m.ID] = &m
	if m.IsPartial {
		s.partial = m.ID
	}
	s.touch(true)
	return nil
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (Message, bool) {
	m, ok := s.byID[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// Has reports whether a message with the given id is present.
func (s *Store) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// AppendContent concatenates text onto a partial message.
func (s *Store) AppendContent(id, text string) error {
	m, err := s.partialMessage(id)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	m.Content += text
	s.touch(false)
	return nil
}

// SetContent replaces the content of a partial message.
func (s *Store) SetContent(id, content string) error {
	m, err := s.partialMessage(id)
	if err != nil {
		return err
	}
	if m.Content == content {
		return nil
	}
	m.Content = content
	s.touch(false)
	return nil
}

// Finalize marks a message final. Finalizing a final message is a no-op.
func (s *Store) Finalize(id string) error {
	m, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !m.IsPartial {
		return nil
	}
	m.IsPartial = false
	if s.partial == id {
		s.partial = ""
	}
	s.touch(false)
	return nil
}

// Remove deletes a message by id.
func (s *Store) Remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	delete(s.byID, id)
	if s.partial == id {
		s.partial = ""
	}
	s.touch(true)
	return true
}

// Reset removes every message.
func (s *Store) Reset() {
	if len(s.messages) == 0 {
		return
	}
	s.messages = make([]*Message, 0)
	s.byID = make(map[string]*Message)
	s.partial = ""
	s.touch(true)
}

// Messages returns a copy of the messages in order.
func (s *Store) Messages() []Message {
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// IDs returns the ids of all messages in order.
func (s *Store) IDs() []string {
	out := make([]string, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.ID
	}
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// Last returns the newest message.
func (s *Store) Last() (Message, bool) {
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return *s.messages[len(s.messages)-1], true
}

// Partial returns the partial message, if any.
func (s *Store) Partial() (Message, bool) {
	if s.partial == "" {
		return Message{}, false
	}
	return s.Get(s.partial)
}

// Version increases on every mutation, including content growth.
func (s *Store) Version() uint64 {
	return s.version
}

// IDVersion increases only when the set of ids changes.
func (s *Store) IDVersion() uint64 {
	return s.idVersion
}

func (s *Store) partialMessage(id string) (*Message, error) {
	m, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !m.IsPartial {
		return nil, fmt.Errorf("%w: %s", ErrNotPartial, id)
	}
	return m, nil
}

func (s *Store) touch(idsChanged bool) {
	s.version++
	if idsChanged {
		s.idVersion++
	}
}

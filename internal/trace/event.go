// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package trace defines the application-level events carried in the data
// field of each stream frame, and their payload variants.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/vfchat/internal/sse"
)

// ErrMalformed is returned when a frame's data is not a JSON trace document.
var ErrMalformed = errors.New("malformed trace event")

// =============================================================================
// EVENT TYPE
// =============================================================================

// Type is the discriminator of a trace event.
type Type string

const (
	TypeText       Type = "text"
	TypeSpeak      Type = "speak"
	TypeChoice     Type = "choice"
	TypeCarousel   Type = "carousel"
	TypeCompletion Type = "completion"
)

// Known reports whether the dispatcher has a handler for t.
func (t Type) Known() bool {
	switch t {
	case TypeText, TypeSpeak, TypeChoice, TypeCarousel, TypeCompletion:
		return true
	}
	return false
}

// Event is one decoded trace. Payload is kept raw and decoded on demand by
// the typed accessors, so unknown types cost nothing.
type Event struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// FrameID is the id of the frame the event arrived in, if any.
	FrameID string `json:"-"`
}

// Decode parses the JSON document carried by a frame's data field.
func Decode(data string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ev, nil
}

// FromFrame decodes a frame and records its id on the event.
func FromFrame(f sse.Frame) (Event, error) {
	ev, err := Decode(f.Data)
	if err != nil {
		return Event{}, err
	}
	ev.FrameID = f.ID
	return ev, nil
}

// New builds an event from a type and a payload value. It is used by tests
// and by the replay tooling.
func New(t Type, payload any) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	return Event{Type: t, Payload: raw}
}

func (e Event) decodePayload(v any) error {
	p := bytes.TrimSpace(e.Payload)
	if len(p) == 0 || bytes.Equal(p, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, e.Type, err)
	}
	return nil
}

// =============================================================================
// PAYLOAD VARIANTS
// =============================================================================

// TextPayload is carried by text and speak events.
type TextPayload struct {
	Message string `json:"message"`
}

// Text decodes a text or speak payload.
func (e Event) Text() (TextPayload, error) {
	var p TextPayload
	err := e.decodePayload(&p)
	return p, err
}

// ChoicePayload is carried by choice events. Buttons is nil when the field
// was absent and empty when the backend sent an empty list.
type ChoicePayload struct {
	Buttons []Button `json:"buttons"`
}

// Choice decodes a choice payload.
func (e Event) Choice() (ChoicePayload, error) {
	var p ChoicePayload
	err := e.decodePayload(&p)
	return p, err
}

// CarouselPayload is carried by carousel events.
type CarouselPayload struct {
	Layout string `json:"layout"`
	Cards  []Card `json:"cards"`
}

// Carousel decodes a carousel payload.
func (e Event) Carousel() (CarouselPayload, error) {
	var p CarouselPayload
	err := e.decodePayload(&p)
	return p, err
}

// CompletionState is the phase of a streamed completion turn.
type CompletionState string

const (
	CompletionStart   CompletionState = "start"
	CompletionContent CompletionState = "content"
	CompletionEnd     CompletionState = "end"
)

// CompletionPayload is carried by completion events.
type CompletionPayload struct {
	State   CompletionState `json:"state"`
	Content string          `json:"content,omitempty"`
}

// Completion decodes a completion payload.
func (e Event) Completion() (CompletionPayload, error) {
	var p CompletionPayload
	err := e.decodePayload(&p)
	return p, err
}

// =============================================================================
// BUTTONS AND CARDS
// =============================================================================

// Button is a choice offered to the user. Request is sent back verbatim as
// the action when the button is pressed.
type Button struct {
	Name    string          `json:"name"`
	Request json.RawMessage `json:"request,omitempty"`
}

// Card is one entry of a carousel.
type Card struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description CardDescription `json:"description"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Buttons     []Button        `json:"buttons"`
}

// CardDescription holds the card body text.
type CardDescription struct {
	Text string `json:"text"`
}

type buttonRequest struct {
	Type    string `json:"type"`
	Payload struct {
		URL     string `json:"url"`
		Actions []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"actions"`
	} `json:"payload"`
}

// LinkURL returns the URL of an open_url action attached to the button.
// Link buttons are opened by the client and never sent to the runtime.
func (b Button) LinkURL() (string, bool) {
	if len(b.Request) == 0 {
		return "", false
	}
	var req buttonRequest
	if err := json.Unmarshal(b.Request, &req); err != nil {
		return "", false
	}
	for _, a := range req.Payload.Actions {
		if a.Type == "open_url" && a.Payload.URL != "" {
			return a.Payload.URL, true
		}
	}
	if req.Type == "open_url" && req.Payload.URL != "" {
		return req.Payload.URL, true
	}
	return "", false
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voiceflow

import (
	"encoding/json"
	"errors"

	"github.com/jeranaias/vfchat/internal/trace"
)

// ErrNoAction is returned when a button carries no request object.
var ErrNoAction = errors.New("button has no request")

// Request is the body of an interact call.
type Request struct {
	Action    json.RawMessage `json:"action"`
	Variables map[string]any  `json:"variables,omitempty"`
}

type action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// encode marshals an action. Payloads are strings or maps of plain values.
func encode(a action) json.RawMessage {
	raw, _ := json.Marshal(a)
	return raw
}

// Launch starts a conversation. The variables double as the launch payload.
func Launch(variables map[string]any) Request {
	payload := variables
	if payload == nil {
		payload = map[string]any{}
	}
	return Request{
		Action:    encode(action{Type: "launch", Payload: payload}),
		Variables: variables,
	}
}

// Text sends a user utterance.
func Text(message string, variables map[string]any) Request {
	return Request{
		Action:    encode(action{Type: "text", Payload: message}),
		Variables: variables,
	}
}

// Button sends a button's request object verbatim.
func Button(b trace.Button, variables map[string]any) (Request, error) {
	if len(b.Request) == 0 || string(b.Request) == "null" {
		return Request{}, ErrNoAction
	}
	return Request{Action: b.Request, Variables: variables}, nil
}

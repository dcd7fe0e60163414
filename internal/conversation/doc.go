// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the state of one chat session and dispatches
// trace events into it.
//
// A Session aggregates the message store, the source tracker, the carousel
// binding table, the completion state machine, the reveal scheduler and the
// scroll-follow controller. All of them are mutated from a single
// cooperative event loop (the Bubble Tea program loop), so none of them use
// locks. Asynchronous work comes back into the loop as messages:
//
//   - TraceMsg and StreamDoneMsg from the transport goroutines
//   - reveal.StepMsg, completion.InactivityMsg and follow.TickMsg from timers
//
// Every one of these carries a generation token. Session.Update drops any
// message whose token belongs to a superseded request or a cancelled timer.
//
// # Lifecycle
//
//	s := conversation.New(conversation.DefaultConfig())
//	req, _ := s.OnStart("hello")      // user message, new request generation
//	cmd := s.OnChunk(chunk)           // feed raw stream text synchronously
//	cmd = s.Update(msg)               // or deliver messages from the loop
//	s.OnReset()                       // discard everything, cancel timers
package conversation

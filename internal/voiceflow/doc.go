// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voiceflow is the transport for the Voiceflow Dialog API streaming
// endpoint.
//
// A request is a single POST to
//
//	{runtime}/v2/project/{project}/user/{user}/interact/stream?completion_events=true
//
// whose body is {"action": ..., "variables": ...}. The response is an event
// stream. Client.Stream reads it on one goroutine, pushes frames over a
// channel to a second goroutine that decodes trace events, and hands each
// event to the caller in arrival order.
//
// Failures before the body is readable are returned as-is (ErrNotConfigured,
// *APIError, ErrNoBody). A failure while reading is wrapped in *StreamError.
// Nothing is retried here.
package voiceflow

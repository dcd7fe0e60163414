// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse decodes the line-oriented event-stream protocol spoken by the
// conversational runtime.
//
// The Parser is a stateful line buffer: raw text chunks go in, complete
// frames come out. It does not care how the transport split the bytes, so
// feeding a body one byte at a time yields exactly the same frames as feeding
// it whole.
//
// # Usage
//
//	var p sse.Parser
//	p.Feed("event: trace\ndata: {}\n", handle)
//	p.Feed("\n", handle) // handle is called once here
//
// Decode wraps a Parser around an io.Reader and delivers frames over a
// channel, which is how the transport hands frames to the trace decoder.
package sse

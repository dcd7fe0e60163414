// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import "strings"

// =============================================================================
// FRAME TYPE
// =============================================================================

// Frame is one complete unit of the stream, bounded by a blank line.
type Frame struct {
	Event string
	Data  string
	ID    string
}

// Field prefixes recognised by the parser. Any other line is ignored.
const (
	fieldEvent = "event:"
	fieldID    = "id:"
	fieldData  = "data:"
)

// =============================================================================
// PARSER
// =============================================================================

// Parser turns arbitrary text chunks into complete frames.
// The zero value is ready to use. A Parser is not safe for concurrent use;
// it is owned by whichever goroutine reads the stream.
type Parser struct {
	// pending holds the trailing, possibly truncated, line of the last chunk.
	pending string

	event string
	id    string
	data  string
}

// Feed appends chunk to the internal buffer and calls emit, synchronously and
// in arrival order, for every frame whose terminating blank line is now
// complete. The last line of the buffer is kept for the next call unless it
// was terminated by a line break.
func (p *Parser) Feed(chunk string, emit func(Frame)) {
	if chunk == "" {
		return
	}

	buf := p.pending + chunk
	for {
		idx := strings.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		line := buf[:idx]
		buf = buf[idx+1:]
		p.processLine(strings.TrimSuffix(line, "\r"), emit)
	}
	p.pending = buf
}

// processLine applies one complete line to the accumulators.
func (p *Parser) processLine(line string, emit func(Frame)) {
	switch {
	case line == "":
		if p.event != "" && p.data != "" && emit != nil {
			emit(Frame{Event: p.event, Data: p.data, ID: p.id})
		}
		p.event, p.id, p.data = "", "", ""
	case strings.HasPrefix(line, fieldEvent):
		p.event = fieldValue(line[len(fieldEvent):])
	case strings.HasPrefix(line, fieldID):
		p.id = fieldValue(line[len(fieldID):])
	case strings.HasPrefix(line, fieldData):
		p.data = fieldValue(line[len(fieldData):])
	}
}

// Pending returns the number of buffered bytes not yet terminated by a line break.
func (p *Parser) Pending() int {
	return len(p.pending)
}

// Reset discards buffered text and any half-built frame.
func (p *Parser) Reset() {
	p.pending = ""
	p.event, p.id, p.data = "", "", ""
}

func fieldValue(v string) string {
	return strings.TrimLeft(v, " \t")
}

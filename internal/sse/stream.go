// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"context"
	"errors"
	"io"
)

// ReadBufferSize is the size of a single read from the underlying body.
const ReadBufferSize = 4 * 1024

// Decode reads r until EOF and sends every complete frame to out, in order.
// It returns nil on EOF, ctx.Err() on cancellation, or the read error. A
// frame whose blank-line terminator never arrived is not delivered.
// Decode does not close out.
func Decode(ctx context.Context, r io.Reader, out chan<- Frame) error {
	var (
		parser  Parser
		sendErr error
	)

	emit := func(f Frame) {
		if sendErr != nil {
			return
		}
		select {
		case out <- f:
		case <-ctx.Done():
			sendErr = ctx.Err()
		}
	}

	buf := make([]byte, ReadBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			parser.Feed(string(buf[:n]), emit)
			if sendErr != nil {
				return sendErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

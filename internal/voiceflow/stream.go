// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voiceflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/vfchat/internal/sse"
	"github.com/jeranaias/vfchat/internal/trace"
)

// StreamError represents an error that occurred while reading the stream.
// Events delivered before the error stay delivered.
type StreamError struct {
	Events int // events handed to the caller before the error
	Err    error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Events > 0 {
		return fmt.Sprintf("stream error (after %d events): %v", e.Events, e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// Stream sends r for userID and calls handle for every trace event in the
// response, in order, until the stream ends. handle runs on a goroutine owned
// by Stream. Malformed frames are logged and skipped.
func (c *Client) Stream(ctx context.Context, userID string, r Request, handle func(trace.Event)) error {
	resp, err := c.open(ctx, userID, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	frames := make(chan sse.Frame, c.buffer)
	delivered := 0

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(frames)
		return sse.Decode(gctx, resp.Body, frames)
	})
	g.Go(func() error {
		for f := range frames {
			ev, err := trace.FromFrame(f)
			if err != nil {
				c.logger.Warn("dropping malformed frame",
					zap.String("event", f.Event),
					zap.String("id", f.ID),
					zap.Error(err))
				continue
			}
			delivered++
			handle(ev)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return &StreamError{Events: delivered, Err: err}
	}
	c.logger.Debug("stream complete", zap.Int("events", delivered))
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/vfchat/internal/conversation"
	"github.com/jeranaias/vfchat/internal/logging"
	"github.com/jeranaias/vfchat/internal/trace"
	"github.com/jeranaias/vfchat/internal/transcript"
	"github.com/jeranaias/vfchat/internal/voiceflow"
)

// =============================================================================
// HEADLESS DRIVER
// =============================================================================

// driver runs a session without a UI. Every turn runs to completion on the
// caller's goroutine; text is revealed instantly and timers are not run.
type driver struct {
	app     *app
	session *conversation.Session
	logger  *zap.Logger

	saves []<-chan struct{}
}

func newDriver(a *app) *driver {
	cfg := sessionConfig(a.cfg)
	cfg.RevealDelay = 0
	logger := logging.Named(a.logger, "driver")
	return &driver{
		app:     a,
		session: conversation.New(cfg, conversation.WithLogger(logging.Named(a.logger, "session"))),
		logger:  logger,
	}
}

// launch starts the conversation.
func (d *driver) launch(ctx context.Context) error {
	req := d.session.OnLaunch()
	return d.run(ctx, req, voiceflow.Launch(d.app.variables))
}

// send sends a text turn.
func (d *driver) send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	req, err := d.session.OnStart(text)
	if err != nil {
		return err
	}
	return d.run(ctx, req, voiceflow.Text(text, d.app.variables))
}

// press sends the i-th button (zero-based). A link button is not sent; its
// URL is returned instead.
func (d *driver) press(ctx context.Context, i int) (string, error) {
	b, ok := d.session.Button(i)
	if !ok {
		return "", &NotFoundError{Resource: "button", ID: fmt.Sprintf("%d", i+1)}
	}
	if url, ok := b.LinkURL(); ok {
		return url, nil
	}
	r, err := voiceflow.Button(b, d.app.variables)
	if err != nil {
		return "", err
	}
	req, err := d.session.OnStart(b.Name)
	if err != nil {
		return "", err
	}
	return "", d.run(ctx, req, r)
}

// reset discards the conversation and starts a new one.
func (d *driver) reset(ctx context.Context) error {
	d.session.OnReset()
	return d.launch(ctx)
}

func (d *driver) run(ctx context.Context, req uint64, r voiceflow.Request) error {
	userID := d.app.identity.UserID(d.app.variables)
	d.logger.Debug("turn", zap.Uint64("request", req), zap.String("user_id", userID))

	// The session is only touched by the stream's handler goroutine until
	// Stream returns.
	err := d.app.client.Stream(ctx, userID, r, func(ev trace.Event) {
		d.session.Update(conversation.TraceMsg{Request: req, Event: ev})
	})
	d.session.Update(conversation.StreamDoneMsg{Request: req, Err: err})
	if err != nil {
		return err
	}
	d.session.EndTurn()
	d.save(ctx, userID)
	return nil
}

func (d *driver) save(ctx context.Context, userID string) {
	if d.app.saver == nil {
		return
	}
	rec := transcript.Record{
		UserID:    userID,
		SessionID: d.app.identity.SessionUserID(),
		Messages:  d.session.Messages(),
	}
	d.saves = append(d.saves, transcript.SaveAsync(context.WithoutCancel(ctx), d.app.saver, rec, d.logger))
}

// wait blocks until pending transcript saves finish or ctx is done.
func (d *driver) wait(ctx context.Context) {
	for _, done := range d.saves {
		select {
		case <-done:
		case <-ctx.Done():
			d.logger.Warn("transcript saves still pending at exit")
			return
		}
	}
	d.saves = nil
}

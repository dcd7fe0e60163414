// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/vfchat/internal/model"
)

// Record is one saved snapshot of a conversation.
type Record struct {
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	Messages  []model.Message `json:"messages"`
	SavedAt   time.Time       `json:"saved_at"`
}

// Saver persists records.
type Saver interface {
	Save(ctx context.Context, rec Record) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, rec Record) error

// Save calls f.
func (f SaverFunc) Save(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Multi saves to every saver and joins their errors.
type Multi []Saver

// Save implements Saver.
func (m Multi) Save(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveAsync runs saver in a goroutine and logs any failure. The returned
// channel is closed when the save has finished; callers may ignore it.
func SaveAsync(ctx context.Context, saver Saver, rec Record, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now()
	}
	go func() {
		defer close(done)
		if err := saver.Save(ctx, rec); err != nil {
			logger.Warn("transcript save failed",
				zap.String("user_id", rec.UserID),
				zap.Int("messages", len(rec.Messages)),
				zap.Error(err))
			return
		}
		logger.Debug("transcript saved", zap.String("user_id", rec.UserID))
	}()
	return done
}

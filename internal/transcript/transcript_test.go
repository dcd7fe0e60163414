// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/vfchat/internal/model"
)

func sampleRecord() Record {
	return Record{
		UserID:    "user_1",
		SessionID: "user_1",
		Messages: []model.Message{
			{ID: "user-1", Role: model.RoleUser, Content: "hi"},
			{ID: "text-1", Role: model.RoleAgent, Content: "hello"},
		},
		SavedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// API SAVER
// =============================================================================

func TestAPISaver_Save(t *testing.T) {
	var got map[string]string
	var method, path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, auth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewAPISaver(APIConfig{BaseURL: srv.URL, APIKey: "VF.key", ProjectID: "proj", VersionID: "production"})
	require.NoError(t, s.Save(context.Background(), sampleRecord()))

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/v2/transcripts", path)
	assert.Equal(t, "VF.key", auth)
	assert.Equal(t, map[string]string{"projectID": "proj", "versionID": "production", "sessionID": "user_1"}, got)
}

func TestAPISaver_Errors(t *testing.T) {
	assert.ErrorIs(t, NewAPISaver(APIConfig{}).Save(context.Background(), sampleRecord()), ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewAPISaver(APIConfig{BaseURL: srv.URL, APIKey: "k", ProjectID: "p"})
	err := s.Save(context.Background(), sampleRecord())
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusTooManyRequests, status.Status)
	assert.True(t, status.Temporary())
	assert.Equal(t, "slow down", status.Body)
}

// =============================================================================
// SQLITE STORE
// =============================================================================

func TestSQLiteStore_SaveAndLatest(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "transcripts.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.Latest(ctx, "user_1")
	assert.ErrorIs(t, err, ErrNoTranscript)

	first := sampleRecord()
	require.NoError(t, store.Save(ctx, first))

	second := sampleRecord()
	second.SavedAt = first.SavedAt.Add(time.Minute)
	second.Messages = append(second.Messages, model.Message{ID: "user-2", Role: model.RoleUser, Content: "bye"})
	require.NoError(t, store.Save(ctx, second))

	other := sampleRecord()
	other.UserID = "user_2"
	require.NoError(t, store.Save(ctx, other))

	latest, err := store.Latest(ctx, "user_1")
	require.NoError(t, err)
	assert.Len(t, latest.Messages, 3)
	assert.Equal(t, "bye", latest.Messages[2].Content)
	assert.True(t, latest.SavedAt.Equal(second.SavedAt))

	n, err := store.Count(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStore_Memory(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), sampleRecord()))
	rec, err := store.Latest(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Messages[1].Content)
}

// =============================================================================
// RETRY, THROTTLE, MULTI
// =============================================================================

func TestRetrier(t *testing.T) {
	transient := errors.New("network down")

	tests := []struct {
		name      string
		failures  int
		failWith  error
		attempts  int
		wantCalls int32
		wantErr   bool
	}{
		{"first try", 0, nil, 3, 1, false},
		{"recovers", 2, transient, 3, 3, false},
		{"exhausted", 5, transient, 3, 3, true},
		{"not configured is final", 5, ErrNotConfigured, 3, 1, true},
		{"client error is final", 5, &StatusError{Status: 400}, 3, 1, true},
		{"server error retried", 1, &StatusError{Status: 503}, 3, 2, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			saver := SaverFunc(func(context.Context, Record) error {
				n := atomic.AddInt32(&calls, 1)
				if int(n) <= tc.failures {
					return tc.failWith
				}
				return nil
			})

			r := Retrier{Saver: saver, Attempts: tc.attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
			err := r.Save(context.Background(), sampleRecord())
			assert.Equal(t, tc.wantErr, err != nil, "err = %v", err)
			assert.Equal(t, tc.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestRetrier_Backoff(t *testing.T) {
	r := Retrier{}
	assert.Equal(t, 500*time.Millisecond, r.backoff(0))
	assert.Equal(t, time.Second, r.backoff(1))
	assert.Equal(t, 2*time.Second, r.backoff(2))
	assert.Equal(t, 10*time.Second, r.backoff(10))
	assert.Equal(t, 10*time.Second, r.backoff(80), "overflow is capped")
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	saver := SaverFunc(func(context.Context, Record) error {
		cancel()
		return errors.New("fail")
	})
	err := Retrier{Saver: saver, Attempts: 5, BaseDelay: time.Hour}.Save(ctx, sampleRecord())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveWithRetry(t *testing.T) {
	var calls int32
	saver := SaverFunc(func(context.Context, Record) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("network down")
		}
		return nil
	})
	require.NoError(t, SaveWithRetry(context.Background(), saver, sampleRecord(), 2))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	calls = 0
	final := SaverFunc(func(context.Context, Record) error {
		atomic.AddInt32(&calls, 1)
		return ErrNotConfigured
	})
	assert.ErrorIs(t, SaveWithRetry(context.Background(), final, sampleRecord(), 0), ErrNotConfigured)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestThrottled(t *testing.T) {
	var calls int32
	saver := SaverFunc(func(context.Context, Record) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	th := NewThrottled(saver, time.Hour, 1)

	require.NoError(t, th.Save(context.Background(), sampleRecord()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := th.Save(ctx, sampleRecord())
	assert.Error(t, err, "second save must wait for a token")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	var okCalls int
	m := Multi{
		SaverFunc(func(context.Context, Record) error { okCalls++; return nil }),
		SaverFunc(func(context.Context, Record) error { return boom }),
	}
	err := m.Save(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, okCalls)
}

func TestSaveAsync_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	saver := SaverFunc(func(context.Context, Record) error { return errors.New("offline") })

	<-SaveAsync(context.Background(), saver, sampleRecord(), zap.New(core))
	assert.Equal(t, 1, logs.FilterMessage("transcript save failed").Len())
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voiceflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/vfchat/internal/trace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}

const twoFrames = "event: trace\nid: 1\ndata: {\"type\":\"text\",\"payload\":{\"message\":\"Hi\"}}\n\n" +
	"event: trace\nid: 2\ndata: {\"type\":\"choice\",\"payload\":{\"buttons\":[]}}\n\n"

type collector struct {
	mu     sync.Mutex
	events []trace.Event
}

func (c *collector) handle(ev trace.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) types() []trace.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]trace.Type, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

// roundTripFunc lets a test hand back an arbitrary response.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func bodyClient(body io.ReadCloser) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: body, Header: http.Header{}}, nil
	})}
}

func TestClient_StreamRequestShape(t *testing.T) {
	var (
		gotPath   string
		gotQuery  string
		gotHeader http.Header
		gotBody   map[string]json.RawMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, twoFrames)
	}))
	defer srv.Close()

	c := New(Config{RuntimeURL: srv.URL + "/", APIKey: "VF.DM.key", ProjectID: "proj", HTTPClient: srv.Client()})
	var col collector
	err := c.Stream(context.Background(), "user_abc", Text("hello", nil), col.handle)
	require.NoError(t, err)

	assert.Equal(t, "/v2/project/proj/user/user_abc/interact/stream", gotPath)
	assert.Equal(t, "completion_events=true", gotQuery)
	assert.Equal(t, "VF.DM.key", gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "text/event-stream", gotHeader.Get("Accept"))
	assert.Equal(t, DefaultVersionID, gotHeader.Get("versionID"))
	assert.JSONEq(t, `{"type":"text","payload":"hello"}`, string(gotBody["action"]))
	_, hasVars := gotBody["variables"]
	assert.False(t, hasVars, "empty variables are omitted")

	assert.Equal(t, []trace.Type{trace.TypeText, trace.TypeChoice}, col.types())
	assert.Equal(t, "1", col.events[0].FrameID)
}

func TestClient_NotConfigured(t *testing.T) {
	called := false
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("unreachable")
	})}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no key", Config{ProjectID: "p", HTTPClient: client}},
		{"no project", Config{APIKey: "k", HTTPClient: client}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(tc.cfg)
			assert.False(t, c.IsConfigured())
			err := c.Stream(context.Background(), "u", Text("x", nil), func(trace.Event) {})
			assert.ErrorIs(t, err, ErrNotConfigured)
		})
	}
	assert.False(t, called, "no I/O without configuration")
}

func TestClient_APIError(t *testing.T) {
	long := strings.Repeat("x", 2*MaxErrorBody)
	tests := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"bad key"}`, true},
		{"server error", http.StatusInternalServerError, "boom", false},
		{"long body truncated", http.StatusBadGateway, long, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := New(Config{RuntimeURL: srv.URL, APIKey: "k", ProjectID: "p", HTTPClient: srv.Client()})
			var col collector
			err := c.Stream(context.Background(), "u", Launch(nil), col.handle)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.LessOrEqual(t, len(apiErr.Body), MaxErrorBody)
			assert.Equal(t, tc.wantAuth, errors.Is(err, ErrAuthFailed))
			assert.Empty(t, col.types())
		})
	}
}

func TestClient_NoBody(t *testing.T) {
	c := New(Config{APIKey: "k", ProjectID: "p", HTTPClient: bodyClient(http.NoBody)})
	err := c.Stream(context.Background(), "u", Launch(nil), func(trace.Event) {})
	assert.ErrorIs(t, err, ErrNoBody)
}

func TestClient_MidStreamError(t *testing.T) {
	readErr := errors.New("connection reset")
	body := io.NopCloser(io.MultiReader(strings.NewReader(twoFrames), iotest.ErrReader(readErr)))
	c := New(Config{APIKey: "k", ProjectID: "p", HTTPClient: bodyClient(body)})

	var col collector
	err := c.Stream(context.Background(), "u", Launch(nil), col.handle)

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, 2, streamErr.Events)
	assert.Len(t, col.types(), 2, "events before the error stay delivered")
}

func TestClient_MalformedFrameSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	input := "event: trace\ndata: {oops\n\n" + twoFrames
	c := New(Config{
		APIKey:     "k",
		ProjectID:  "p",
		HTTPClient: bodyClient(io.NopCloser(strings.NewReader(input))),
		Logger:     zap.New(core),
	})

	var col collector
	require.NoError(t, c.Stream(context.Background(), "u", Launch(nil), col.handle))
	assert.Len(t, col.types(), 2)
	assert.Equal(t, 1, logs.FilterMessage("dropping malformed frame").Len())
}

func TestClient_ContextCancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, twoFrames)
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Config{RuntimeURL: srv.URL, APIKey: "k", ProjectID: "p", HTTPClient: srv.Client()})

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Stream(ctx, "u", Launch(nil), func(trace.Event) {})
	}()
	<-started
	cancel()

	err := <-errCh
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// REQUEST TESTS
// =============================================================================

func TestRequest_Actions(t *testing.T) {
	vars := map[string]any{"produkt_navn": "Kaffe"}

	launch := Launch(vars)
	assert.JSONEq(t, `{"type":"launch","payload":{"produkt_navn":"Kaffe"}}`, string(launch.Action))
	assert.Equal(t, vars, launch.Variables)

	empty := Launch(nil)
	assert.JSONEq(t, `{"type":"launch","payload":{}}`, string(empty.Action))

	b := trace.Button{Name: "Yes", Request: json.RawMessage(`{"type":"path-1","payload":{"label":"Yes"}}`)}
	req, err := Button(b, nil)
	require.NoError(t, err)
	assert.JSONEq(t, string(b.Request), string(req.Action))

	_, err = Button(trace.Button{Name: "nothing"}, nil)
	assert.ErrorIs(t, err, ErrNoAction)
}

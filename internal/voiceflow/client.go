// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voiceflow

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Configuration constants for the Dialog API.
const (
	// DefaultRuntimeURL is the public general runtime.
	DefaultRuntimeURL = "https://general-runtime.voiceflow.com"

	// DefaultVersionID selects the published version of a project.
	DefaultVersionID = "production"

	// MaxErrorBody is how much of an error response body is kept.
	MaxErrorBody = 512

	// DefaultFrameBuffer is the capacity of the frame channel between the
	// reader and the decoder.
	DefaultFrameBuffer = 64
)

var (
	// sharedStreamingClient is used for streaming requests (no timeout, context-controlled).
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// Error variables for transport failures.
var (
	// ErrNotConfigured indicates the API key or project id is not set.
	ErrNotConfigured = errors.New("voiceflow API key or project ID not configured")

	// ErrNoBody indicates a successful response without a readable body.
	ErrNoBody = errors.New("response has no body")

	// ErrAuthFailed matches an *APIError with status 401 or 403.
	ErrAuthFailed = errors.New("authentication failed")
)

// APIError is a non-success HTTP response.
type APIError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API failed with status %d", e.Status)
	}
	return fmt.Sprintf("API failed with status %d: %s", e.Status, e.Body)
}

// Is lets errors.Is(err, ErrAuthFailed) match authentication failures.
func (e *APIError) Is(target error) bool {
	return target == ErrAuthFailed &&
		(e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// =============================================================================
// CLIENT
// =============================================================================

// Config holds client settings.
type Config struct {
	RuntimeURL string
	APIKey     string
	ProjectID  string
	VersionID  string

	// HTTPClient overrides the shared streaming client.
	HTTPClient *http.Client

	// FrameBuffer overrides DefaultFrameBuffer.
	FrameBuffer int

	Logger *zap.Logger
}

// Client talks to one project on one runtime.
// It is safe for concurrent use.
type Client struct {
	runtimeURL string
	apiKey     string
	projectID  string
	versionID  string
	httpClient *http.Client
	buffer     int
	logger     *zap.Logger
}

// New creates a client. Empty fields fall back to defaults.
func New(cfg Config) *Client {
	c := &Client{
		runtimeURL: strings.TrimRight(cfg.RuntimeURL, "/"),
		apiKey:     cfg.APIKey,
		projectID:  cfg.ProjectID,
		versionID:  cfg.VersionID,
		httpClient: cfg.HTTPClient,
		buffer:     cfg.FrameBuffer,
		logger:     cfg.Logger,
	}
	if c.runtimeURL == "" {
		c.runtimeURL = DefaultRuntimeURL
	}
	if c.versionID == "" {
		c.versionID = DefaultVersionID
	}
	if c.httpClient == nil {
		c.httpClient = sharedStreamingClient
	}
	if c.buffer <= 0 {
		c.buffer = DefaultFrameBuffer
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// IsConfigured reports whether the client has credentials and a project.
func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.projectID != ""
}

// ProjectID returns the configured project id.
func (c *Client) ProjectID() string {
	return c.projectID
}

// VersionID returns the configured version id.
func (c *Client) VersionID() string {
	return c.versionID
}

// endpoint builds the interact/stream URL for a user.
func (c *Client) endpoint(userID string) string {
	q := url.Values{}
	q.Set("completion_events", "true")
	return fmt.Sprintf("%s/v2/project/%s/user/%s/interact/stream?%s",
		c.runtimeURL,
		url.PathEscape(c.projectID),
		url.PathEscape(userID),
		q.Encode())
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("versionID", c.versionID)
}

// open sends the request and returns a response whose body is ready to read.
func (c *Client) open(ctx context.Context, userID string, r Request) (*http.Response, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	bodyBytes, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(userID), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBody))
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrNoBody
	}
	return resp, nil
}

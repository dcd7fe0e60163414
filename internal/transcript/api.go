// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAPIURL is the Voiceflow management API.
	DefaultAPIURL = "https://api.voiceflow.com"

	// DefaultTimeout bounds one save request.
	DefaultTimeout = 15 * time.Second
)

// ErrNotConfigured indicates missing API credentials.
var ErrNotConfigured = errors.New("transcript API not configured")

// StatusError is a non-success response from the transcript API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcript API returned %d: %s", e.Status, e.Body)
}

// Temporary reports whether retrying may help.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// APIConfig configures an APISaver.
type APIConfig struct {
	BaseURL    string
	APIKey     string
	ProjectID  string
	VersionID  string
	HTTPClient *http.Client
}

// APISaver asks the Voiceflow API to store the runtime transcript for a
// session. The runtime already holds the turns, so only ids are sent.
type APISaver struct {
	cfg APIConfig
}

// NewAPISaver creates an APISaver.
func NewAPISaver(cfg APIConfig) *APISaver {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &APISaver{cfg: cfg}
}

type saveRequest struct {
	ProjectID string `json:"projectID"`
	VersionID string `json:"versionID,omitempty"`
	SessionID string `json:"sessionID"`
}

// Save implements Saver.
func (a *APISaver) Save(ctx context.Context, rec Record) error {
	if a.cfg.APIKey == "" || a.cfg.ProjectID == "" {
		return ErrNotConfigured
	}

	sessionID := rec.SessionID
	if sessionID == "" {
		sessionID = rec.UserID
	}
	body, err := json.Marshal(saveRequest{
		ProjectID: a.cfg.ProjectID,
		VersionID: a.cfg.VersionID,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.cfg.BaseURL+"/v2/transcripts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

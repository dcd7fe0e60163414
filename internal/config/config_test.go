// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and blanks the
// environment variables Load honors.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, b := range envBindings {
		for _, key := range b.keys {
			t.Setenv(key, "")
		}
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// called concurrently.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.Version = "test"
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

// TestConfig_ConcurrentReload tests concurrent ReloadGlobal and Global calls.
func TestConfig_ConcurrentReload(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	_ = Global()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ReloadGlobal()
		}()
	}
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_GlobalInitialization(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	cfg := Global()
	require.NotNil(t, cfg)
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, DefaultRuntimeURL, cfg.Runtime.URL)
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	_ = Global()

	custom := Default()
	custom.Version = "custom-version"
	SetGlobal(custom)

	if got := Global().Version; got != "custom-version" {
		t.Errorf("Expected version 'custom-version', got '%s'", got)
	}
}

func TestConfig_Default(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultVersionID, cfg.Runtime.VersionID)
	assert.Equal(t, 5*time.Millisecond, cfg.Stream.RevealDelay())
	assert.Equal(t, 3*time.Second, cfg.Stream.InactivityTimeout())
	assert.Equal(t, 80*time.Millisecond, cfg.Stream.FollowPollInterval())
	assert.Equal(t, 2, cfg.Stream.FollowThresholdLines)
	assert.Equal(t, filepath.Join(dir, "vfchat.log"), cfg.Log.File)
	assert.Equal(t, filepath.Join(dir, "transcripts.db"), cfg.Transcript.SQLitePath)
	assert.Empty(t, cfg.Runtime.APIKey)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{name: "valid default config", mutate: func(c *Config) {}},
		{name: "zero reveal delay", mutate: func(c *Config) { c.Stream.RevealDelayMs = 0 }},
		{name: "negative reveal delay", mutate: func(c *Config) { c.Stream.RevealDelayMs = -1 }, field: "stream.reveal_delay_ms", wantErr: true},
		{name: "tiny inactivity timeout", mutate: func(c *Config) { c.Stream.InactivityTimeoutMs = 10 }, field: "stream.inactivity_timeout_ms", wantErr: true},
		{name: "negative follow threshold", mutate: func(c *Config) { c.Stream.FollowThresholdLines = -2 }, field: "stream.follow_threshold_lines", wantErr: true},
		{name: "poll too fast", mutate: func(c *Config) { c.Stream.FollowPollMs = 1 }, field: "stream.follow_poll_ms", wantErr: true},
		{name: "runtime url without scheme", mutate: func(c *Config) { c.Runtime.URL = "runtime.example.com" }, field: "runtime.url", wantErr: true},
		{name: "runtime url ftp", mutate: func(c *Config) { c.Runtime.URL = "ftp://example.com" }, field: "runtime.url", wantErr: true},
		{name: "project id with slash", mutate: func(c *Config) { c.Runtime.ProjectID = "a/b" }, field: "runtime.project_id", wantErr: true},
		{name: "empty transcript api url", mutate: func(c *Config) { c.Transcript.APIURL = "" }},
		{name: "zero attempts", mutate: func(c *Config) { c.Transcript.Attempts = 0 }, field: "transcript.attempts", wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, field: "log.level", wantErr: true},
		{name: "invalid theme", mutate: func(c *Config) { c.UI.Theme = "neon" }, field: "ui.theme", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.UI.Theme = "neon"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 config errors")
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "ui.theme")
}

func TestLoadDir_Layers(t *testing.T) {
	dir := isolate(t)

	writeFile(t, filepath.Join(dir, FileTOML), `
[runtime]
project_id = "from-toml"
api_key = "toml-key"

[stream]
reveal_delay_ms = 0
follow_threshold_lines = 4
`)
	writeFile(t, filepath.Join(dir, FileJSON), `{"runtime": {"project_id": "from-json"}}`)
	writeFile(t, filepath.Join(dir, FileYAML), "log:\n  level: DEBUG\nui:\n  theme: dark\n")

	cfg, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-json", cfg.Runtime.ProjectID)
	assert.Equal(t, "toml-key", cfg.Runtime.APIKey)
	assert.Equal(t, 0, cfg.Stream.RevealDelayMs)
	assert.Equal(t, 4, cfg.Stream.FollowThresholdLines)
	assert.Equal(t, DefaultInactivityTimeoutMs, cfg.Stream.InactivityTimeoutMs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "dark", cfg.UI.Theme)

	info, err := os.Stat(filepath.Join(dir, FileTOML))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadDir_Empty(t *testing.T) {
	dir := isolate(t)
	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadDir_DotEnvAndEnv(t *testing.T) {
	dir := isolate(t)

	writeFile(t, filepath.Join(dir, FileTOML), "[runtime]\napi_key = \"file-key\"\n")
	writeFile(t, filepath.Join(dir, FileDotEnv), "VITE_VOICEFLOW_PROJECT_ID=dotenv-project\nVOICEFLOW_API_KEY=dotenv-key\n")
	t.Setenv("VOICEFLOW_API_KEY", "env-key")

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Runtime.APIKey)
	assert.Equal(t, "dotenv-project", cfg.Runtime.ProjectID)
}

func TestLoadDir_InvalidFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, FileTOML), "[runtime\n")

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOML")
}

func TestLoadDir_InvalidValues(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, FileYAML), "ui:\n  theme: neon\n")

	_, err := LoadDir(dir)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "ui.theme", verrs[0].Field)
}

func TestLoadFromPath(t *testing.T) {
	dir := isolate(t)

	yml := filepath.Join(dir, "custom.yml")
	writeFile(t, yml, "runtime:\n  url: https://runtime.example.com/\n  variables:\n    produkt_navn: Widget Pro\n")

	cfg, err := LoadFromPath(yml)
	require.NoError(t, err)
	assert.Equal(t, "https://runtime.example.com", cfg.Runtime.URL)
	assert.Equal(t, map[string]string{"produkt_navn": "Widget Pro"}, cfg.Runtime.Variables)

	_, err = LoadFromPath(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"VITE_VOICEFLOW_API_KEY": "alias-key",
		"VOICEFLOW_VERSION_ID":   "  development ",
		"VOICEFLOW_PROJECT_ID":   "",
		"VFCHAT_LOG_LEVEL":       "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Runtime.ProjectID = "kept"
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "alias-key", cfg.Runtime.APIKey)
	assert.Equal(t, "development", cfg.Runtime.VersionID)
	assert.Equal(t, "kept", cfg.Runtime.ProjectID)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, DefaultRuntimeURL, cfg.Runtime.URL)
}

func TestEnvKeys(t *testing.T) {
	assert.Equal(t, []string{
		"VOICEFLOW_API_KEY",
		"VOICEFLOW_PROJECT_ID",
		"VOICEFLOW_VERSION_ID",
		"VOICEFLOW_RUNTIME_URL",
		"VFCHAT_LOG_LEVEL",
	}, EnvKeys())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.Runtime.ProjectID = "proj"
	cfg.Stream.RevealDelayMs = 12
	cfg.Runtime.Variables = map[string]string{"lang": "da"}

	require.NoError(t, Save(cfg))
	path := filepath.Join(dir, FileTOML)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# vfchat configuration file"))

	loaded, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	jsonPath := filepath.Join(dir, "export.json")
	require.NoError(t, SaveJSON(cfg, jsonPath))
	fromJSON, err := LoadFromPath(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, fromJSON)
}

func TestConfig_Clone(t *testing.T) {
	original := Default()
	original.Runtime.Variables = map[string]string{"a": "1"}

	clone := original.Clone()
	clone.Version = "cloned"
	clone.Runtime.Variables["a"] = "2"

	assert.Equal(t, CurrentVersion, original.Version)
	assert.Equal(t, "1", original.Runtime.Variables["a"])
}

func TestConfig_StringRedacts(t *testing.T) {
	cfg := Default()
	cfg.Runtime.APIKey = "VF.DM.0123456789abcdef"

	s := cfg.String()
	assert.NotContains(t, s, "0123456789abcdef")
	assert.Contains(t, s, "VF.DM....[REDACTED]")
	assert.Equal(t, "VF.DM.0123456789abcdef", cfg.Runtime.APIKey)

	cfg.Runtime.APIKey = "short"
	assert.Contains(t, cfg.String(), `"api_key": "[REDACTED]"`)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, FileTOML)
	writeFile(t, path, "[stream]\nreveal_delay_ms = 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, dir, 20*time.Millisecond, func(cfg *Config, err error) {
			if err == nil {
				got <- cfg
			}
		})
	}()

	// The watcher registers asynchronously; keep touching the file until a
	// reload is observed.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-got:
			if cfg.Stream.RevealDelayMs != 9 {
				continue
			}
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			writeFile(t, path, "[stream]\nreveal_delay_ms = 9\n")
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	assert.True(t, isConfigFile("/x/config.toml"))
	assert.True(t, isConfigFile(".env"))
	assert.False(t, isConfigFile("/x/config.toml.swp"))
	assert.False(t, isConfigFile("vfchat.log"))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/vfchat/internal/util"
)

// CurrentVersion is written into new config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the vfchat configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	Runtime    RuntimeConfig    `toml:"runtime" json:"runtime" yaml:"runtime"`
	Stream     StreamConfig     `toml:"stream" json:"stream" yaml:"stream"`
	Transcript TranscriptConfig `toml:"transcript" json:"transcript" yaml:"transcript"`
	Log        LogConfig        `toml:"log" json:"log" yaml:"log"`
	UI         UIConfig         `toml:"ui" json:"ui" yaml:"ui"`
}

// RuntimeConfig addresses the dialog runtime.
type RuntimeConfig struct {
	URL       string `toml:"url" json:"url" yaml:"url"`
	APIKey    string `toml:"api_key" json:"api_key" yaml:"api_key"`
	ProjectID string `toml:"project_id" json:"project_id" yaml:"project_id"`
	VersionID string `toml:"version_id" json:"version_id" yaml:"version_id"`

	// Variables are sent with every request.
	Variables map[string]string `toml:"variables" json:"variables,omitempty" yaml:"variables,omitempty"`
}

// StreamConfig holds the timings of the streaming core.
type StreamConfig struct {
	// RevealDelayMs is the delay between reveal steps. Zero reveals at once.
	RevealDelayMs        int `toml:"reveal_delay_ms" json:"reveal_delay_ms" yaml:"reveal_delay_ms"`
	InactivityTimeoutMs  int `toml:"inactivity_timeout_ms" json:"inactivity_timeout_ms" yaml:"inactivity_timeout_ms"`
	FollowThresholdLines int `toml:"follow_threshold_lines" json:"follow_threshold_lines" yaml:"follow_threshold_lines"`
	FollowPollMs         int `toml:"follow_poll_ms" json:"follow_poll_ms" yaml:"follow_poll_ms"`
}

// RevealDelay returns RevealDelayMs as a duration.
func (s StreamConfig) RevealDelay() time.Duration {
	return time.Duration(s.RevealDelayMs) * time.Millisecond
}

// InactivityTimeout returns InactivityTimeoutMs as a duration.
func (s StreamConfig) InactivityTimeout() time.Duration {
	return time.Duration(s.InactivityTimeoutMs) * time.Millisecond
}

// FollowPollInterval returns FollowPollMs as a duration.
func (s StreamConfig) FollowPollInterval() time.Duration {
	return time.Duration(s.FollowPollMs) * time.Millisecond
}

// TranscriptConfig controls transcript persistence after each turn.
type TranscriptConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// APIURL is the transcript API base. Empty disables the remote saver.
	APIURL string `toml:"api_url" json:"api_url" yaml:"api_url"`

	// SQLitePath is the local transcript database. Empty disables it.
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path" yaml:"sqlite_path"`

	Attempts      int `toml:"attempts" json:"attempts" yaml:"attempts"`
	MinIntervalMs int `toml:"min_interval_ms" json:"min_interval_ms" yaml:"min_interval_ms"`
}

// MinInterval returns MinIntervalMs as a duration.
func (t TranscriptConfig) MinInterval() time.Duration {
	return time.Duration(t.MinIntervalMs) * time.Millisecond
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `toml:"level" json:"level" yaml:"level"`
	File  string `toml:"file" json:"file" yaml:"file"`
}

// UIConfig controls the terminal renderer.
type UIConfig struct {
	Theme    string `toml:"theme" json:"theme" yaml:"theme"` // auto, dark, light, notty
	WordWrap int    `toml:"word_wrap" json:"word_wrap" yaml:"word_wrap"`
	Markdown bool   `toml:"markdown" json:"markdown" yaml:"markdown"`
	Mouse    bool   `toml:"mouse" json:"mouse" yaml:"mouse"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	DefaultRuntimeURL           = "https://general-runtime.voiceflow.com"
	DefaultTranscriptAPIURL     = "https://api.voiceflow.com"
	DefaultVersionID            = "production"
	DefaultRevealDelayMs        = 5
	DefaultInactivityTimeoutMs  = 3000
	DefaultFollowThresholdLines = 2
	DefaultFollowPollMs         = 80
	DefaultTranscriptAttempts   = 3
	DefaultTranscriptIntervalMs = 1000
	DefaultLogLevel             = "info"
	DefaultTheme                = "auto"
)

// Default returns a config with every field set to its default. The
// dialog runtime credentials are left empty.
func Default() *Config {
	cfg := &Config{
		Version: CurrentVersion,
		Runtime: RuntimeConfig{
			URL:       DefaultRuntimeURL,
			VersionID: DefaultVersionID,
		},
		Stream: StreamConfig{
			RevealDelayMs:        DefaultRevealDelayMs,
			InactivityTimeoutMs:  DefaultInactivityTimeoutMs,
			FollowThresholdLines: DefaultFollowThresholdLines,
			FollowPollMs:         DefaultFollowPollMs,
		},
		Transcript: TranscriptConfig{
			Enabled:       true,
			APIURL:        DefaultTranscriptAPIURL,
			Attempts:      DefaultTranscriptAttempts,
			MinIntervalMs: DefaultTranscriptIntervalMs,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		UI: UIConfig{
			Theme:    DefaultTheme,
			Markdown: true,
			Mouse:    true,
		},
	}
	if dir, err := ConfigDir(); err == nil {
		cfg.Log.File = filepath.Join(dir, "vfchat.log")
		cfg.Transcript.SQLitePath = filepath.Join(dir, "transcripts.db")
	}
	return cfg
}

// =============================================================================
// PATH FUNCTIONS
// =============================================================================

// HomeEnv overrides the config directory.
const HomeEnv = "VFCHAT_HOME"

// ConfigDir returns the config directory, ~/.vfchat unless VFCHAT_HOME is set.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".vfchat"), nil
}

// File names looked up in the config directory, in load order.
const (
	FileTOML   = "config.toml"
	FileJSON   = "config.json"
	FileYAML   = "config.yaml"
	FileDotEnv = ".env"
)

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileTOML), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// isConfigFile reports whether name is one of the files Load reads.
func isConfigFile(name string) bool {
	switch filepath.Base(name) {
	case FileTOML, FileJSON, FileYAML, FileDotEnv:
		return true
	}
	return false
}

// ensureSecurePermissions tightens config files to 0600 since they may
// carry the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Load loads the configuration from the config directory.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadDir(dir)
}

// LoadDir layers every config file present in dir over the defaults:
// config.toml, then config.json, then config.yaml. Environment variables
// are applied last, with dir/.env and ./.env filling in variables the
// process environment does not set.
func LoadDir(dir string) (*Config, error) {
	cfg := Default()

	loaders := []struct {
		name string
		load func(*Config, string) error
	}{
		{FileTOML, LoadTOML},
		{FileJSON, LoadJSON},
		{FileYAML, LoadYAML},
	}
	for _, l := range loaders {
		path := filepath.Join(dir, l.name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := l.load(cfg, path); err != nil {
			return nil, err
		}
	}

	lookup, err := envLookup(filepath.Join(dir, FileDotEnv), FileDotEnv)
	if err != nil {
		return nil, err
	}
	return finish(cfg, lookup)
}

// LoadFromPath loads a single config file, picking the decoder by extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}

	lookup, err := envLookup(filepath.Join(filepath.Dir(path), FileDotEnv))
	if err != nil {
		return nil, err
	}
	return finish(cfg, lookup)
}

func finish(cfg *Config, lookup LookupFunc) (*Config, error) {
	cfg.ApplyEnv(lookup)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	warnPermissions(path)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	warnPermissions(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file %s: %w", path, err)
	}
	return nil
}

// LoadYAML decodes a YAML file over cfg.
func LoadYAML(cfg *Config, path string) error {
	warnPermissions(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}
	return nil
}

func warnPermissions(path string) {
	// Not fatal: permissions may not be fixable on every filesystem.
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
}

// envLookup returns a lookup that prefers the process environment and falls
// back to the given dotenv files, earlier files winning. Missing files are
// skipped.
func envLookup(paths ...string) (LookupFunc, error) {
	dotenv := make(map[string]string)
	for i := len(paths) - 1; i >= 0; i-- {
		if _, err := os.Stat(paths[i]); err != nil {
			continue
		}
		vars, err := godotenv.Read(paths[i])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", paths[i], err)
		}
		for k, v := range vars {
			dotenv[k] = v
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# vfchat configuration file\n")
	b.WriteString("# Generated by vfchat - edit with care\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every validation failure of a config.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d config errors: %s", len(e), strings.Join(msgs, "; "))
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validThemes = map[string]bool{"auto": true, "dark": true, "light": true, "notty": true}

// Validate checks the config. Missing credentials are not an error here;
// the transport reports them when a request is made.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if err := validateURL(c.Runtime.URL); err != nil {
		add("runtime.url", "%v", err)
	}
	if strings.ContainsAny(c.Runtime.ProjectID, "/?#") {
		add("runtime.project_id", "must not contain URL delimiters")
	}

	if c.Stream.RevealDelayMs < 0 || c.Stream.RevealDelayMs > 1000 {
		add("stream.reveal_delay_ms", "must be between 0 and 1000, got %d", c.Stream.RevealDelayMs)
	}
	if c.Stream.InactivityTimeoutMs < 100 || c.Stream.InactivityTimeoutMs > 60000 {
		add("stream.inactivity_timeout_ms", "must be between 100 and 60000, got %d", c.Stream.InactivityTimeoutMs)
	}
	if c.Stream.FollowThresholdLines < 0 {
		add("stream.follow_threshold_lines", "must not be negative, got %d", c.Stream.FollowThresholdLines)
	}
	if c.Stream.FollowPollMs < 10 || c.Stream.FollowPollMs > 5000 {
		add("stream.follow_poll_ms", "must be between 10 and 5000, got %d", c.Stream.FollowPollMs)
	}

	if c.Transcript.APIURL != "" {
		if err := validateURL(c.Transcript.APIURL); err != nil {
			add("transcript.api_url", "%v", err)
		}
	}
	if c.Transcript.Attempts < 1 || c.Transcript.Attempts > 10 {
		add("transcript.attempts", "must be between 1 and 10, got %d", c.Transcript.Attempts)
	}
	if c.Transcript.MinIntervalMs < 0 {
		add("transcript.min_interval_ms", "must not be negative, got %d", c.Transcript.MinIntervalMs)
	}

	if !validLogLevels[c.Log.Level] {
		add("log.level", "must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if !validThemes[c.UI.Theme] {
		add("ui.theme", "must be one of auto, dark, light, notty; got %q", c.UI.Theme)
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative, got %d", c.UI.WordWrap)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// SetDefaults fills fields that a config file left empty. RevealDelayMs is
// left alone because zero is meaningful.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	if c.Runtime.URL == "" {
		c.Runtime.URL = DefaultRuntimeURL
	}
	c.Runtime.URL = strings.TrimRight(c.Runtime.URL, "/")
	if c.Runtime.VersionID == "" {
		c.Runtime.VersionID = DefaultVersionID
	}
	if c.Stream.InactivityTimeoutMs == 0 {
		c.Stream.InactivityTimeoutMs = DefaultInactivityTimeoutMs
	}
	if c.Stream.FollowPollMs == 0 {
		c.Stream.FollowPollMs = DefaultFollowPollMs
	}
	if c.Transcript.Attempts == 0 {
		c.Transcript.Attempts = DefaultTranscriptAttempts
	}
	c.Transcript.APIURL = strings.TrimRight(c.Transcript.APIURL, "/")
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.UI.Theme == "" {
		c.UI.Theme = DefaultTheme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// envBinding maps an environment variable onto a config field. Aliases are
// the names used by the web widget's build environment.
type envBinding struct {
	keys  []string
	apply func(c *Config, v string)
}

var envBindings = []envBinding{
	{[]string{"VOICEFLOW_API_KEY", "VITE_VOICEFLOW_API_KEY"}, func(c *Config, v string) { c.Runtime.APIKey = v }},
	{[]string{"VOICEFLOW_PROJECT_ID", "VITE_VOICEFLOW_PROJECT_ID"}, func(c *Config, v string) { c.Runtime.ProjectID = v }},
	{[]string{"VOICEFLOW_VERSION_ID", "VITE_VOICEFLOW_VERSION_ID"}, func(c *Config, v string) { c.Runtime.VersionID = v }},
	{[]string{"VOICEFLOW_RUNTIME_URL", "VITE_VOICEFLOW_RUNTIME_URL"}, func(c *Config, v string) { c.Runtime.URL = v }},
	{[]string{"VFCHAT_LOG_LEVEL"}, func(c *Config, v string) { c.Log.Level = v }},
}

// EnvKeys lists the primary environment variables Load honors.
func EnvKeys() []string {
	keys := make([]string, len(envBindings))
	for i, b := range envBindings {
		keys[i] = b.keys[0]
	}
	return keys
}

// ApplyEnvOverrides applies overrides from the process environment.
func (c *Config) ApplyEnvOverrides() {
	c.ApplyEnv(os.LookupEnv)
}

// ApplyEnv applies overrides resolved through lookup. Empty values are
// ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	for _, b := range envBindings {
		for _, key := range b.keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				b.apply(c, strings.TrimSpace(v))
				break
			}
		}
	}
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Runtime.Variables != nil {
		clone.Runtime.Variables = make(map[string]string, len(c.Runtime.Variables))
		for k, v := range c.Runtime.Variables {
			clone.Runtime.Variables[k] = v
		}
	}
	return &clone
}

// String renders the config as JSON with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Runtime.APIKey != "" {
		safe.Runtime.APIKey = redact(safe.Runtime.APIKey)
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// redact keeps a short prefix so keys can be told apart.
func redact(secret string) string {
	const keep = 6
	if len(secret) <= keep*2 {
		return "[REDACTED]"
	}
	return secret[:keep] + "...[REDACTED]"
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration, loading it on first access.
// A load failure falls back to defaults.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal replaces the global configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}

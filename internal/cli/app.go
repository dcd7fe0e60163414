// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/vfchat/internal/config"
	"github.com/jeranaias/vfchat/internal/conversation"
	"github.com/jeranaias/vfchat/internal/logging"
	"github.com/jeranaias/vfchat/internal/session"
	"github.com/jeranaias/vfchat/internal/trace"
	"github.com/jeranaias/vfchat/internal/transcript"
	"github.com/jeranaias/vfchat/internal/voiceflow"
)

// sessionFile stores the session user ids between runs.
const sessionFile = "session.json"

// saveWait bounds how long a command waits for transcript saves on exit.
const saveWait = 5 * time.Second

// backend is what the commands need from the runtime client.
type backend interface {
	Stream(ctx context.Context, userID string, r voiceflow.Request, handle func(trace.Event)) error
}

// =============================================================================
// APP WIRING
// =============================================================================

// app holds everything a command needs, built from the config.
type app struct {
	cfg       *config.Config
	dir       string
	logger    *zap.Logger
	client    backend
	identity  *session.Identity
	saver     transcript.Saver
	variables map[string]any

	closers []func() error
}

// wireOptions select how the app is built for one command.
type wireOptions struct {
	// stderrLogs sends logs to stderr. Only for commands that do not own
	// the screen.
	stderrLogs bool

	// transcripts enables the configured transcript savers.
	transcripts bool
}

// loadConfig loads the config named by --config, or the layered config
// directory.
func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	if opts.configPath != "" {
		cfg, err := config.LoadFromPath(opts.configPath)
		if err != nil {
			return nil, "", err
		}
		return cfg, filepath.Dir(opts.configPath), nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadDir(dir)
	if err != nil {
		return nil, "", err
	}
	return cfg, dir, nil
}

func wireApp(opts *rootOptions, wo wireOptions) (*app, error) {
	cfg, dir, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	vars, err := mergeVariables(cfg.Runtime.Variables, opts.vars)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log, logging.Options{Verbose: opts.verbose, Stderr: wo.stderrLogs && opts.verbose})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		dir:       dir,
		logger:    logger,
		variables: vars,
	}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	if opts.backend != nil {
		a.client = opts.backend
	} else {
		a.client = voiceflow.New(voiceflow.Config{
			RuntimeURL: cfg.Runtime.URL,
			APIKey:     cfg.Runtime.APIKey,
			ProjectID:  cfg.Runtime.ProjectID,
			VersionID:  cfg.Runtime.VersionID,
			Logger:     logging.Named(logger, "voiceflow"),
		})
	}

	a.identity = session.NewIdentity(session.NewFileKV(filepath.Join(dir, sessionFile)), logging.Named(logger, "identity"))

	if wo.transcripts {
		saver, err := a.transcriptSaver()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.saver = saver
	}

	logger.Info("app ready",
		zap.String("config_dir", dir),
		zap.String("runtime", cfg.Runtime.URL),
		zap.Bool("configured", cfg.Runtime.APIKey != "" && cfg.Runtime.ProjectID != ""),
		zap.Bool("transcripts", a.saver != nil))
	return a, nil
}

// transcriptSaver builds the configured savers: the remote transcript API
// (retried and throttled) and the local SQLite store. It returns nil when
// transcripts are disabled.
func (a *app) transcriptSaver() (transcript.Saver, error) {
	tc := a.cfg.Transcript
	if !tc.Enabled {
		return nil, nil
	}

	var savers transcript.Multi
	if a.cfg.Runtime.APIKey != "" && a.cfg.Runtime.ProjectID != "" && tc.APIURL != "" {
		api := transcript.NewAPISaver(transcript.APIConfig{
			BaseURL:   tc.APIURL,
			APIKey:    a.cfg.Runtime.APIKey,
			ProjectID: a.cfg.Runtime.ProjectID,
			VersionID: a.cfg.Runtime.VersionID,
		})
		attempts := tc.Attempts
		retried := transcript.SaverFunc(func(ctx context.Context, rec transcript.Record) error {
			return transcript.SaveWithRetry(ctx, api, rec, attempts)
		})
		savers = append(savers, transcript.NewThrottled(retried, tc.MinInterval(), 1))
	}
	if tc.SQLitePath != "" {
		store, err := transcript.OpenSQLite(tc.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open transcript store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		savers = append(savers, store)
	}
	if len(savers) == 0 {
		return nil, nil
	}
	return savers, nil
}

// sessionConfig converts the stream section into session timings.
func sessionConfig(cfg *config.Config) conversation.Config {
	return conversation.Config{
		RevealDelay:        cfg.Stream.RevealDelay(),
		InactivityTimeout:  cfg.Stream.InactivityTimeout(),
		FollowThreshold:    cfg.Stream.FollowThresholdLines,
		FollowPollInterval: cfg.Stream.FollowPollInterval(),
	}
}

// Close releases everything the app opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// =============================================================================
// VARIABLES
// =============================================================================

// mergeVariables combines config variables with --var flags, which win.
func mergeVariables(base map[string]string, flags []string) (map[string]any, error) {
	vars := make(map[string]any, len(base)+len(flags))
	for k, v := range base {
		vars[k] = v
	}
	for _, f := range flags {
		k, v, ok := strings.Cut(f, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, NewValidationErrorWithExample("--var", f, "expected key=value", "--var produkt_navn=\"Widget Pro\"")
		}
		vars[k] = v
	}
	if len(vars) == 0 {
		return nil, nil
	}
	return vars, nil
}

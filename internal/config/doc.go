// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for vfchat.
//
// Files in the config directory are layered over the built-in defaults, each
// overriding the last: config.toml, config.json, config.yaml. Environment
// variables are applied on top; a .env file in the config directory or the
// working directory supplies variables the process environment lacks.
//
// # Configuration Precedence
//
// Highest first:
//   - Environment variables (VOICEFLOW_*, VFCHAT_LOG_LEVEL)
//   - .env files
//   - ~/.vfchat/config.yaml
//   - ~/.vfchat/config.json
//   - ~/.vfchat/config.toml
//   - Built-in defaults
//
// The directory can be moved with VFCHAT_HOME.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	delay := cfg.Stream.RevealDelay()
//
// Watch reloads the config whenever one of its files changes.
package config

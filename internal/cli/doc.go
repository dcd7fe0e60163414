// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the vfchat command tree.
//
// # Commands
//
//   - chat (default): full-screen chat; falls back to repl when not on a terminal
//   - send <text>: one headless turn, optionally after a launch
//   - repl: line-by-line chat with history
//   - replay <file>: play a recorded event stream through the core offline
//   - export: write the latest saved transcript as Markdown or JSON
//   - config show|init|path: inspect or create the configuration
//   - version: print build information
//
// # Global Flags
//
//   - --config, -c: load one config file instead of the config directory
//   - --verbose, -v: debug logging (to stderr for the line commands)
//   - --var key=value: runtime variables sent with every request
//
// Commands that print results accept --json. Errors are mapped to exit
// codes by GetExitCode.
package cli

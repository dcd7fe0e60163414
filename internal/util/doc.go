// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across vfchat.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//
// String Utilities:
//   - TruncateWidth: cut to a terminal cell width with an ellipsis
//   - TruncateBytes: cut to a byte budget on a rune boundary
//   - CollapseWhitespace: fold runs of whitespace into one space
//
// # Usage
//
//	title := util.TruncateWidth(card.Title, 28)
//	err := util.AtomicWriteFile(path, data, 0600)
package util

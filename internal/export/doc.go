// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved transcripts to files people can read or
// process.
//
// # Supported Formats
//
//   - Markdown: human-readable, agent text kept as written
//   - JSON: the complete transcript.Record
//
// # Usage
//
//	exporter, err := export.New("markdown", export.DefaultOptions())
//	path, err := export.ExportToFile(rec, exporter, opts)
package export

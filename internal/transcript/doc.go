// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript persists finished conversation turns.
//
// Saves are fire-and-forget: the chat never waits for them and failures are
// only logged. Two Savers exist:
//
//   - APISaver asks the Voiceflow API to store the runtime transcript
//   - SQLiteStore keeps a local copy of the messages
//
// Retrier and Throttled wrap any Saver with exponential backoff and a rate
// limit, and Multi fans a record out to several Savers.
package transcript

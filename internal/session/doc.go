// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session derives the user id sent with every Dialog API request.
//
// The id is created once per session as "user_<uuid>" and kept in a KV store,
// so every turn of a conversation reaches the runtime as the same user.
// When the launch variables name a product, the id is prefixed with it and the
// prefixed form is remembered for later turns that carry no variables.
//
// # Key-value stores
//
//   - MemoryKV: lives for the process
//   - FileKV: a JSON file written atomically, survives restarts
package session

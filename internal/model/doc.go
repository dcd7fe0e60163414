// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for one conversation session.
//
// # Key Types
//
//   - Message: a single turn, mutable while partial
//   - Store: ordered collection of messages; at most one may be partial
//   - SourceTracker: which producer created each message
//   - BindingTable: carousel payloads attached to message ids
//
// # Usage
//
//	store := model.NewStore()
//	store.Add(model.NewAgentMessage("text-1", true))
//	store.AppendContent("text-1", "Hel")
//	store.AppendContent("text-1", "lo")
//	store.Finalize("text-1")
//
//	bindings := model.NewBindingTable()
//	bindings.Set(model.Binding{MessageID: "carousel-1", Cards: cards})
//	bindings.Sync(store) // drops bindings whose message is gone
package model

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion assembles a network-streamed agent turn into one message.
//
// A turn is announced by a completion "start" event, grows through any number
// of "content" events and is finalized by "end". The Machine has two states,
// Idle and Streaming, and owns the id of the partial message it is writing to.
//
// Each start or content event re-arms an inactivity timer. The timer is a
// tea.Tick command that delivers an InactivityMsg carrying the generation it
// was armed with; HandleInactivity ignores any message whose generation is
// stale, so ending or resetting the machine cancels pending timers.
package completion

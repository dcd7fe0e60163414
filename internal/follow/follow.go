// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package follow decides whether the chat viewport should stay pinned to the
// newest content.
//
// Scrolling away from the bottom turns follow mode off; scrolling back within
// the threshold turns it on again. Every content mutation moves the viewport
// to the bottom while follow mode is on. While a reveal or completion is
// running, a periodic tick repeats the check to absorb layout reflow that
// lags behind content growth.
package follow

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	// DefaultThreshold is the distance from the bottom, in lines, that still
	// counts as "at the bottom".
	DefaultThreshold = 2

	// DefaultPollInterval is the re-check period while content is streaming.
	DefaultPollInterval = 80 * time.Millisecond
)

// Geometry describes the scroll state of a viewport, in lines.
type Geometry struct {
	ContentHeight int
	Offset        int
	ViewHeight    int
}

// DistanceFromBottom returns how many lines lie below the visible area.
func (g Geometry) DistanceFromBottom() int {
	d := g.ContentHeight - g.ViewHeight - g.Offset
	if d < 0 {
		return 0
	}
	return d
}

// Viewport is the scroll surface being followed.
type Viewport interface {
	Geometry() Geometry
	GotoBottom()
}

// TickMsg drives the periodic re-check.
type TickMsg struct {
	Gen uint64
}

// Controller tracks follow mode for one viewport.
// It is driven from the session event loop and is not safe for concurrent use.
type Controller struct {
	viewport  Viewport
	threshold int
	interval  time.Duration

	shouldFollow bool
	polling      bool
	gen          uint64
}

// New creates a controller in follow mode.
func New(threshold int, interval time.Duration) *Controller {
	c := &Controller{shouldFollow: true}
	c.SetThreshold(threshold)
	c.SetInterval(interval)
	return c
}

// SetViewport attaches the scroll surface. A nil viewport disables scrolling.
func (c *Controller) SetViewport(vp Viewport) {
	c.viewport = vp
}

// SetThreshold changes the follow threshold.
func (c *Controller) SetThreshold(lines int) {
	if lines < 0 {
		lines = DefaultThreshold
	}
	c.threshold = lines
}

// SetInterval changes the polling period.
func (c *Controller) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultPollInterval
	}
	c.interval = d
}

// ShouldFollow reports whether follow mode is on.
func (c *Controller) ShouldFollow() bool {
	return c.shouldFollow
}

// OnScroll records a scroll position change.
func (c *Controller) OnScroll(g Geometry) {
	c.shouldFollow = g.DistanceFromBottom() <= c.threshold
}

// OnMutation is called after every message store change. It reports whether
// the viewport was moved.
func (c *Controller) OnMutation() bool {
	if !c.shouldFollow || c.viewport == nil {
		return false
	}
	c.viewport.GotoBottom()
	return true
}

// StartPolling arms the periodic re-check. It returns nil if already armed.
func (c *Controller) StartPolling() tea.Cmd {
	if c.polling {
		return nil
	}
	c.polling = true
	c.gen++
	return c.tick()
}

// HandleTick handles a TickMsg. active reports whether streaming is still in
// progress; when it is not, polling stops.
func (c *Controller) HandleTick(msg TickMsg, active bool) tea.Cmd {
	if !c.polling || msg.Gen != c.gen {
		return nil
	}
	if !active {
		c.polling = false
		return nil
	}
	c.OnMutation()
	return c.tick()
}

// Polling reports whether the periodic re-check is armed.
func (c *Controller) Polling() bool {
	return c.polling
}

// StopPolling cancels the periodic re-check.
func (c *Controller) StopPolling() {
	c.polling = false
	c.gen++
}

// Reset stops polling and returns to follow mode.
func (c *Controller) Reset() {
	c.StopPolling()
	c.shouldFollow = true
}

func (c *Controller) tick() tea.Cmd {
	gen := c.gen
	return tea.Tick(c.interval, func(time.Time) tea.Msg {
		return TickMsg{Gen: gen}
	})
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/vfchat/internal/model"
	"github.com/jeranaias/vfchat/internal/trace"
)

// DefaultInactivityTimeout is how long a turn may stay silent before the
// typing indicator is considered stale.
const DefaultInactivityTimeout = 3 * time.Second

// =============================================================================
// TYPES
// =============================================================================

// State is the machine state.
type State int

const (
	Idle State = iota
	Streaming
)

// String returns the state name.
func (s State) String() string {
	if s == Streaming {
		return "streaming"
	}
	return "idle"
}

// Outcome describes what a handled event did.
type Outcome int

const (
	// Ignored means the event caused no change.
	Ignored Outcome = iota
	// Started means a new partial message was created.
	Started
	// Appended means content was added to the active message.
	Appended
	// Ended means the active message was finalized.
	Ended
)

// InactivityMsg is delivered when the inactivity timer fires.
type InactivityMsg struct {
	Gen uint64
}

// Store is the subset of the message store the machine writes to.
type Store interface {
	Add(msg model.Message) error
	AppendContent(id, text string) error
	Finalize(id string) error
}

// =============================================================================
// MACHINE
// =============================================================================

// Machine is the completion state machine.
// It is driven from the session event loop and is not safe for concurrent use.
type Machine struct {
	store   Store
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	state          State
	messageID      string
	lastActivityAt time.Time
	gen            uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for protocol anomalies.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithInactivityTimeout overrides DefaultInactivityTimeout.
func WithInactivityTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates an idle machine writing into store.
func New(store Store, opts ...Option) *Machine {
	m := &Machine{
		store:   store,
		logger:  zap.NewNop(),
		timeout: DefaultInactivityTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle routes a completion payload by its state.
func (m *Machine) Handle(p trace.CompletionPayload) (Outcome, tea.Cmd) {
	switch p.State {
	case trace.CompletionStart:
		return m.Start()
	case trace.CompletionContent:
		return m.Content(p.Content)
	case trace.CompletionEnd:
		return m.End(), nil
	default:
		m.logger.Warn("completion_anomaly",
			zap.String("reason", "unknown state"),
			zap.String("state", string(p.State)))
		return Ignored, nil
	}
}

// Start begins a new turn. A turn already in progress is finalized with the
// content it has so far.
func (m *Machine) Start() (Outcome, tea.Cmd) {
	if m.state == Streaming {
		m.logger.Warn("completion_anomaly",
			zap.String("reason", "start while streaming"),
			zap.String("message_id", m.messageID))
		m.finalizeActive()
	}

	id := model.NewID("completion")
	if err := m.store.Add(model.NewAgentMessage(id, true)); err != nil {
		m.logger.Error("completion start failed", zap.String("message_id", id), zap.Error(err))
		return Ignored, nil
	}

	m.state = Streaming
	m.messageID = id
	return Started, m.touch()
}

// Content appends a fragment to the active message. Without an active turn
// the fragment is dropped.
func (m *Machine) Content(text string) (Outcome, tea.Cmd) {
	if m.state != Streaming {
		m.logger.Warn("completion_anomaly",
			zap.String("reason", "content without start"),
			zap.Int("bytes", len(text)))
		return Ignored, nil
	}
	if err := m.store.AppendContent(m.messageID, text); err != nil {
		// The message was removed or finalized by someone else; the turn is over.
		m.logger.Warn("completion_anomaly",
			zap.String("reason", "active message not writable"),
			zap.String("message_id", m.messageID),
			zap.Error(err))
		m.clear()
		return Ignored, nil
	}
	return Appended, m.touch()
}

// End finalizes the active message. It is a no-op while idle.
func (m *Machine) End() Outcome {
	if m.state != Streaming {
		m.logger.Debug("completion end while idle")
		return Ignored
	}
	m.finalizeActive()
	return Ended
}

// HandleInactivity reports whether msg is the current inactivity timer firing.
// Stale timers (re-armed, ended or reset since) return false.
func (m *Machine) HandleInactivity(msg InactivityMsg) bool {
	return m.state == Streaming && msg.Gen == m.gen
}

// SetInactivityTimeout changes the timeout used when the timer is next armed.
func (m *Machine) SetInactivityTimeout(d time.Duration) {
	if d > 0 {
		m.timeout = d
	}
}

// StopTimer cancels the pending inactivity timer without changing state.
func (m *Machine) StopTimer() {
	m.gen++
}

// Reset returns to Idle without touching the store.
func (m *Machine) Reset() {
	m.clear()
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Active reports whether a turn is streaming.
func (m *Machine) Active() bool {
	return m.state == Streaming
}

// MessageID returns the id of the active message, or "" when idle.
func (m *Machine) MessageID() string {
	return m.messageID
}

// LastActivityAt returns when the active turn last received an event.
func (m *Machine) LastActivityAt() time.Time {
	return m.lastActivityAt
}

func (m *Machine) finalizeActive() {
	if err := m.store.Finalize(m.messageID); err != nil {
		m.logger.Warn("completion finalize failed",
			zap.String("message_id", m.messageID),
			zap.Error(err))
	}
	m.clear()
}

func (m *Machine) clear() {
	m.state = Idle
	m.messageID = ""
	m.lastActivityAt = time.Time{}
	m.gen++
}

// touch records activity and re-arms the inactivity timer.
func (m *Machine) touch() tea.Cmd {
	m.lastActivityAt = m.now()
	m.gen++
	gen := m.gen
	return tea.Tick(m.timeout, func(time.Time) tea.Msg {
		return InactivityMsg{Gen: gen}
	})
}

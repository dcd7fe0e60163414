// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/vfchat/internal/completion"
	"github.com/jeranaias/vfchat/internal/follow"
	"github.com/jeranaias/vfchat/internal/model"
	"github.com/jeranaias/vfchat/internal/reveal"
	"github.com/jeranaias/vfchat/internal/sse"
	"github.com/jeranaias/vfchat/internal/trace"
)

// ErrEmptyInput is returned by OnStart for a blank label.
var ErrEmptyInput = errors.New("message is empty")

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the timing settings of a session.
type Config struct {
	// RevealDelay is the pause between reveal steps. Zero reveals instantly.
	RevealDelay time.Duration

	// InactivityTimeout hides the typing indicator after a silent turn.
	InactivityTimeout time.Duration

	// FollowThreshold is the bottom distance, in lines, that keeps follow mode.
	FollowThreshold int

	// FollowPollInterval is the re-check period while streaming.
	FollowPollInterval time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		RevealDelay:        reveal.DefaultDelay,
		InactivityTimeout:  completion.DefaultInactivityTimeout,
		FollowThreshold:    follow.DefaultThreshold,
		FollowPollInterval: follow.DefaultPollInterval,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the state of one conversation.
// It must only be used from the event loop goroutine.
type Session struct {
	logger *zap.Logger

	store      *model.Store
	sources    *model.SourceTracker
	bindings   *model.BindingTable
	completion *completion.Machine
	reveal     *reveal.Scheduler
	follow     *follow.Controller
	parser     sse.Parser

	buttons        []trace.Button
	typing         bool
	buttonsLoading bool

	request    uint64
	inFlight   bool
	syncedIDs  uint64
	lastChange uint64
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty session.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	s.store = model.NewStore()
	s.sources = model.NewSourceTracker()
	s.bindings = model.NewBindingTable()
	s.completion = completion.New(s.store,
		completion.WithLogger(s.logger),
		completion.WithInactivityTimeout(cfg.InactivityTimeout))
	s.reveal = reveal.New(cfg.RevealDelay)
	s.follow = follow.New(cfg.FollowThreshold, cfg.FollowPollInterval)
	return s
}

// Apply updates timing settings in place.
func (s *Session) Apply(cfg Config) {
	s.reveal.SetDelay(cfg.RevealDelay)
	s.completion.SetInactivityTimeout(cfg.InactivityTimeout)
	s.follow.SetThreshold(cfg.FollowThreshold)
	s.follow.SetInterval(cfg.FollowPollInterval)
}

// SetViewport attaches the scroll surface driven by follow mode.
func (s *Session) SetViewport(vp follow.Viewport) {
	s.follow.SetViewport(vp)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// OnStart records a user turn and opens a new request generation. The label
// is trimmed and NFC-normalized; a blank label is rejected.
func (s *Session) OnStart(label string) (uint64, error) {
	label = norm.NFC.String(strings.TrimSpace(label))
	if label == "" {
		return s.request, ErrEmptyInput
	}
	if err := s.store.Add(model.NewUserMessage(label)); err != nil {
		return s.request, err
	}
	req := s.begin()
	s.mutated()
	return req, nil
}

// OnLaunch opens a new request generation without a user turn.
func (s *Session) OnLaunch() uint64 {
	return s.begin()
}

func (s *Session) begin() uint64 {
	s.changed()
	s.buttons = nil
	s.typing = true
	s.buttonsLoading = true
	s.sources.Reset()
	s.parser.Reset()
	s.request++
	s.inFlight = true
	return s.request
}

// OnChunk feeds raw stream text through the session's frame parser and
// dispatches every completed frame in order.
func (s *Session) OnChunk(chunk string) tea.Cmd {
	var cmds []tea.Cmd
	s.parser.Feed(chunk, func(f sse.Frame) {
		ev, err := trace.FromFrame(f)
		if err != nil {
			s.logger.Warn("dropping malformed frame",
				zap.String("event", f.Event),
				zap.String("id", f.ID),
				zap.Error(err))
			return
		}
		cmds = append(cmds, s.Dispatch(ev))
	})
	return batch(cmds...)
}

// OnReset discards the conversation. Pending timers and in-flight streams
// are invalidated; nothing is flushed.
func (s *Session) OnReset() {
	s.reveal.Cancel()
	s.completion.Reset()
	s.follow.Reset()
	s.parser.Reset()

	s.store.Reset()
	s.sources.Reset()
	s.mutated()

	s.buttons = nil
	s.typing = false
	s.buttonsLoading = false
	s.request++
	s.inFlight = false
	s.changed()
}

// Remove deletes a single message, stopping any producer writing to it.
func (s *Session) Remove(id string) bool {
	if s.reveal.Target() == id {
		s.reveal.Cancel()
	}
	if s.completion.MessageID() == id {
		s.completion.Reset()
	}
	if !s.store.Remove(id) {
		return false
	}
	s.mutated()
	return true
}

// EndTurn finalizes an unfinished completion turn, for callers that decide
// to keep partial content after a stream ended without an end event.
func (s *Session) EndTurn() bool {
	if s.completion.End() != completion.Ended {
		return false
	}
	s.typing = false
	s.mutated()
	return true
}

// =============================================================================
// EVENT LOOP
// =============================================================================

// Update handles loop messages addressed to the session. Messages of other
// types are ignored and return nil.
func (s *Session) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TraceMsg:
		if msg.Request != s.request {
			s.logger.Debug("dropping trace from superseded request",
				zap.Uint64("request", msg.Request),
				zap.Uint64("current", s.request))
			return nil
		}
		return s.Dispatch(msg.Event)

	case StreamDoneMsg:
		if msg.Request != s.request {
			return nil
		}
		s.inFlight = false
		s.typing = false
		s.buttonsLoading = false
		s.completion.StopTimer()
		if msg.Err != nil {
			s.logger.Warn("stream ended with error",
				zap.Uint64("request", msg.Request),
				zap.Error(msg.Err))
		}
		s.changed()
		return nil

	case reveal.StepMsg:
		return s.reveal.Step(msg)

	case completion.InactivityMsg:
		if s.completion.HandleInactivity(msg) && s.typing {
			s.typing = false
			s.changed()
		}
		return nil

	case follow.TickMsg:
		return s.follow.HandleTick(msg, s.streaming())
	}
	return nil
}

// OnScroll records a user scroll position change.
func (s *Session) OnScroll(g follow.Geometry) {
	s.follow.OnScroll(g)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Request returns the current request generation.
func (s *Session) Request() uint64 {
	return s.request
}

// InFlight reports whether the current request's stream is still open.
func (s *Session) InFlight() bool {
	return s.inFlight
}

// Version increases whenever anything visible changes.
func (s *Session) Version() uint64 {
	return s.store.Version() + s.lastChange
}

// Messages returns the ordered messages.
func (s *Session) Messages() []model.Message {
	return s.store.Messages()
}

// Message returns one message by id.
func (s *Session) Message(id string) (model.Message, bool) {
	return s.store.Get(id)
}

// Source returns which producer created a message in the current turn.
func (s *Session) Source(id string) (model.Source, bool) {
	return s.sources.Get(id)
}

// Binding returns the carousel binding of a message.
func (s *Session) Binding(id string) (model.Binding, bool) {
	return s.bindings.Get(id)
}

// Buttons returns the current button set.
func (s *Session) Buttons() []trace.Button {
	out := make([]trace.Button, len(s.buttons))
	copy(out, s.buttons)
	return out
}

// Button returns the button at index i.
func (s *Session) Button(i int) (trace.Button, bool) {
	if i < 0 || i >= len(s.buttons) {
		return trace.Button{}, false
	}
	return s.buttons[i], true
}

// Indicators returns the current indicator flags.
func (s *Session) Indicators() Indicators {
	return Indicators{
		Typing:         s.typing,
		ButtonsLoading: s.buttonsLoading,
		Streaming:      s.streaming(),
	}
}

// ShouldFollow reports whether the viewport is in follow mode.
func (s *Session) ShouldFollow() bool {
	return s.follow.ShouldFollow()
}

// Snapshot copies everything the renderer needs.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Messages:     s.store.Messages(),
		Buttons:      s.Buttons(),
		Bindings:     s.bindings.All(),
		Indicators:   s.Indicators(),
		ShouldFollow: s.follow.ShouldFollow(),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Session) streaming() bool {
	return s.reveal.Active() || s.completion.Active()
}

// mutated runs after every message store change: bindings are synchronised
// when the id set moved, then the viewport is followed.
func (s *Session) mutated() {
	s.syncBindings()
	s.follow.OnMutation()
}

func (s *Session) syncBindings() {
	if v := s.store.IDVersion(); v != s.syncedIDs {
		if n := s.bindings.Sync(s.store); n > 0 {
			s.logger.Debug("carousel bindings collected", zap.Int("removed", n))
		}
		s.syncedIDs = v
	}
}

// changed marks a non-store change (buttons, indicators) for Version.
func (s *Session) changed() {
	s.lastChange++
}

// pollIfStreaming arms the follow re-check while a producer is active.
func (s *Session) pollIfStreaming() tea.Cmd {
	if !s.streaming() {
		return nil
	}
	return s.follow.StartPolling()
}

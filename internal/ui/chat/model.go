// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/vfchat/internal/conversation"
	"github.com/jeranaias/vfchat/internal/session"
	"github.com/jeranaias/vfchat/internal/trace"
	"github.com/jeranaias/vfchat/internal/transcript"
	"github.com/jeranaias/vfchat/internal/ui/styles"
	"github.com/jeranaias/vfchat/internal/voiceflow"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ConfigChangedMsg carries reloaded session settings into the program.
type ConfigChangedMsg struct {
	Config conversation.Config
	Err    error
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Backend runs one interaction against the dialog runtime.
type Backend interface {
	Stream(ctx context.Context, userID string, r voiceflow.Request, handle func(trace.Event)) error
}

// Options configure a Model.
type Options struct {
	Session  *conversation.Session
	Backend  Backend
	Identity *session.Identity

	// Variables are sent with every request.
	Variables map[string]any

	// Saver receives the transcript after every successful turn. Optional.
	Saver transcript.Saver

	Theme    *styles.Theme
	Markdown bool
	WordWrap int
	Title    string

	// Launch starts the conversation when the program starts.
	Launch bool

	// Send posts messages into the running program from other goroutines.
	Send func(tea.Msg)

	Context context.Context
	Logger  *zap.Logger
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	session   *conversation.Session
	backend   Backend
	identity  *session.Identity
	variables map[string]any
	saver     transcript.Saver
	send      func(tea.Msg)
	logger    *zap.Logger
	title     string
	launch    bool

	theme    *styles.Theme
	renderer *Renderer
	keys     KeyMap
	help     help.Model
	viewport *viewport.Model
	surface  *scrollSurface
	input    textinput.Model
	spinner  spinner.Model

	width         int
	height        int
	ready         bool
	renderedVer   uint64
	renderedWidth int

	ctx      context.Context
	stop     context.CancelFunc
	cancel   context.CancelFunc
	note     string
	lastSave <-chan struct{}
}

// New creates a chat model.
func New(opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Session == nil {
		opts.Session = conversation.New(conversation.DefaultConfig(), conversation.WithLogger(opts.Logger))
	}
	if opts.Identity == nil {
		opts.Identity = session.NewIdentity(nil, opts.Logger)
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ModeAuto)
	}
	if opts.Send == nil {
		opts.Send = func(tea.Msg) {}
	}
	if opts.Title == "" {
		opts.Title = "vfchat"
	}
	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := context.WithCancel(parent)

	vp := viewport.New(0, 0)

	ti := textinput.New()
	ti.Placeholder = "Ask about the product..."
	ti.CharLimit = 2000
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.TextPrimary)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Typing

	m := &Model{
		session:   opts.Session,
		backend:   opts.Backend,
		identity:  opts.Identity,
		variables: opts.Variables,
		saver:     opts.Saver,
		send:      opts.Send,
		logger:    opts.Logger,
		title:     opts.Title,
		launch:    opts.Launch,
		theme:     opts.Theme,
		renderer:  NewRenderer(opts.Theme, opts.Markdown, opts.WordWrap),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		viewport:  &vp,
		input:     ti,
		spinner:   sp,
		ctx:       ctx,
		stop:      stop,
	}
	m.surface = newScrollSurface(m.viewport)
	m.session.SetViewport(m.surface)
	return m
}

// Close cancels any stream still running.
func (m *Model) Close() {
	m.stop()
}

// Session returns the conversation driven by the model.
func (m *Model) Session() *conversation.Session {
	return m.session
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.launch {
		cmds = append(cmds, m.startLaunch())
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.input.Width = msg.Width - 4
		m.help.Width = msg.Width
		m.ready = true

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	case tea.MouseMsg:
		switch msg.Type {
		case tea.MouseWheelUp:
			m.viewport.LineUp(3)
			m.scrolled()
		case tea.MouseWheelDown:
			m.viewport.LineDown(3)
			m.scrolled()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ConfigChangedMsg:
		if msg.Err != nil {
			m.note = m.theme.Error.Render("config: " + msg.Err.Error())
			m.logger.Warn("config reload failed", zap.Error(msg.Err))
			break
		}
		m.session.Apply(msg.Config)
		m.note = m.theme.Hint.Render("config reloaded")

	case conversation.StreamDoneMsg:
		current := msg.Request == m.session.Request()
		cmds = append(cmds, m.session.Update(msg))
		if current {
			m.finishTurn(msg.Err)
		}

	default:
		cmds = append(cmds, m.session.Update(msg))
	}

	m.refresh()
	return m, batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		return tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil

	case key.Matches(msg, m.keys.Reset):
		return m.reset()

	case key.Matches(msg, m.keys.Dismiss):
		m.dismissCarousel()
		return nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		m.scrolled()
		return nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		m.scrolled()
		return nil

	case key.Matches(msg, m.keys.LineUp):
		m.viewport.LineUp(1)
		m.scrolled()
		return nil

	case key.Matches(msg, m.keys.LineDown):
		m.viewport.LineDown(1)
		m.scrolled()
		return nil

	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		m.scrolled()
		return nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Button) && m.input.Value() == "":
		if i, ok := buttonIndex(msg.String()); ok {
			return m.press(i)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// scrolled reports a user scroll to the follow controller.
func (m *Model) scrolled() {
	m.session.OnScroll(m.surface.Geometry())
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m *Model) submit() tea.Cmd {
	if m.session.InFlight() {
		m.note = m.theme.Hint.Render("waiting for the agent…")
		return nil
	}
	label := norm.NFC.String(strings.TrimSpace(m.input.Value()))
	req, err := m.session.OnStart(label)
	if err != nil {
		return nil
	}
	m.input.Reset()
	m.note = ""
	return m.start(req, voiceflow.Text(label, m.variables))
}

func (m *Model) press(i int) tea.Cmd {
	b, ok := m.session.Button(i)
	if !ok {
		return nil
	}
	if url, ok := b.LinkURL(); ok {
		m.note = m.theme.ButtonLink.Render(styles.SymbolLink + " " + url)
		return nil
	}
	if m.session.InFlight() {
		m.note = m.theme.Hint.Render("waiting for the agent…")
		return nil
	}
	r, err := voiceflow.Button(b, m.variables)
	if err != nil {
		m.note = m.theme.Error.Render(err.Error())
		return nil
	}
	req, err := m.session.OnStart(b.Name)
	if err != nil {
		return nil
	}
	m.note = ""
	return m.start(req, r)
}

func (m *Model) startLaunch() tea.Cmd {
	req := m.session.OnLaunch()
	return m.start(req, voiceflow.Launch(m.variables))
}

// reset discards the conversation and launches a fresh one.
func (m *Model) reset() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.session.OnReset()
	m.renderer.Forget()
	m.note = ""
	m.input.Reset()
	return m.startLaunch()
}

// dismissCarousel removes the newest carousel message.
func (m *Model) dismissCarousel() {
	bindings := m.session.Snapshot().Bindings
	if len(bindings) == 0 {
		return
	}
	m.session.Remove(bindings[len(bindings)-1].MessageID)
}

// start runs a request off the loop. The previous request's stream, if
// any, is cancelled; its late messages are dropped by the session.
func (m *Model) start(req uint64, r voiceflow.Request) tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel

	if m.backend == nil {
		cancel()
		return func() tea.Msg {
			return conversation.StreamDoneMsg{Request: req, Err: voiceflow.ErrNotConfigured}
		}
	}

	backend := m.backend
	userID := m.identity.UserID(m.variables)
	stream := func(ctx context.Context, handle func(trace.Event)) error {
		return backend.Stream(ctx, userID, r, handle)
	}
	return conversation.StreamCmd(ctx, req, stream, m.send)
}

// finishTurn runs once the current request's stream has ended.
func (m *Model) finishTurn(err error) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.session.EndTurn()

	if err != nil {
		m.note = m.theme.Error.Render(styles.SymbolError + " " + describeError(err))
		return
	}
	if m.saver != nil {
		rec := transcript.Record{
			UserID:    m.identity.UserID(m.variables),
			SessionID: m.identity.SessionUserID(),
			Messages:  m.session.Messages(),
		}
		m.lastSave = transcript.SaveAsync(m.ctx, m.saver, rec, m.logger)
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, voiceflow.ErrNotConfigured):
		return "not configured: set VOICEFLOW_API_KEY and VOICEFLOW_PROJECT_ID"
	case errors.Is(err, voiceflow.ErrAuthFailed):
		return "the runtime rejected the API key"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	}
	return err.Error()
}

// =============================================================================
// VIEW
// =============================================================================

// refresh re-renders the conversation when the session or the width changed.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.layout()
	if v := m.session.Version(); v != m.renderedVer || m.width != m.renderedWidth {
		m.surface.setContent(m.renderer.Conversation(m.session.Snapshot()))
		m.renderedVer = v
		m.renderedWidth = m.width
	}
}

// layout sizes the viewport to the space the other rows leave.
func (m *Model) layout() {
	fixed := 1 + 1 + lineCount(m.statusView()) + lineCount(m.help.View(m.keys)) + lineCount(m.buttonsView())
	h := m.height - fixed
	if h < 3 {
		h = 3
	}
	if m.viewport.Width != m.width || m.viewport.Height != h {
		m.viewport.Width = m.width
		m.viewport.Height = h
		if m.session.ShouldFollow() {
			m.surface.GotoBottom()
		}
	}
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return lipgloss.Height(s)
}

func (m *Model) buttonsView() string {
	ind := m.session.Indicators()
	return m.renderer.Buttons(m.session.Buttons(), ind.ButtonsLoading)
}

func (m *Model) statusView() string {
	return m.renderer.Status(m.session.Indicators(), m.session.ShouldFollow(), m.spinner.View(), m.note)
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "starting…"
	}

	rows := []string{
		m.theme.Header.Width(m.width).Render(m.theme.HeaderTitle.Render(m.title)),
		m.viewport.View(),
	}
	if b := m.buttonsView(); b != "" {
		rows = append(rows, b)
	}
	rows = append(rows, m.input.View(), m.statusView(), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Note returns the current status note, for tests and headless callers.
func (m *Model) Note() string {
	return m.note
}

// batch combines commands, dropping nils.
func batch(cmds ...tea.Cmd) tea.Cmd {
	valid := make([]tea.Cmd, 0, len(cmds))
	for _, c := range cmds {
		if c != nil {
			valid = append(valid, c)
		}
	}
	switch len(valid) {
	case 0:
		return nil
	case 1:
		return valid[0]
	default:
		return tea.Batch(valid...)
	}
}

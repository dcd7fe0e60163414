// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/vfchat/internal/conversation"
	"github.com/jeranaias/vfchat/internal/model"
	"github.com/jeranaias/vfchat/internal/trace"
	"github.com/jeranaias/vfchat/internal/ui/styles"
	"github.com/jeranaias/vfchat/internal/util"
)

// PartialCursor trails a message that is still being written.
const PartialCursor = "▍"

// maxDescriptionLines bounds a card body.
const maxDescriptionLines = 4

// =============================================================================
// RENDERER
// =============================================================================

// Renderer turns session snapshots into styled text.
type Renderer struct {
	theme    *styles.Theme
	markdown bool
	wordWrap int

	md      *glamour.TermRenderer
	mdWidth int

	// Final messages never change, so their rendering is kept by id.
	cache map[string]cachedBody
}

type cachedBody struct {
	width int
	out   string
}

// NewRenderer creates a renderer. wordWrap caps the text width when
// positive.
func NewRenderer(theme *styles.Theme, markdown bool, wordWrap int) *Renderer {
	return &Renderer{
		theme:    theme,
		markdown: markdown,
		wordWrap: wordWrap,
		cache:    make(map[string]cachedBody),
	}
}

// Width returns the text width in cells.
func (r *Renderer) Width() int {
	w := r.theme.ContentWidth()
	if r.wordWrap > 0 && r.wordWrap < w {
		return r.wordWrap
	}
	return w
}

// Forget drops cached renderings, e.g. after a reset.
func (r *Renderer) Forget() {
	r.cache = make(map[string]cachedBody)
}

// Conversation renders every message in order. Cached bodies of messages
// no longer in snap are dropped.
func (r *Renderer) Conversation(snap conversation.Snapshot) string {
	r.evict(snap.Messages)
	if len(snap.Messages) == 0 {
		return r.theme.Hint.Render("Ask about the product...")
	}
	parts := make([]string, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		if b, ok := snap.Binding(m.ID); ok {
			parts = append(parts, r.Carousel(b))
			continue
		}
		parts = append(parts, r.Message(m))
	}
	return strings.Join(parts, "\n\n")
}

func (r *Renderer) evict(messages []model.Message) {
	if len(r.cache) == 0 {
		return
	}
	present := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		present[m.ID] = struct{}{}
	}
	for id := range r.cache {
		if _, ok := present[id]; !ok {
			delete(r.cache, id)
		}
	}
}

// Message renders one text message with its header.
func (r *Renderer) Message(m model.Message) string {
	label := r.theme.AgentLabel
	body := r.theme.AgentBody
	if m.Role == model.RoleUser {
		label = r.theme.UserLabel
		body = r.theme.UserBody
	}

	header := label.Render(m.Role.DisplayName())
	if !m.CreatedAt.IsZero() {
		header += " " + r.theme.Timestamp.Render(m.CreatedAt.Format("15:04"))
	}
	return header + "\n" + body.Render(r.body(m))
}

func (r *Renderer) body(m model.Message) string {
	width := r.Width() - 2
	if m.IsPartial {
		// Half-written Markdown renders badly, so partial text stays plain.
		text := lipgloss.NewStyle().Width(width).Render(m.Content)
		return text + r.theme.Partial.Render(PartialCursor)
	}
	if m.Role == model.RoleUser || !r.markdown {
		return lipgloss.NewStyle().Width(width).Render(m.Content)
	}

	if c, ok := r.cache[m.ID]; ok && c.width == width {
		return c.out
	}
	out := r.renderMarkdown(m.Content, width)
	r.cache[m.ID] = cachedBody{width: width, out: out}
	return out
}

func (r *Renderer) renderMarkdown(content string, width int) string {
	if r.md == nil || r.mdWidth != width {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.theme.GlamourStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			r.md = nil
			return lipgloss.NewStyle().Width(width).Render(content)
		}
		r.md = md
		r.mdWidth = width
	}
	out, err := r.md.Render(content)
	if err != nil {
		return lipgloss.NewStyle().Width(width).Render(content)
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// CAROUSELS
// =============================================================================

// Carousel renders a carousel message as cards laid side by side.
func (r *Renderer) Carousel(b model.Binding) string {
	header := r.theme.AgentLabel.Render(model.RoleAgent.DisplayName()) + " " +
		r.theme.CardLayout.Render(fmt.Sprintf("%s %s · %d cards", styles.SymbolCarousel, layoutName(b.Layout), len(b.Cards)))

	if len(b.Cards) == 0 {
		return header
	}

	width := r.theme.CardWidth(len(b.Cards))
	perRow := len(b.Cards)
	if perRow > 3 {
		perRow = 3
	}

	var rows []string
	for start := 0; start < len(b.Cards); start += perRow {
		end := start + perRow
		if end > len(b.Cards) {
			end = len(b.Cards)
		}
		cards := make([]string, 0, end-start)
		for _, c := range b.Cards[start:end] {
			cards = append(cards, r.card(c, width))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return header + "\n" + strings.Join(rows, "\n")
}

func layoutName(layout string) string {
	if layout == "" {
		return "carousel"
	}
	return strings.ToLower(layout)
}

func (r *Renderer) card(c trace.Card, width int) string {
	inner := width - 2
	var lines []string
	lines = append(lines, r.theme.CardTitle.Render(util.TruncateWidth(c.Title, inner)))

	if desc := strings.TrimSpace(c.Description.Text); desc != "" {
		wrapped := strings.Split(lipgloss.NewStyle().Width(inner).Render(desc), "\n")
		if len(wrapped) > maxDescriptionLines {
			wrapped = wrapped[:maxDescriptionLines]
			last := strings.TrimRight(wrapped[maxDescriptionLines-1], " ")
			wrapped[maxDescriptionLines-1] = util.TruncateWidth(last+util.Ellipsis, inner)
		}
		for _, l := range wrapped {
			lines = append(lines, r.theme.CardDescription.Render(l))
		}
	}
	if c.ImageURL != "" {
		lines = append(lines, r.theme.Hint.Render(util.TruncateWidth(c.ImageURL, inner)))
	}
	for _, b := range c.Buttons {
		lines = append(lines, r.cardButton(b, inner))
	}
	return r.theme.Card.Width(width).Render(strings.Join(lines, "\n"))
}

func (r *Renderer) cardButton(b trace.Button, width int) string {
	if url, ok := b.LinkURL(); ok {
		return r.theme.ButtonLink.Render(util.TruncateWidth(styles.SymbolLink+" "+b.Name+" "+url, width))
	}
	return r.theme.ButtonKey.Render(util.TruncateWidth("› "+b.Name, width))
}

// =============================================================================
// BUTTONS AND STATUS
// =============================================================================

// Buttons renders the choice bar. Buttons are numbered from 1 and wrapped
// onto as many rows as the width needs.
func (r *Renderer) Buttons(buttons []trace.Button, loading bool) string {
	if loading {
		return r.theme.ButtonsEmpty.Render(styles.SymbolLoading + " loading options…")
	}
	if len(buttons) == 0 {
		return ""
	}

	maxWidth := r.theme.ContentWidth()
	var rows []string
	var row []string
	rowWidth := 0
	for i, b := range buttons {
		cell := r.button(i, b)
		w := lipgloss.Width(cell)
		if rowWidth > 0 && rowWidth+w > maxWidth {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		row = append(row, cell)
		rowWidth += w
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	return strings.Join(rows, "\n")
}

func (r *Renderer) button(i int, b trace.Button) string {
	key := " "
	if i < 9 {
		key = fmt.Sprintf("%d", i+1)
	}
	name := util.TruncateWidth(b.Name, 30)
	if _, ok := b.LinkURL(); ok {
		name = r.theme.ButtonLink.Render(name + " " + styles.SymbolLink)
	}
	return r.theme.Button.Render(r.theme.ButtonKey.Render(key) + " " + name)
}

// Status renders the bottom status line.
func (r *Renderer) Status(ind conversation.Indicators, following bool, spin, note string) string {
	var items []string
	switch {
	case ind.Typing:
		items = append(items, r.theme.Typing.Render(spin+" agent is typing"))
	case ind.Streaming:
		items = append(items, r.theme.Typing.Render(styles.SymbolTyping+" streaming"))
	}
	if !following {
		items = append(items, r.theme.Hint.Render(styles.SymbolPaused+" scrolled up · End to follow"))
	}
	if note != "" {
		items = append(items, note)
	}
	if len(items) == 0 {
		items = append(items, r.theme.Hint.Render("ready"))
	}

	for i, it := range items {
		items[i] = r.theme.StatusItem.Render(it)
	}
	return r.theme.StatusBar.Width(r.theme.Width).Render(lipgloss.JoinHorizontal(lipgloss.Top, items...))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/vfchat/internal/conversation"
	"github.com/jeranaias/vfchat/internal/model"
	"github.com/jeranaias/vfchat/internal/trace"
	"github.com/jeranaias/vfchat/internal/util"
)

// =============================================================================
// LINE PRINTER
// =============================================================================

// printer writes finalized messages as plain lines. Each message is printed
// once; partial messages wait until they are final.
type printer struct {
	w        io.Writer
	md       *glamour.TermRenderer
	width    int
	showUser bool
	shown    map[string]bool
}

// newPrinter creates a printer. Markdown is rendered only when w is a
// terminal, so piped output stays plain.
func newPrinter(w io.Writer, markdown bool) *printer {
	p := &printer{
		w:     w,
		width: GetTerminalWidth(w),
		shown: make(map[string]bool),
	}
	if markdown && isTerminalWriter(w) {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(p.width-2),
		)
		if err == nil {
			p.md = md
		}
	}
	return p
}

// Flush prints every final message not printed yet.
func (p *printer) Flush(snap conversation.Snapshot) {
	for _, m := range snap.Messages {
		if m.IsPartial || p.shown[m.ID] {
			continue
		}
		p.shown[m.ID] = true
		if m.Role == model.RoleUser && !p.showUser {
			continue
		}
		if b, ok := snap.Binding(m.ID); ok {
			p.carousel(b)
			continue
		}
		p.message(m)
	}
}

// Forget clears the printed set, e.g. after a reset.
func (p *printer) Forget() {
	p.shown = make(map[string]bool)
}

func (p *printer) message(m model.Message) {
	label := agentLabelStyle.Render(m.Role.DisplayName() + ":")
	if m.Role == model.RoleUser {
		label = userLabelStyle.Render(m.Role.DisplayName() + ":")
	}

	body := m.Content
	if p.md != nil && m.Role == model.RoleAgent {
		if out, err := p.md.Render(body); err == nil {
			fmt.Fprintf(p.w, "%s\n%s\n", label, strings.Trim(out, "\n"))
			return
		}
	}
	fmt.Fprintf(p.w, "%s %s\n", label, body)
}

func (p *printer) carousel(b model.Binding) {
	fmt.Fprintf(p.w, "%s [%s, %d cards]\n",
		agentLabelStyle.Render(model.RoleAgent.DisplayName()+":"), layoutLabel(b.Layout), len(b.Cards))
	for _, c := range b.Cards {
		fmt.Fprintf(p.w, "  - %s\n", cardTitleStyle.Render(util.TruncateWidth(c.Title, p.width-4)))
		if desc := strings.TrimSpace(c.Description.Text); desc != "" {
			fmt.Fprintf(p.w, "    %s\n", util.TruncateWidth(util.CollapseWhitespace(desc), p.width-4))
		}
		if c.ImageURL != "" {
			fmt.Fprintf(p.w, "    %s\n", hintStyle.Render(c.ImageURL))
		}
		for _, btn := range c.Buttons {
			fmt.Fprintf(p.w, "    > %s\n", buttonLabel(btn))
		}
	}
}

// Buttons prints the current choices, numbered from 1.
func (p *printer) Buttons(buttons []trace.Button) {
	if len(buttons) == 0 {
		return
	}
	parts := make([]string, 0, len(buttons))
	for i, b := range buttons {
		parts = append(parts, fmt.Sprintf("%s %s", buttonKeyStyle.Render(fmt.Sprintf("[%d]", i+1)), buttonLabel(b)))
	}
	fmt.Fprintln(p.w, strings.Join(parts, "  "))
}

// Note prints a muted line.
func (p *printer) Note(format string, args ...any) {
	fmt.Fprintln(p.w, hintStyle.Render(fmt.Sprintf(format, args...)))
}

func buttonLabel(b trace.Button) string {
	if url, ok := b.LinkURL(); ok {
		return linkStyle.Render(b.Name + " (" + url + ")")
	}
	return b.Name
}

func layoutLabel(layout string) string {
	if layout == "" {
		return "carousel"
	}
	return strings.ToLower(layout)
}

// =============================================================================
// JSON FORM
// =============================================================================

// transcriptData converts a snapshot for --json output. Partial messages
// are included and flagged.
func transcriptData(userID string, snap conversation.Snapshot) TranscriptData {
	data := TranscriptData{UserID: userID, Messages: make([]MessageData, 0, len(snap.Messages))}
	for _, m := range snap.Messages {
		md := MessageData{
			ID:      m.ID,
			Role:    m.Role.String(),
			Content: m.Content,
			Partial: m.IsPartial,
		}
		if b, ok := snap.Binding(m.ID); ok {
			md.Carousel = make([]CardData, 0, len(b.Cards))
			for _, c := range b.Cards {
				cd := CardData{Title: c.Title, Description: c.Description.Text, ImageURL: c.ImageURL}
				for _, btn := range c.Buttons {
					cd.Buttons = append(cd.Buttons, btn.Name)
				}
				md.Carousel = append(md.Carousel, cd)
			}
		}
		data.Messages = append(data.Messages, md)
	}
	for _, b := range snap.Buttons {
		data.Buttons = append(data.Buttons, b.Name)
	}
	return data
}

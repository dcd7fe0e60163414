// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/jeranaias/vfchat/internal/follow"
)

// scrollSurface exposes a bubbles viewport to the follow controller.
//
// The session moves the viewport during Update, before the view has been
// re-rendered with the new content, so GotoBottom is also remembered and
// applied again once the content is refreshed.
type scrollSurface struct {
	vp            *viewport.Model
	pendingBottom bool
}

func newScrollSurface(vp *viewport.Model) *scrollSurface {
	return &scrollSurface{vp: vp}
}

// Geometry implements follow.Viewport.
func (s *scrollSurface) Geometry() follow.Geometry {
	return follow.Geometry{
		ContentHeight: s.vp.TotalLineCount(),
		Offset:        s.vp.YOffset,
		ViewHeight:    s.vp.Height,
	}
}

// GotoBottom implements follow.Viewport.
func (s *scrollSurface) GotoBottom() {
	s.vp.GotoBottom()
	s.pendingBottom = true
}

// setContent replaces the content, settling a pending bottom jump.
func (s *scrollSurface) setContent(content string) {
	s.vp.SetContent(content)
	if s.pendingBottom {
		s.vp.GotoBottom()
		s.pendingBottom = false
	}
}

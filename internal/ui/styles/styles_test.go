// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme_Modes(t *testing.T) {
	tests := []struct {
		mode    string
		isDark  bool
		glamour string
	}{
		{ModeDark, true, "dark"},
		{ModeLight, false, "light"},
		{ModeNoTTY, true, "notty"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			th := NewTheme(tt.mode)
			if th.IsDark != tt.isDark {
				t.Errorf("IsDark = %v, want %v", th.IsDark, tt.isDark)
			}
			if got := th.GlamourStyle(); got != tt.glamour {
				t.Errorf("GlamourStyle() = %q, want %q", got, tt.glamour)
			}
		})
	}
}

func TestNewTheme_UnknownModeIsAuto(t *testing.T) {
	th := NewTheme("sparkly")
	if th.Mode != ModeAuto {
		t.Errorf("Mode = %q, want %q", th.Mode, ModeAuto)
	}
}

func TestTheme_Widths(t *testing.T) {
	th := NewTheme(ModeNoTTY)

	th.SetSize(10, 10)
	if got := th.ContentWidth(); got != 20 {
		t.Errorf("ContentWidth() narrow = %d, want 20", got)
	}
	if got := th.CardWidth(3); got != 16 {
		t.Errorf("CardWidth(3) narrow = %d, want 16", got)
	}

	th.SetSize(104, 40)
	if got := th.ContentWidth(); got != 100 {
		t.Errorf("ContentWidth() = %d, want 100", got)
	}
	if got := th.CardWidth(1); got != 97 {
		t.Errorf("CardWidth(1) = %d, want 97", got)
	}
	if got, want := th.CardWidth(7), th.CardWidth(3); got != want {
		t.Errorf("CardWidth(7) = %d, want capped %d", got, want)
	}
}

func TestTheme_RendersPlainInNoTTY(t *testing.T) {
	th := NewTheme(ModeNoTTY)
	if got := th.Error.Render("boom"); !strings.Contains(got, "boom") || strings.Contains(got, "\x1b[3") {
		t.Errorf("Error.Render in notty = %q, want uncolored text", got)
	}
}

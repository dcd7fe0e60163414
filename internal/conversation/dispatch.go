// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/vfchat/internal/completion"
	"github.com/jeranaias/vfchat/internal/model"
	"github.com/jeranaias/vfchat/internal/trace"
)

// Dispatch routes one trace event by type. It never fails: malformed payloads
// are logged and dropped, unknown types are ignored.
func (s *Session) Dispatch(ev trace.Event) tea.Cmd {
	switch ev.Type {
	case trace.TypeText, trace.TypeSpeak:
		return s.dispatchText(ev)
	case trace.TypeChoice:
		s.dispatchChoice(ev)
		return nil
	case trace.TypeCarousel:
		s.dispatchCarousel(ev)
		return nil
	case trace.TypeCompletion:
		return s.dispatchCompletion(ev)
	default:
		s.logger.Debug("ignoring trace", zap.String("type", string(ev.Type)))
		return nil
	}
}

func (s *Session) dispatchText(ev trace.Event) tea.Cmd {
	p, err := ev.Text()
	if err != nil {
		s.malformed(ev, err)
		return nil
	}
	if p.Message == "" {
		return nil
	}

	// One partial at a time: finish whatever is still being written.
	s.reveal.Flush()
	if s.completion.Active() {
		s.completion.End()
	}

	id := model.NewID("text")
	if err := s.store.Add(model.NewAgentMessage(id, true)); err != nil {
		s.logger.Error("text message rejected", zap.String("message_id", id), zap.Error(err))
		return nil
	}
	s.sources.Set(id, model.SourceText)
	s.typing = false
	s.mutated()

	cmd := s.reveal.Reveal(id, p.Message,
		func(prefix string) {
			if err := s.store.SetContent(id, prefix); err != nil {
				s.logger.Debug("reveal update skipped", zap.String("message_id", id), zap.Error(err))
				return
			}
			s.mutated()
		},
		func() {
			if err := s.store.Finalize(id); err != nil {
				s.logger.Debug("reveal finalize skipped", zap.String("message_id", id), zap.Error(err))
				return
			}
			s.mutated()
		})
	return batch(cmd, s.pollIfStreaming())
}

func (s *Session) dispatchChoice(ev trace.Event) {
	p, err := ev.Choice()
	if err != nil {
		s.malformed(ev, err)
		return
	}
	if p.Buttons == nil {
		return
	}
	s.buttons = p.Buttons
	s.buttonsLoading = false
	s.changed()
}

func (s *Session) dispatchCarousel(ev trace.Event) {
	p, err := ev.Carousel()
	if err != nil {
		s.malformed(ev, err)
		return
	}
	if p.Cards == nil {
		return
	}

	id := model.NewID("carousel")
	if err := s.store.Add(model.NewAgentMessage(id, false)); err != nil {
		s.logger.Error("carousel message rejected", zap.String("message_id", id), zap.Error(err))
		return
	}
	s.sources.Set(id, model.SourceCarousel)
	s.bindings.Set(model.Binding{
		MessageID: id,
		Cards:     p.Cards,
		Layout:    p.Layout,
		Timestamp: time.Now(),
	})
	s.typing = false
	s.mutated()
}

func (s *Session) dispatchCompletion(ev trace.Event) tea.Cmd {
	p, err := ev.Completion()
	if err != nil {
		s.malformed(ev, err)
		return nil
	}
	if p.State == trace.CompletionStart {
		s.reveal.Flush()
	}

	outcome, cmd := s.completion.Handle(p)
	switch outcome {
	case completion.Started:
		s.sources.Set(s.completion.MessageID(), model.SourceText)
		s.typing = true
	case completion.Appended:
		s.typing = true
	case completion.Ended:
		s.typing = false
	default:
		return nil
	}
	s.mutated()
	return batch(cmd, s.pollIfStreaming())
}

func (s *Session) malformed(ev trace.Event, err error) {
	s.logger.Warn("dropping malformed payload",
		zap.String("type", string(ev.Type)),
		zap.String("frame_id", ev.FrameID),
		zap.Error(err))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/vfchat/internal/config"
	"github.com/jeranaias/vfchat/internal/conversation"
	"github.com/jeranaias/vfchat/internal/logging"
	"github.com/jeranaias/vfchat/internal/ui/chat"
	"github.com/jeranaias/vfchat/internal/ui/styles"
)

type chatOptions struct {
	launch bool
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var noLaunch bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the full-screen chat",
		Long: "Open the full-screen chat. Enter sends, 1-9 press buttons, ctrl+r resets,\n" +
			"ctrl+x dismisses the newest carousel, F1 shows all keys and ctrl+c quits.\n" +
			"Falls back to repl when the terminal is not interactive.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts, chatOptions{launch: !noLaunch})
		},
	}
	cmd.Flags().BoolVar(&noLaunch, "no-launch", false, "wait for the first message instead of launching")
	return cmd
}

func runChat(cmd *cobra.Command, opts *rootOptions, co chatOptions) error {
	if !isTerminalWriter(cmd.OutOrStdout()) || !IsTTY() {
		return runRepl(cmd, opts, replOptions{launch: co.launch})
	}

	a, err := wireApp(opts, wireOptions{transcripts: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sess := conversation.New(sessionConfig(a.cfg), conversation.WithLogger(logging.Named(a.logger, "session")))
	sender := &chat.Sender{}

	m := chat.New(chat.Options{
		Session:   sess,
		Backend:   a.client,
		Identity:  a.identity,
		Variables: a.variables,
		Saver:     a.saver,
		Theme:     styles.NewTheme(a.cfg.UI.Theme),
		Markdown:  a.cfg.UI.Markdown,
		WordWrap:  a.cfg.UI.WordWrap,
		Launch:    co.launch,
		Send:      sender.Send,
		Context:   ctx,
		Logger:    logging.Named(a.logger, "chat"),
	})
	defer m.Close()

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if a.cfg.UI.Mouse {
		progOpts = append(progOpts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, progOpts...)
	sender.Attach(p)

	go watchConfig(ctx, a, sender.Send)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return NewCommandError("chat", "run", "terminal program failed", err)
	}
	return nil
}

// watchConfig forwards stream timing changes into the running chat. Only
// the config directory layers are watched; an explicit --config file is
// not reloaded.
func watchConfig(ctx context.Context, a *app, send func(tea.Msg)) {
	err := config.Watch(ctx, a.dir, func(cfg *config.Config, err error) {
		if err != nil {
			a.logger.Warn("config reload failed", zap.Error(err))
			send(chat.ConfigChangedMsg{Err: err})
			return
		}
		a.logger.Info("config reloaded")
		send(chat.ConfigChangedMsg{Config: sessionConfig(cfg)})
	})
	if err != nil && ctx.Err() == nil {
		a.logger.Warn("config watch stopped", zap.Error(err))
	}
}

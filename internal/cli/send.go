// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	var (
		launch  bool
		asJSON  bool
		noSaves bool
	)
	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Send one message and print the reply",
		Long: "Send one message without the full-screen chat and print the agent's\n" +
			"reply, carousels and buttons. With --launch the conversation is launched\n" +
			"first, as the chat does on start.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return NewValidationErrorWithExample("text", "", "message is empty", `vfchat send "what does it cost?"`)
			}

			a, err := wireApp(opts, wireOptions{stderrLogs: true, transcripts: !noSaves})
			if err != nil {
				return err
			}
			defer a.Close()

			d := newDriver(a)
			defer func() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), saveWait)
				defer cancel()
				d.wait(ctx)
			}()

			return OutputJSON(cmd.OutOrStdout(), asJSON, "send", func() (interface{}, error) {
				p := newPrinter(cmd.OutOrStdout(), a.cfg.UI.Markdown)
				if asJSON {
					p = nil
				}
				if launch {
					if err := d.launch(cmd.Context()); err != nil {
						return nil, NewCommandError("send", "launch", "runtime request failed", err)
					}
					if p != nil {
						p.Flush(d.session.Snapshot())
					}
				}
				if err := d.send(cmd.Context(), text); err != nil {
					return nil, NewCommandError("send", "message", "runtime request failed", err)
				}
				snap := d.session.Snapshot()
				if p != nil {
					p.Flush(snap)
					p.Buttons(snap.Buttons)
				}
				return transcriptData(a.identity.UserID(a.variables), snap), nil
			})
		},
	}
	cmd.Flags().BoolVar(&launch, "launch", false, "launch the conversation before sending")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the transcript as JSON")
	cmd.Flags().BoolVar(&noSaves, "no-transcript", false, "do not save the transcript")
	return cmd
}

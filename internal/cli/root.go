// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
	vars       []string

	// backend replaces the runtime client. Tests only.
	backend backend
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&rootOptions{})
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		DisplayError(root.ErrOrStderr(), err, jsonMode(cmd))
		return GetExitCode(err)
	}
	return ExitSuccess
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "vfchat",
		Short: "Terminal chat client for Voiceflow agents",
		Long: "vfchat talks to a Voiceflow dialog runtime over its streaming interact API.\n" +
			"Without a subcommand it opens the full-screen chat.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts, chatOptions{launch: true})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default: $VFCHAT_HOME or ~/.vfchat)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	pf.StringArrayVar(&opts.vars, "var", nil, "runtime variable key=value, repeatable")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ValidationError{Field: "flags", Reason: err.Error()}
	})

	root.AddCommand(
		newChatCmd(opts),
		newSendCmd(opts),
		newReplCmd(opts),
		newReplayCmd(opts),
		newExportCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// jsonMode reports whether cmd was run with --json.
func jsonMode(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	f := cmd.Flags().Lookup("json")
	return f != nil && f.Value.String() == "true"
}

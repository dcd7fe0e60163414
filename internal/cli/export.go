// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/vfchat/internal/export"
	"github.com/jeranaias/vfchat/internal/transcript"
)

// ExportData is the result of export --json.
type ExportData struct {
	UserID   string `json:"user_id"`
	Path     string `json:"path,omitempty"`
	Format   string `json:"format"`
	Messages int    `json:"messages"`
}

type exportOptions struct {
	format string
	outDir string
	userID string
	open   bool
	stdout bool
	asJSON bool
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	eo := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the latest saved transcript",
		Long: `Export the most recent transcript saved in the local transcript store.

The user defaults to the current session user, so "vfchat send" followed by
"vfchat export" writes the conversation just held.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, opts, eo)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&eo.format, "format", "f", "markdown", "output format: markdown, md or json")
	f.StringVarP(&eo.outDir, "out", "o", ".", "output directory")
	f.StringVar(&eo.userID, "user", "", "user id to export (default: the session user)")
	f.BoolVar(&eo.open, "open", false, "open the file after writing it")
	f.BoolVar(&eo.stdout, "stdout", false, "print the export instead of writing a file")
	f.BoolVar(&eo.asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runExport(cmd *cobra.Command, opts *rootOptions, eo *exportOptions) error {
	xopts := export.DefaultOptions()
	xopts.OutputDir = eo.outDir
	xopts.OpenAfterExport = eo.open

	exporter, err := export.New(eo.format, xopts)
	if err != nil {
		return NewValidationErrorWithExample("--format", eo.format, "unsupported format", "--format json")
	}

	a, err := wireApp(opts, wireOptions{stderrLogs: true})
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.cfg.Transcript.SQLitePath
	if path == "" {
		return NewCommandError("export", "open store", "transcript.sqlite_path is not set", nil)
	}

	return OutputJSON(cmd.OutOrStdout(), eo.asJSON, "export", func() (interface{}, error) {
		store, err := transcript.OpenSQLite(path)
		if err != nil {
			return nil, NewCommandError("export", "open store", path, err)
		}
		defer store.Close()

		userID := eo.userID
		if userID == "" {
			userID = a.identity.UserID(a.variables)
		}
		rec, err := store.Latest(cmd.Context(), userID)
		if errors.Is(err, transcript.ErrNoTranscript) {
			return nil, &NotFoundError{Resource: "transcript", ID: userID}
		}
		if err != nil {
			return nil, NewCommandError("export", "read", userID, err)
		}

		data := ExportData{UserID: userID, Format: eo.format, Messages: len(rec.Messages)}
		if eo.stdout {
			content, err := exporter.Export(rec)
			if err != nil {
				return nil, NewCommandError("export", "render", eo.format, err)
			}
			if !eo.asJSON {
				_, err = cmd.OutOrStdout().Write(content)
			}
			return data, err
		}

		out, err := export.ExportToFile(rec, exporter, xopts)
		if out == "" {
			return nil, NewCommandError("export", "write", eo.outDir, err)
		}
		if err != nil {
			// Written but not opened.
			a.logger.Warn("open export failed", zap.Error(err))
		}
		data.Path = out
		if !eo.asJSON {
			size := "?"
			if info, err := os.Stat(out); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d messages, %s, saved %s)\n",
				out, len(rec.Messages), size, humanize.Time(rec.SavedAt))
		}
		return data, nil
	})
}

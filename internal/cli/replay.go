// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/vfchat/internal/config"
	"github.com/jeranaias/vfchat/internal/conversation"
	"github.com/jeranaias/vfchat/internal/logging"
	"github.com/jeranaias/vfchat/internal/sse"
)

// maxReplaySize bounds the recording read into memory.
const maxReplaySize = 16 << 20

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		chunk  int
		frames bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Play a recorded event stream without the network",
		Long: "Feed a recorded server-sent event stream through the chat core in\n" +
			"pieces of --chunk bytes and print the resulting conversation. With\n" +
			"--frames the raw frames are printed instead. Use - to read stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunk < 0 {
				return NewValidationErrorWithExample("--chunk", fmt.Sprint(chunk), "must not be negative", "--chunk 7")
			}
			data, err := readReplay(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			cfg, _, err := loadConfig(opts)
			if err != nil {
				// A recording does not need credentials or a valid runtime
				// section; fall back to defaults.
				cfg = config.Default()
			}

			if frames {
				return OutputJSON(cmd.OutOrStdout(), asJSON, "replay", func() (interface{}, error) {
					out := replayFrames(data, chunk)
					if !asJSON {
						for _, f := range out {
							printFrame(cmd.OutOrStdout(), f)
						}
					}
					return out, nil
				})
			}

			logger, err := logging.New(cfg.Log, logging.Options{Verbose: opts.verbose, Stderr: opts.verbose})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			scfg := sessionConfig(cfg)
			scfg.RevealDelay = 0
			sess := conversation.New(scfg, conversation.WithLogger(logging.Named(logger, "session")))
			sess.OnLaunch()
			for _, piece := range split(string(data), chunk) {
				sess.OnChunk(piece)
			}
			unfinished := sess.EndTurn()

			return OutputJSON(cmd.OutOrStdout(), asJSON, "replay", func() (interface{}, error) {
				snap := sess.Snapshot()
				if !asJSON {
					p := newPrinter(cmd.OutOrStdout(), cfg.UI.Markdown)
					p.showUser = true
					p.Flush(snap)
					if unfinished {
						p.Note("(unfinished: the recording ends before the completion end event)")
					}
					p.Buttons(snap.Buttons)
				}
				return transcriptData("", snap), nil
			})
		},
	}
	cmd.Flags().IntVar(&chunk, "chunk", 0, "bytes per piece, 0 feeds the whole file at once")
	cmd.Flags().BoolVar(&frames, "frames", false, "print raw frames instead of the conversation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func readReplay(stdin io.Reader, path string) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &NotFoundError{Resource: "file", ID: path}
			}
			return nil, fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxReplaySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	if len(data) > maxReplaySize {
		return nil, NewCommandError("replay", "read", fmt.Sprintf("recording is larger than %d bytes", maxReplaySize), nil)
	}
	return data, nil
}

// split cuts s into pieces of n bytes. n <= 0 returns s whole.
func split(s string, n int) []string {
	if n <= 0 || len(s) <= n {
		return []string{s}
	}
	pieces := make([]string, 0, len(s)/n+1)
	for len(s) > n {
		pieces = append(pieces, s[:n])
		s = s[n:]
	}
	if s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}

func replayFrames(data []byte, chunk int) []FrameData {
	var p sse.Parser
	out := []FrameData{}
	for _, piece := range split(string(data), chunk) {
		p.Feed(piece, func(f sse.Frame) {
			out = append(out, FrameData{Event: f.Event, ID: f.ID, Data: f.Data})
		})
	}
	return out
}

func printFrame(w io.Writer, f FrameData) {
	if f.Event != "" {
		fmt.Fprintf(w, "event: %s\n", f.Event)
	}
	if f.ID != "" {
		fmt.Fprintf(w, "id: %s\n", f.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", f.Data)
}

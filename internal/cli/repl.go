// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// historyFile keeps repl input history in the config directory.
const historyFile = "repl_history"

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

// linerInput provides input history and line editing on a terminal.
type linerInput struct {
	line        *liner.State
	historyFile string
}

func newLinerInput(dir string) *linerInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	in := &linerInput{line: line, historyFile: filepath.Join(dir, historyFile)}
	if f, err := os.Open(in.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return in
}

// ReadLine reads a line with the given prompt. Arrow keys walk the history.
func (in *linerInput) ReadLine(prompt string) (string, error) {
	input, err := in.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		in.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (in *linerInput) Close() {
	if err := os.MkdirAll(filepath.Dir(in.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = in.line.WriteHistory(f)
			f.Close()
		}
	}
	in.line.Close()
}

// scanInput reads lines from a non-terminal reader.
type scanInput struct {
	sc *bufio.Scanner
}

func (in *scanInput) ReadLine(string) (string, error) {
	if !in.sc.Scan() {
		if err := in.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return in.sc.Text(), nil
}

func (in *scanInput) Close() {}

// =============================================================================
// REPL COMMAND
// =============================================================================

type replOptions struct {
	launch bool
}

func newReplCmd(opts *rootOptions) *cobra.Command {
	var noLaunch bool
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Chat line by line",
		Long: "Chat line by line without the full-screen view. A bare number presses\n" +
			"that button; /reset starts over, /buttons lists the choices and /quit exits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd, opts, replOptions{launch: !noLaunch})
		},
	}
	cmd.Flags().BoolVar(&noLaunch, "no-launch", false, "wait for the first message instead of launching")
	return cmd
}

func runRepl(cmd *cobra.Command, opts *rootOptions, ro replOptions) error {
	a, err := wireApp(opts, wireOptions{stderrLogs: true, transcripts: true})
	if err != nil {
		return err
	}
	defer a.Close()

	var in lineReader
	if f, ok := cmd.InOrStdin().(*os.File); ok && f == os.Stdin && IsTTY() {
		in = newLinerInput(a.dir)
	} else {
		in = &scanInput{sc: bufio.NewScanner(cmd.InOrStdin())}
	}
	defer in.Close()

	d := newDriver(a)
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), saveWait)
		defer cancel()
		d.wait(ctx)
	}()

	r := &repl{
		ctx:    cmd.Context(),
		driver: d,
		out:    newPrinter(cmd.OutOrStdout(), a.cfg.UI.Markdown),
		in:     in,
		logger: a.logger,
	}
	if ro.launch {
		r.turn(d.launch)
	}
	return r.loop()
}

// repl runs the read-send-print loop.
type repl struct {
	ctx    context.Context
	driver *driver
	out    *printer
	in     lineReader
	logger *zap.Logger
}

func (r *repl) loop() error {
	for {
		if r.ctx.Err() != nil {
			return nil
		}
		line, err := r.in.ReadLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quit := r.handle(line); quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether to quit.
func (r *repl) handle(line string) bool {
	switch line {
	case "/quit", "/exit":
		return true
	case "/reset":
		r.out.Forget()
		r.out.Note("conversation reset")
		r.turn(r.driver.reset)
		return false
	case "/buttons":
		if buttons := r.driver.session.Buttons(); len(buttons) > 0 {
			r.out.Buttons(buttons)
		} else {
			r.out.Note("no buttons")
		}
		return false
	case "/help":
		r.out.Note("type a message, a button number, /buttons, /reset or /quit")
		return false
	}

	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(r.driver.session.Buttons()) {
		var url string
		r.turn(func(ctx context.Context) error {
			var err error
			url, err = r.driver.press(ctx, n-1)
			return err
		})
		if url != "" {
			r.out.Note("link: %s", url)
		}
		return false
	}

	r.turn(func(ctx context.Context) error {
		return r.driver.send(ctx, line)
	})
	return false
}

// turn runs one request and prints what it produced. Errors are shown and
// the loop continues.
func (r *repl) turn(fn func(context.Context) error) {
	err := fn(r.ctx)
	snap := r.driver.session.Snapshot()
	r.out.Flush(snap)
	if err != nil {
		r.logger.Warn("turn failed", zap.Error(err))
		fmt.Fprintf(r.out.w, "%s %v\n", errorStyle.Render("[ERROR]"), err)
		if hint := errorHint(err); hint != "" {
			r.out.Note("%s", hint)
		}
		return
	}
	r.out.Buttons(snap.Buttons)
}

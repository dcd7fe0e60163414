// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drain(t *testing.T, r io.Reader) ([]Frame, error) {
	t.Helper()
	out := make(chan Frame)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		errCh <- Decode(context.Background(), r, out)
	}()

	var frames []Frame
	for f := range out {
		frames = append(frames, f)
	}
	return frames, <-errCh
}

func TestDecode_OneByteReaderMatchesWhole(t *testing.T) {
	var p Parser
	want := collect(&p, sampleStream)

	got, err := drain(t, iotest.OneByteReader(strings.NewReader(sampleStream)))
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_PropagatesReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("event: a\ndata: x\n\nevent: b\ndata: "),
		iotest.ErrReader(boom),
	)

	frames, err := drain(t, r)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Frame{{Event: "a", Data: "x"}}, frames, "frames before the error stay delivered")
}

func TestDecode_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Frame) // never received from
	errCh := make(chan error, 1)

	go func() {
		errCh <- Decode(ctx, strings.NewReader("event: a\ndata: x\n\n"), out)
	}()

	// Nobody receives the frame; cancellation must still unblock Decode.
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
}

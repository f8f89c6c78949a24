package upload

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStallDetectReaderCancelsOnStall(t *testing.T) {
	stuck := newStuckFile()
	defer stuck.Close()

	sr, ctx := newStallDetectReader(context.Background(), stuck, stuck, 20*time.Millisecond, 1)
	defer sr.Close()

	done := make(chan error, 1)
	go func() {
		_, err := sr.Read(make([]byte, 8))
		done <- err
	}()

	select {
	case <-ctx.Done():
		assert.ErrorIs(t, context.Cause(ctx), ErrUploadStalled)
	case <-time.After(5 * time.Second):
		t.Fatal("stall was not detected")
	}

	// the pending read is released by closing the source
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(5 * time.Second):
		t.Fatal("read still blocked after stall")
	}
	assert.True(t, stuck.closed())
}

func TestStallDetectReaderStopsAtEOF(t *testing.T) {
	sr, ctx := newStallDetectReader(context.Background(), strings.NewReader("hello"), nil, 10*time.Millisecond, 1<<20)
	defer sr.Close()

	data, err := io.ReadAll(sr)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// far below the threshold, but the body is complete
	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, ctx.Err())
}

func TestStallDetectReaderFollowsParent(t *testing.T) {
	stuck := newStuckFile()
	parent, cancel := context.WithCancel(context.Background())
	sr, ctx := newStallDetectReader(parent, stuck, stuck, time.Hour, 1)
	defer sr.Close()

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
	assert.Eventually(t, stuck.closed, 5*time.Second, time.Millisecond)
}

package upload

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var ErrUploadStalled = errors.New("upload stalled: transferred too little data within the stall timeout")

// stallDetectReader counts bytes read from its source and aborts the attempt
// context when less than stallThreshold bytes went through in stallTimeout.
// The watch ends once the source hits EOF, waiting for the server answer is
// not a stall.
type stallDetectReader struct {
	reader         io.Reader
	source         io.Closer
	stallTimeout   time.Duration
	stallThreshold int64
	bytesInPeriod  atomic.Int64
	eof            chan struct{}
	eofOnce        atomic.Bool
	cancel         context.CancelCauseFunc
	closeOnce      sync.Once
}

// newStallDetectReader returns the reader and a context that gets cancelled
// with ErrUploadStalled when a stall is detected. source is closed as soon as
// that context ends so a read blocked on it returns.
func newStallDetectReader(ctx context.Context, r io.Reader, source io.Closer, timeout time.Duration, threshold int64) (*stallDetectReader, context.Context) {
	ctx, cancel := context.WithCancelCause(ctx)
	sr := &stallDetectReader{
		reader:         r,
		source:         source,
		stallTimeout:   timeout,
		stallThreshold: threshold,
		eof:            make(chan struct{}),
		cancel:         cancel,
	}
	go sr.watch(ctx)
	return sr, ctx
}

func (sr *stallDetectReader) watch(ctx context.Context) {
	t := time.NewTicker(sr.stallTimeout)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			// stall, caller cancel or Close
			sr.Close()
			return
		case <-sr.eof:
			return
		case <-t.C:
			if sr.bytesInPeriod.Swap(0) < sr.stallThreshold {
				sr.cancel(ErrUploadStalled)
			}
		}
	}
}

func (sr *stallDetectReader) Read(p []byte) (int, error) {
	n, err := sr.reader.Read(p)
	sr.bytesInPeriod.Add(int64(n))
	if err == io.EOF && sr.eofOnce.CompareAndSwap(false, true) {
		close(sr.eof)
	}
	return n, err
}

// Close releases the watcher and closes the source.
func (sr *stallDetectReader) Close() error {
	var err error
	sr.closeOnce.Do(func() {
		sr.cancel(context.Canceled)
		if sr.source != nil {
			err = sr.source.Close()
		}
	})
	return err
}

package upload

import (
	"io"
	"sync"
)

// ProgressFunc is a callback function for upload progress updates.
// It receives the number of bytes streamed so far across all files of a batch.
// The value can go down when a partially sent file has to be sent again.
// Calls are serialized, the callback must not call back into the Uploader.
type ProgressFunc func(bytesUploaded int64)

// tracker holds the running total of a batch.
type tracker struct {
	lk    sync.Mutex
	total int64
	fn    ProgressFunc
}

func newTracker(fn ProgressFunc) *tracker {
	return &tracker{fn: fn}
}

// attempt counts bytes streamed by a single PUT of one file.
type attempt struct {
	t      *tracker
	n      int64
	sealed bool
}

func (t *tracker) begin() *attempt {
	return &attempt{t: t}
}

// Total returns the current running total.
func (t *tracker) Total() int64 {
	t.lk.Lock()
	defer t.lk.Unlock()
	return t.total
}

func (t *tracker) notify() {
	if t.fn != nil {
		t.fn(t.total)
	}
}

// add is the delta handler of the attempt's progressReader.
func (a *attempt) add(delta int64) {
	if delta <= 0 {
		return
	}
	t := a.t
	t.lk.Lock()
	defer t.lk.Unlock()

	if a.sealed {
		// transport still reading the body of a finished attempt
		return
	}
	a.n += delta
	t.total += delta
	t.notify()
}

// keep seals the attempt and leaves its bytes in the total.
func (a *attempt) keep() {
	a.t.lk.Lock()
	defer a.t.lk.Unlock()
	a.sealed = true
}

// rollback seals the attempt, removes its bytes from the total and reports
// the corrected value.
func (a *attempt) rollback() int64 {
	t := a.t
	t.lk.Lock()
	defer t.lk.Unlock()

	if a.sealed {
		return 0
	}
	a.sealed = true
	n := a.n
	t.total -= n
	a.n = 0
	t.notify()
	return n
}

// progressReader reports the number of bytes returned by each Read call.
type progressReader struct {
	r     io.Reader
	delta func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.delta(int64(n))
	}
	return n, err
}

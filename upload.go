// Package upload sends batches of local files to pre-signed destinations
// (typically object storage PUT urls), a bounded number at a time, retrying
// each file on transient failures and reporting the cumulative number of
// bytes sent to a single progress callback.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// File describes one upload. It is never modified by the Uploader.
type File struct {
	Path          string `json:"path" yaml:"path"`
	URL           string `json:"url" yaml:"url"`
	ContentType   string `json:"contentType" yaml:"contentType"`
	ContentLength int64  `json:"contentLength" yaml:"contentLength"`
}

type Uploader struct {
	cfg Config
}

func New(cfg Config) *Uploader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Client == nil {
		cfg.Client = UploadHttpClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Open == nil {
		cfg.Open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	return &Uploader{cfg: cfg}
}

// Upload sends files using a configuration read from the environment.
func Upload(ctx context.Context, files []File, onProgress ProgressFunc) error {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return err
	}
	return New(cfg).Upload(ctx, files, onProgress)
}

// Upload sends all files and returns once every started upload has settled.
// It returns nil if all files were uploaded, otherwise the first terminal
// failure: the context cause when cancelled, or a *FileError when a file ran
// out of retries. After the first terminal failure, files still queued are
// not started; uploads already running finish unless FailFast is set.
// onProgress may be nil.
func (u *Uploader) Upload(ctx context.Context, files []File, onProgress ProgressFunc) error {
	if err := validate(files); err != nil {
		return err
	}
	t := newTracker(onProgress)

	var cancel context.CancelCauseFunc
	if u.cfg.FailFast {
		ctx, cancel = context.WithCancelCause(ctx)
		defer cancel(nil)
	}

	g := new(errgroup.Group)
	g.SetLimit(u.cfg.Concurrency)

	for _, f := range files {
		u.setState(f, Pending)
	}

	// set once a file failed for good, queued files are not started anymore
	var failed atomic.Bool

	for _, f := range files {
		if failed.Load() {
			break
		}

		// blocks until a slot is free, files are admitted in order
		g.Go(func() error {
			if failed.Load() {
				u.cfg.Logger.DebugContext(ctx, fmt.Sprintf("Skipping '%s', batch already failed", f.Path), "event", "upload:skipped", "upload:path", f.Path)
				return nil
			}
			u.cfg.Logger.DebugContext(ctx, fmt.Sprintf("Uploading %s of %s for '%s' to '%s'", humanize.IBytes(uint64(f.ContentLength)), f.ContentType, f.Path, redactURL(f.URL)), "event", "upload:start", "upload:path", f.Path)

			err := u.uploadFile(ctx, t, f)
			if err != nil {
				failed.Store(true)
				if cancel != nil {
					cancel(err)
				}
			}
			return err
		})
	}

	return g.Wait()
}

// uploadFile runs the retry loop of a single file. It holds its pool slot
// for all attempts, including backoff waits.
func (u *Uploader) uploadFile(ctx context.Context, t *tracker, f File) error {
	var cur *attempt

	policy := &RetryPolicy{
		Retries:    u.cfg.Retries,
		NewBackOff: ExponentialBackOff(u.cfg.BackoffInitial, u.cfg.BackoffMax),
		OnRetry: func(n int, err error) {
			rolled := cur.rollback()
			u.setState(f, RetryWait)
			u.cfg.Logger.DebugContext(ctx, fmt.Sprintf("Retrying upload %s: %s", redactURL(f.URL), err), "event", "upload:retry", "upload:path", f.Path, "upload:attempt", n+1, "upload:rollback", rolled)
		},
	}

	err := policy.Do(ctx, func(ctx context.Context, n int) error {
		if ctx.Err() != nil {
			return &AbortError{Cause: abortCause(ctx)}
		}
		u.setState(f, Attempting)
		cur = t.begin()
		err := u.put(ctx, f, cur, n)
		if err != nil {
			if ctx.Err() != nil {
				// the transfer was cut by cancellation, not a transient failure
				return &AbortError{Cause: abortCause(ctx)}
			}
			return err
		}
		cur.keep()
		return nil
	})

	if err == nil {
		u.setState(f, Succeeded)
		return nil
	}

	// terminal failures are not followed by OnRetry
	if cur != nil {
		cur.rollback()
	}

	var ae *AbortError
	if errors.As(err, &ae) {
		u.setState(f, CancelledFailed)
		return ae.Cause
	}

	u.setState(f, ExhaustedFailed)
	fe := &FileError{Path: f.Path, URL: f.URL, Err: err}
	var re *retryError
	if errors.As(err, &re) {
		fe.Attempts = re.attempts
		fe.Err = re.err
	}
	return fe
}

// put performs a single PUT of f, reporting streamed bytes to a.
func (u *Uploader) put(ctx context.Context, f File, a *attempt, n int) error {
	log := u.cfg.Logger.With("upload:path", f.Path, "upload:attempt", n+1, "upload:attempt_id", uuid.NewString())

	fh, err := u.cfg.Open(f.Path)
	if err != nil {
		log.DebugContext(ctx, fmt.Sprintf("Uploading '%s' failed: %s", f.Path, err), "event", "upload:failed")
		return err
	}
	src := &sourceFile{rc: fh}
	defer src.Close()

	// net/http waits for the body writer before Do returns, closing the
	// source unblocks a pending read once the attempt is cancelled
	reqCtx := ctx
	var body io.Reader = http.NoBody
	if f.ContentLength > 0 {
		body = io.LimitReader(src, f.ContentLength)
		if u.cfg.StallTimeout > 0 {
			sr, sctx := newStallDetectReader(ctx, body, src, u.cfg.StallTimeout, u.cfg.StallThreshold)
			defer sr.Close()
			body, reqCtx = sr, sctx
		} else {
			stop := context.AfterFunc(ctx, func() { src.Close() })
			defer stop()
		}
		body = &progressReader{r: body, delta: a.add}
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, f.URL, body)
	if err != nil {
		return err
	}
	req.ContentLength = f.ContentLength
	for k, v := range u.cfg.Headers {
		req.Header[k] = v
	}
	if req.Header.Get("Cache-Control") == "" {
		req.Header.Set("Cache-Control", "max-age=31536000")
	}
	req.Header.Set("Content-Type", f.ContentType)

	log.DebugContext(ctx, fmt.Sprintf("PUT '%s'", redactURL(f.URL)), "event", "upload:attempt")

	resp, err := u.cfg.Client.Do(req)
	if err != nil {
		if cause := context.Cause(reqCtx); errors.Is(cause, ErrUploadStalled) {
			err = ErrUploadStalled
		}
		log.DebugContext(ctx, fmt.Sprintf("Uploading '%s' failed: %s", f.Path, err), "event", "upload:failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, rerr := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := &HttpError{Code: resp.StatusCode, Body: excerpt, e: rerr}
		log.DebugContext(ctx, fmt.Sprintf("Uploading '%s' failed: %s", f.Path, err), "event", "upload:failed", "upload:status", resp.StatusCode)
		return err
	}
	// read full response, discard (ensures upload completed)
	io.Copy(io.Discard, resp.Body)

	log.DebugContext(ctx, fmt.Sprintf("Uploaded '%s'.", f.Path), "event", "upload:done")
	return nil
}

// validate rejects files that no attempt could ever upload.
func validate(files []File) error {
	for _, f := range files {
		if f.ContentLength < 0 {
			return fmt.Errorf("invalid content length %d for '%s'", f.ContentLength, f.Path)
		}
		pu, err := url.Parse(f.URL)
		if err != nil {
			return fmt.Errorf("invalid upload url for '%s': %w", f.Path, err)
		}
		if pu.Scheme != "http" && pu.Scheme != "https" {
			return fmt.Errorf("invalid upload url for '%s': unsupported scheme %q", f.Path, pu.Scheme)
		}
	}
	return nil
}

// sourceFile can be closed from the cancellation path while the transport
// is still reading it.
type sourceFile struct {
	rc   io.ReadCloser
	once sync.Once
	err  error
}

func (s *sourceFile) Read(p []byte) (int, error) {
	return s.rc.Read(p)
}

func (s *sourceFile) Close() error {
	s.once.Do(func() { s.err = s.rc.Close() })
	return s.err
}

func (u *Uploader) setState(f File, s State) {
	if u.cfg.OnStateChange != nil {
		u.cfg.OnStateChange(f, s)
	}
}

// abortCause returns the reason ctx ended with, ErrAborted when none was given.
func abortCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil || cause == context.Canceled {
		return fmt.Errorf("%w: %w", ErrAborted, context.Canceled)
	}
	return cause
}

// redactURL strips the query string, which holds the signature of pre-signed urls.
func redactURL(s string) string {
	pu, err := url.Parse(s)
	if err != nil {
		return "<invalid url>"
	}
	pu.RawQuery = ""
	pu.User = nil
	return pu.String()
}

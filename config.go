package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/KarpelesLab/typutil"
)

const (
	DefaultRetries        = 5
	DefaultConcurrency    = 10
	DefaultStallTimeout   = 30 * time.Second
	DefaultStallThreshold = 150 * 1024 // 150KB
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 30 * time.Second
)

// Config controls an Uploader. Use DefaultConfig or ConfigFromEnv as a base,
// the zero value disables retries and stall detection.
type Config struct {
	// Retries is the number of retries per file, on top of the first attempt.
	Retries int
	// Concurrency is the number of files uploading at the same time.
	Concurrency int

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// StallTimeout of zero disables stall detection.
	StallTimeout   time.Duration
	StallThreshold int64

	// FailFast cancels the other uploads of the batch on the first terminal failure.
	FailFast bool

	// Headers are added to every PUT request.
	Headers http.Header

	Client Doer
	Logger *slog.Logger

	// Open gives access to file contents, os.Open when nil.
	Open func(path string) (io.ReadCloser, error)

	// OnStateChange, when set, is called each time a file changes State.
	OnStateChange func(f File, s State)
}

func DefaultConfig() Config {
	return Config{
		Retries:        DefaultRetries,
		Concurrency:    DefaultConcurrency,
		BackoffInitial: DefaultBackoffInitial,
		BackoffMax:     DefaultBackoffMax,
		StallTimeout:   DefaultStallTimeout,
		StallThreshold: DefaultStallThreshold,
	}
}

// ConfigFromEnv returns DefaultConfig updated from UPLOAD_RETRIES,
// UPLOAD_CONCURRENCY and UPLOAD_STALL_TIMEOUT.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("UPLOAD_RETRIES"); ok && v != "" {
		n, err := typutil.As[int](v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid UPLOAD_RETRIES %q: %w", v, errOrRange(err))
		}
		cfg.Retries = n
	}
	if v, ok := os.LookupEnv("UPLOAD_CONCURRENCY"); ok && v != "" {
		n, err := typutil.As[int](v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid UPLOAD_CONCURRENCY %q: %w", v, errOrRange(err))
		}
		cfg.Concurrency = n
	}
	if v, ok := os.LookupEnv("UPLOAD_STALL_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid UPLOAD_STALL_TIMEOUT %q: %w", v, errOrRange(err))
		}
		cfg.StallTimeout = d
	}

	return cfg, nil
}

var errOutOfRange = errors.New("value out of range")

func errOrRange(err error) error {
	if err != nil {
		return err
	}
	return errOutOfRange
}

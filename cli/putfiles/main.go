package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/KarpelesLab/typutil"
	"github.com/KarpelesLab/upload"
	"github.com/KarpelesLab/webutil"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// upload files listed in manifest(s) to their pre-signed urls

var (
	retries     int
	concurrency int
	headers     string
	failFast    bool
	debug       bool
	jsonReport  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// env problems are reported once the command runs
	cfg := loadConfig(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	cmd := &cobra.Command{
		Use:           "putfiles <manifest>...",
		Short:         "Upload files to pre-signed urls listed in JSON or YAML manifests",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runUpload,
	}

	cmd.Flags().IntVar(&retries, "retries", cfg.Retries, "retries per file (env UPLOAD_RETRIES)")
	cmd.Flags().IntVar(&concurrency, "concurrency", cfg.Concurrency, "files uploading at once (env UPLOAD_CONCURRENCY)")
	cmd.Flags().StringVar(&headers, "header", "", "extra headers as a query string, e.g. \"x-amz-acl=public-read&cache-control=no-cache\"")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort other uploads on the first failure")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&jsonReport, "json", false, "print a JSON report on stdout")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := loadConfig(ctx, logger)
	cfg.Retries = retries
	cfg.Concurrency = concurrency
	cfg.FailFast = failFast
	cfg.Logger = logger

	var err error
	if headers != "" {
		cfg.Headers, err = parseHeaders(headers)
		if err != nil {
			return report(err, 0, 0, time.Duration(0))
		}
	}

	var files []upload.File
	for _, fn := range args {
		list, err := upload.LoadManifest(fn)
		if err != nil {
			return report(err, 0, 0, time.Duration(0))
		}
		files = append(files, list...)
	}

	var total int64
	for _, f := range files {
		total += f.ContentLength
	}

	live := !jsonReport && term.IsTerminal(int(os.Stderr.Fd()))
	var last atomic.Int64
	onProgress := func(n int64) {
		last.Store(n)
		if live {
			fmt.Fprintf(os.Stderr, "\r%s / %s", humanize.IBytes(uint64(n)), humanize.IBytes(uint64(total)))
		}
	}

	start := time.Now()
	err = upload.New(cfg).Upload(ctx, files, onProgress)
	if live {
		fmt.Fprintln(os.Stderr)
	}
	return report(err, len(files), last.Load(), time.Since(start))
}

// loadConfig reads the environment, falling back to defaults when it holds an
// invalid value. Flags can still override the result.
func loadConfig(ctx context.Context, logger *slog.Logger) upload.Config {
	cfg, err := upload.ConfigFromEnv()
	if err != nil {
		logger.WarnContext(ctx, fmt.Sprintf("Ignoring upload environment: %s", err), "event", "putfiles:env_invalid", "error", err)
		return upload.DefaultConfig()
	}
	return cfg
}

func parseHeaders(q string) (http.Header, error) {
	res := make(http.Header)
	for k, v := range webutil.ParsePhpQuery(q) {
		s, err := typutil.As[string](v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for header %s: %w", k, err)
		}
		res.Set(k, s)
	}
	return res, nil
}

package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/KarpelesLab/upload"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigInvalidEnv(t *testing.T) {
	for _, key := range []string{"UPLOAD_RETRIES", "UPLOAD_CONCURRENCY", "UPLOAD_STALL_TIMEOUT"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "lots")

			var buf bytes.Buffer
			cfg := loadConfig(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

			def := upload.DefaultConfig()
			assert.Equal(t, def.Retries, cfg.Retries)
			assert.Equal(t, def.Concurrency, cfg.Concurrency)
			assert.Equal(t, def.StallTimeout, cfg.StallTimeout)

			out := buf.String()
			assert.Contains(t, out, "level=WARN")
			assert.Contains(t, out, "event=putfiles:env_invalid")
			assert.Contains(t, out, key)
		})
	}
}

func TestLoadConfigValidEnv(t *testing.T) {
	t.Setenv("UPLOAD_RETRIES", "2")

	var buf bytes.Buffer
	cfg := loadConfig(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
	assert.Equal(t, 2, cfg.Retries)
	assert.Empty(t, buf.String())
}

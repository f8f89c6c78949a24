package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/KarpelesLab/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	r := newReport(nil, 3, 350, 1500*time.Millisecond)
	assert.Equal(t, "success", r.Result)
	assert.Equal(t, 3, r.Files)
	assert.Equal(t, int64(350), r.Bytes)
	assert.Equal(t, "1.5s", r.Duration)
	assert.Empty(t, r.Error)

	err := fmt.Errorf("batch: %w", &upload.FileError{Path: "a.js", Attempts: 6, Err: &upload.HttpError{Code: 403}})
	r = newReport(err, 3, 0, time.Second)
	assert.Equal(t, "error", r.Result)
	assert.Equal(t, "a.js", r.Path)
	assert.Equal(t, 403, r.Code)

	r = newReport(context.Canceled, 1, 0, time.Second)
	assert.Equal(t, "error", r.Result)
	assert.Empty(t, r.Path)
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders("x-amz-acl=public-read&cache-control=no-cache")
	require.NoError(t, err)
	assert.Equal(t, "public-read", h.Get("X-Amz-Acl"))
	assert.Equal(t, "no-cache", h.Get("Cache-Control"))
}

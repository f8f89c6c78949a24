package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("UPLOAD_RETRIES", "")
	t.Setenv("UPLOAD_CONCURRENCY", "")
	t.Setenv("UPLOAD_STALL_TIMEOUT", "")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, 10, cfg.Concurrency)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("UPLOAD_RETRIES", "2")
	t.Setenv("UPLOAD_CONCURRENCY", "4")
	t.Setenv("UPLOAD_STALL_TIMEOUT", "1m")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, time.Minute, cfg.StallTimeout)
}

func TestConfigFromEnvInvalid(t *testing.T) {
	testCases := []struct {
		name, key, value string
	}{
		{"negative retries", "UPLOAD_RETRIES", "-1"},
		{"zero concurrency", "UPLOAD_CONCURRENCY", "0"},
		{"bad duration", "UPLOAD_STALL_TIMEOUT", "soon"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := ConfigFromEnv()
			assert.ErrorContains(t, err, tc.key)
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	u := New(Config{Retries: -3})
	assert.Equal(t, 0, u.cfg.Retries)
	assert.Equal(t, DefaultConcurrency, u.cfg.Concurrency)
	assert.NotNil(t, u.cfg.Client)
	assert.NotNil(t, u.cfg.Logger)
	assert.NotNil(t, u.cfg.Open)
}

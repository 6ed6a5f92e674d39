package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FINTRACK_TEST_KEY=from-file\n"), 0o600))
	t.Setenv("FINTRACK_TEST_KEY", "")
	os.Unsetenv("FINTRACK_TEST_KEY")

	LoadEnvFile(path)
	assert.Equal(t, "from-file", os.Getenv("FINTRACK_TEST_KEY"))

	// godotenv never overrides variables already set.
	t.Setenv("FINTRACK_TEST_KEY", "from-env")
	LoadEnvFile(path)
	assert.Equal(t, "from-env", os.Getenv("FINTRACK_TEST_KEY"))

	assert.NotPanics(t, func() { LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")) })
}

func TestGracefulShutdownRunsCleanup(t *testing.T) {
	var cleaned bool
	ctx, stop := GracefulShutdown(log.Discard(), time.Second, func(context.Context) { cleaned = true })
	stop()

	assert.Error(t, ctx.Err(), "context is cancelled after stop")
	assert.True(t, cleaned, "cleanup runs")
}

func TestGracefulShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	_, stop := GracefulShutdown(log.Discard(), 10*time.Millisecond, func(ctx context.Context) {
		select {
		case <-release:
		case <-time.After(time.Second):
		}
	})

	start := time.Now()
	stop()
	assert.Less(t, time.Since(start), 500*time.Millisecond, "stop returns once the timeout elapses")
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug")
	assert.Equal(t, log.ComponentApp, logger.Component())
	assert.True(t, logger.Enabled(context.Background(), -4), "debug level is enabled")
}

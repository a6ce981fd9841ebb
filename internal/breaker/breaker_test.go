package breaker_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/mnemora/internal/breaker"
	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_TripsAfterMaxFailures(t *testing.T) {
	cfg := breaker.Config{MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxSuccesses: 1}
	b := breaker.New("test", cfg, clock.System{}, nil)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := b.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, "open", b.State())

	_, err := b.Execute(context.Background(), func() (interface{}, error) {
		return "should not run", nil
	})
	assert.Error(t, err)
}

func TestNew_RestoresOpenCooldownFromPersistedState(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "mnemora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	fc := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := breaker.Config{MaxFailures: 2, Timeout: 10 * time.Minute, HalfOpenMaxSuccesses: 1}

	first := breaker.New("restart-test", cfg, fc, conn)
	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := first.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)
	}
	require.Equal(t, "open", first.State())

	// A new Breaker for the same name, built moments later as if the process
	// had just restarted, should still honor the cooldown instead of
	// resetting to closed.
	second := breaker.New("restart-test", cfg, fc, conn)
	assert.Equal(t, "open", second.State())

	_, err = second.Execute(context.Background(), func() (interface{}, error) {
		return "should not run", nil
	})
	assert.ErrorIs(t, err, mnemerr.ErrCircuitOpen)

	fc.Advance(11 * time.Minute)
	assert.Equal(t, "closed", second.State())
}

func TestExecute_SuccessKeepsClosed(t *testing.T) {
	b := breaker.New("test2", breaker.DefaultConfig(), clock.System{}, nil)
	result, err := b.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", b.State())
}

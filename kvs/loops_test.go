package kvs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitter_WithinHalfToFullInterval(t *testing.T) {
	interval := 120 * time.Second
	for i := 0; i < 1000; i++ {
		d := jitter(interval)
		assert.GreaterOrEqual(t, d, interval/2)
		assert.LessOrEqual(t, d, interval)
	}
}

func TestJitter_TinyInterval(t *testing.T) {
	assert.Equal(t, time.Duration(1), jitter(1))
}

func TestPeriodicCommit_FlushesWithoutThreshold(t *testing.T) {
	h, _ := openTestHandle(t, func(c *Config) {
		c.CommitInterval = 20 * time.Millisecond
	})

	require.NoError(t, h.Create("k", testValue, NoExpiry))

	require.Eventually(t, func() bool {
		stats, err := h.Stats()
		return err == nil && stats.UncommittedCount == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPeriodicSweep_RemovesExpiredRows(t *testing.T) {
	h, clock := openTestHandle(t, func(c *Config) {
		c.SweepInterval = 20 * time.Millisecond
	})

	require.NoError(t, h.Create("short", testValue, 1))
	require.NoError(t, h.Create("forever", testValue, NoExpiry))
	clock.Advance(2 * time.Second)

	require.Eventually(t, func() bool {
		stats, err := h.Stats()
		return err == nil && stats.Rows == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err := h.Read("forever")
	assert.NoError(t, err)
}

func TestClose_StopsLoops(t *testing.T) {
	h, _ := openTestHandle(t, func(c *Config) {
		c.CommitInterval = 5 * time.Millisecond
		c.SweepInterval = 5 * time.Millisecond
	})
	time.Sleep(30 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- h.Close() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return; background loops still running")
	}
}

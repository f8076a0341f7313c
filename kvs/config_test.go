package kvs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, int64(1<<30), cfg.SizeLimit)
	assert.Equal(t, 32, cfg.MaxKeyLength)
	assert.Equal(t, 16*1024, cfg.MaxValueSize)
	assert.Equal(t, 10000, cfg.MaxUncommittedTransactions)
	assert.Equal(t, int64(15_360_000), cfg.MaxUncommittedSize)
	assert.Equal(t, 120*time.Second, cfg.CommitInterval)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, time.Second, cfg.LockTimeout)
	assert.NotNil(t, cfg.Clock)
	assert.NotNil(t, cfg.Logger)
}

func TestConfig_NegativeIntervalsDisableLoops(t *testing.T) {
	cfg := Config{CommitInterval: -1, SweepInterval: -time.Second}.withDefaults()
	assert.Negative(t, cfg.CommitInterval)
	assert.Negative(t, cfg.SweepInterval)
}

func TestConfig_KeepsExplicitValues(t *testing.T) {
	cfg := Config{SizeLimit: 5, MaxKeyLength: 8, LockTimeout: time.Minute}.withDefaults()
	assert.Equal(t, int64(5), cfg.SizeLimit)
	assert.Equal(t, 8, cfg.MaxKeyLength)
	assert.Equal(t, time.Minute, cfg.LockTimeout)
}

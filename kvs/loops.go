package kvs

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// start launches the periodic commit and sweep loops. Each runs until Close
// cancels its context.
func (h *Handle) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	if h.cfg.CommitInterval > 0 {
		h.loops.Add(1)
		go h.runPeriodic(ctx, "commit", h.cfg.CommitInterval, h.periodicFlush)
	}
	if h.cfg.SweepInterval > 0 {
		h.loops.Add(1)
		go h.runPeriodic(ctx, "sweep", h.cfg.SweepInterval, h.periodicSweep)
	}
}

// runPeriodic calls pass after every jittered interval until ctx is done.
// A failed pass is logged and the loop carries on with the next tick.
func (h *Handle) runPeriodic(ctx context.Context, name string, interval time.Duration, pass func() error) {
	defer h.loops.Done()

	timer := time.NewTimer(jitter(interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := pass(); err != nil {
			h.logger.Error("periodic pass failed", "loop", name, "error", err)
		}
		timer.Reset(jitter(interval))
	}
}

func (h *Handle) periodicFlush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	return h.flushLocked("periodic")
}

func (h *Handle) periodicSweep() error {
	_, err := h.Sweep()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// jitter returns a wait drawn uniformly from [interval/2, interval], so
// handles opened together do not flush and sweep in lockstep.
func jitter(interval time.Duration) time.Duration {
	half := interval / 2
	if half <= 0 {
		return interval
	}
	return half + rand.N(interval-half+1)
}

package scenario

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/ttlkv/internal/jsonval"
	"github.com/roach88/ttlkv/internal/testutil"
	"github.com/roach88/ttlkv/kvs"
)

// OutcomeOK is the outcome of a step that returned no error.
const OutcomeOK = "ok"

// Event records one executed step.
type Event struct {
	Seq     int
	Op      string
	Key     string
	TTL     *int
	Value   any // create payload or read result
	Keys    []string
	Removed *int64
	Outcome string        // OutcomeOK or an error code name
	At      time.Duration // clock offset from testutil.Epoch after the step
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause matched.
	Pass bool

	// Trace holds one event per step, in order.
	Trace []Event

	// Errors lists expect mismatches. Empty if Pass is true.
	Errors []string
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes s against a fresh data file in dir.
//
// The store runs on a manual clock with background loops disabled, so the
// trace depends only on the scenario. A nil logger discards store logs.
// The returned error covers setup failures; step failures that an expect
// clause does not cover are recorded in the trace, not returned.
func Run(s *Scenario, dir string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clock := testutil.NewManualClock()

	cfg := kvs.Config{
		Directory:      dir,
		CommitInterval: -1,
		SweepInterval:  -1,
		Clock:          clock,
		Logger:         logger,
	}
	if c := s.Config; c != nil {
		cfg.SizeLimit = c.SizeLimit
		cfg.MaxKeyLength = c.MaxKeyLength
		cfg.MaxValueSize = c.MaxValueSize
		cfg.MaxUncommittedTransactions = c.MaxUncommittedTransactions
		cfg.MaxUncommittedSize = c.MaxUncommittedSize
	}

	reg := kvs.NewRegistry(cfg)
	defer reg.Close()

	h, err := reg.Open(s.Name+".db", "")
	if err != nil {
		return nil, fmt.Errorf("open store for scenario %q: %w", s.Name, err)
	}

	result := &Result{Pass: true, Trace: make([]Event, 0, len(s.Steps)), Errors: []string{}}
	for i, step := range s.Steps {
		event, err := execute(h, clock, step)
		event.Seq = i + 1
		event.At = clock.Now().Sub(testutil.Epoch)
		event.Outcome = OutcomeOK
		if err != nil {
			event.Outcome = kvs.CodeOf(err).String()
		}
		result.Trace = append(result.Trace, event)

		check(result, i, step, event)
	}

	if err := h.Close(); err != nil {
		return nil, fmt.Errorf("close store for scenario %q: %w", s.Name, err)
	}
	return result, nil
}

func execute(h *kvs.Handle, clock *testutil.ManualClock, step Step) (Event, error) {
	event := Event{Op: step.Op, Key: step.Key}

	switch step.Op {
	case OpCreate:
		ttl := kvs.NoExpiry
		if step.TTL != nil {
			ttl = *step.TTL
			event.TTL = step.TTL
		}
		event.Value = step.Value
		return event, h.Create(step.Key, step.Value, ttl)

	case OpRead:
		value, err := h.Read(step.Key)
		if err == nil {
			event.Value = value
		}
		return event, err

	case OpDelete:
		return event, h.Delete(step.Key)

	case OpKeys:
		keys, err := h.Keys()
		event.Keys = keys
		return event, err

	case OpSweep:
		n, err := h.Sweep()
		if err == nil {
			event.Removed = &n
		}
		return event, err

	case OpFlush:
		return event, h.Flush()

	case OpOptimize:
		return event, h.Optimize()

	case OpAdvance:
		clock.Advance(time.Duration(step.Seconds * float64(time.Second)))
		return event, nil

	default:
		return event, fmt.Errorf("unknown op %q", step.Op)
	}
}

func check(result *Result, i int, step Step, event Event) {
	e := step.Expect
	if e == nil {
		return
	}
	where := fmt.Sprintf("steps[%d] (%s %q)", i, step.Op, step.Key)

	want := OutcomeOK
	if e.Error != "" {
		want = e.Error
	}
	if event.Outcome != want {
		result.addError("%s: expected %s, got %s", where, want, event.Outcome)
		return
	}

	if e.Value != nil {
		if !sameJSON(e.Value, event.Value) {
			result.addError("%s: expected value %s, got %s", where, render(e.Value), render(event.Value))
		}
	}
	if e.Keys != nil && !slices.Equal(e.Keys, event.Keys) {
		result.addError("%s: expected keys %v, got %v", where, e.Keys, event.Keys)
	}
	if e.Removed != nil && (event.Removed == nil || *e.Removed != *event.Removed) {
		result.addError("%s: expected %d removed rows, got %s", where, *e.Removed, render(event.Removed))
	}
}

// sameJSON compares two values by their canonical JSON encoding, so a YAML
// int and a decoded json.Number compare equal.
func sameJSON(a, b any) bool {
	ja, errA := jsonval.Marshal(a)
	jb, errB := jsonval.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

func render(v any) string {
	data, err := jsonval.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

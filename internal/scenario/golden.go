package scenario

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ttlkv/internal/jsonval"
)

// TraceJSON serializes a run as canonical JSON. The output is stable across
// runs and platforms and is what golden files hold.
func TraceJSON(name string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, event := range result.Trace {
		trace[i] = eventMap(event)
	}

	snapshot := map[string]any{
		"scenario": name,
		"pass":     result.Pass,
		"trace":    trace,
	}
	if len(result.Errors) > 0 {
		errs := make([]any, len(result.Errors))
		for i, msg := range result.Errors {
			errs[i] = msg
		}
		snapshot["errors"] = errs
	}
	return jsonval.Marshal(snapshot)
}

func eventMap(event Event) map[string]any {
	m := map[string]any{
		"seq":     event.Seq,
		"op":      event.Op,
		"outcome": event.Outcome,
		"at_ms":   event.At.Milliseconds(),
	}
	if event.Key != "" {
		m["key"] = event.Key
	}
	if event.TTL != nil {
		m["ttl"] = *event.TTL
	}
	if event.Value != nil {
		m["value"] = event.Value
	}
	if event.Keys != nil {
		keys := make([]any, len(event.Keys))
		for i, k := range event.Keys {
			keys[i] = k
		}
		m["keys"] = keys
	}
	if event.Removed != nil {
		m["removed"] = *event.Removed
	}
	return m
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/scenario -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(s, t.TempDir(), nil)
	if err != nil {
		return nil, err
	}

	traceJSON, err := TraceJSON(s.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, traceJSON)

	return result, nil
}

// Package scenario drives a store through scripted steps and records what
// happened.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: ttl_expiry
//	description: "A row disappears once its ttl has passed"
//	config:
//	  max_uncommitted_transactions: 2
//	steps:
//	  - op: create
//	    key: session
//	    value: {user: ada}
//	    ttl: 30
//	  - op: advance
//	    seconds: 31
//	  - op: read
//	    key: session
//	    expect:
//	      error: key_not_found
//
// Supported ops are create, read, delete, keys, sweep, flush, optimize and
// advance. An expect clause names the error code the step must fail with, or
// the value (read) or keys (keys) it must produce. Steps without expect are
// recorded but not checked.
//
// # Deterministic Execution
//
// Every run opens a fresh data file and uses a manual clock starting at
// testutil.Epoch, moved only by advance steps. Background loops are
// disabled. The trace is serialized as canonical JSON, so identical
// scenarios produce identical bytes and can be compared against golden
// files.
//
// # Usage
//
//	s, err := scenario.Load("testdata/scenarios/ttl_expiry.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := scenario.Run(s, t.TempDir(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package scenario

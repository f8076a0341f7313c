package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ttlkv/kvs"
)

// Scenario is a scripted sequence of store operations.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Config overrides store limits for this run.
	Config *Config `yaml:"config,omitempty"`

	// Steps run in order against a single handle.
	Steps []Step `yaml:"steps"`
}

// Config holds the store limits a scenario may override. Zero fields keep
// the store defaults.
type Config struct {
	SizeLimit                  int64 `yaml:"size_limit,omitempty"`
	MaxKeyLength               int   `yaml:"max_key_length,omitempty"`
	MaxValueSize               int   `yaml:"max_value_size,omitempty"`
	MaxUncommittedTransactions int   `yaml:"max_uncommitted_transactions,omitempty"`
	MaxUncommittedSize         int64 `yaml:"max_uncommitted_size,omitempty"`
}

// Step is one operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Key is required by create, read and delete.
	Key string `yaml:"key,omitempty"`

	// Value is the create payload.
	Value any `yaml:"value,omitempty"`

	// TTL in seconds for create. Absent means the row never expires.
	TTL *int `yaml:"ttl,omitempty"`

	// Seconds moves the clock forward (advance only).
	Seconds float64 `yaml:"seconds,omitempty"`

	// Expect checks the step's outcome. Nil means unchecked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a step's required outcome.
type Expect struct {
	// Error is the code name the step must fail with, e.g. "duplicate_key".
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Value is the value a read must return.
	Value any `yaml:"value,omitempty"`

	// Keys are the keys a keys step must list, in order.
	Keys []string `yaml:"keys,omitempty"`

	// Removed is the row count a sweep must report.
	Removed *int64 `yaml:"removed,omitempty"`
}

// Step operations.
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpDelete   = "delete"
	OpKeys     = "keys"
	OpSweep    = "sweep"
	OpFlush    = "flush"
	OpOptimize = "optimize"
	OpAdvance  = "advance"
)

// Load reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or fails validation.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario from YAML bytes.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "step:" vs "steps:"
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step *Step) error {
	switch step.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	case OpCreate, OpRead, OpDelete:
		if step.Key == "" {
			return fmt.Errorf("steps[%d]: key is required for %s", i, step.Op)
		}
	case OpAdvance:
		if step.Seconds <= 0 {
			return fmt.Errorf("steps[%d]: seconds must be positive for advance", i)
		}
	case OpKeys, OpSweep, OpFlush, OpOptimize:
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}

	if step.Op != OpCreate && (step.Value != nil || step.TTL != nil) {
		return fmt.Errorf("steps[%d]: value and ttl only apply to create", i)
	}

	if e := step.Expect; e != nil {
		if e.Error != "" {
			if _, ok := kvs.ParseCode(e.Error); !ok {
				return fmt.Errorf("steps[%d].expect: unknown error %q", i, e.Error)
			}
		}
		if e.Value != nil && step.Op != OpRead {
			return fmt.Errorf("steps[%d].expect: value only applies to read", i)
		}
		if e.Keys != nil && step.Op != OpKeys {
			return fmt.Errorf("steps[%d].expect: keys only applies to keys", i)
		}
		if e.Removed != nil && step.Op != OpSweep {
			return fmt.Errorf("steps[%d].expect: removed only applies to sweep", i)
		}
	}
	return nil
}

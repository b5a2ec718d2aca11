package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/livestore/internal/livestore"
)

// Scenario is a scripted run against an empty store.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is one operation or expectation.
type Step struct {
	// Op is one of put, delete_all, expect_count, expect_first, expect_keys.
	Op   string `yaml:"op"`
	Type string `yaml:"type"`

	// Key and Fields describe the record of a put.
	Key    string         `yaml:"key,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`

	// Where filters reads by field equality. The field "key" matches the
	// record key.
	Where   map[string]any `yaml:"where,omitempty"`
	OrderBy string         `yaml:"order_by,omitempty"`
	Desc    bool           `yaml:"desc,omitempty"`

	// Count is the expected count of expect_count.
	Count *int `yaml:"count,omitempty"`

	// Keys is the expected key order of expect_keys.
	Keys []string `yaml:"keys,omitempty"`

	// Absent makes expect_first expect no match.
	Absent bool `yaml:"absent,omitempty"`

	// Mode is sync, blocking or async. Empty means blocking.
	Mode string `yaml:"mode,omitempty"`
}

// Step ops.
const (
	OpPut         = "put"
	OpDeleteAll   = "delete_all"
	OpExpectCount = "expect_count"
	OpExpectFirst = "expect_first"
	OpExpectKeys  = "expect_keys"
)

// Execution modes.
const (
	ModeSync     = string(livestore.ModeSync)
	ModeBlocking = string(livestore.ModeBlocking)
	ModeAsync    = string(livestore.ModeAsync)
)

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes a scenario, rejecting unknown keys.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scenario is runnable.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s: no steps", s.Name)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("scenario %s: step %d: %w", s.Name, i+1, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	if st.Type == "" {
		return fmt.Errorf("%s: type is required", st.Op)
	}
	if _, err := livestore.ParseMode(st.Mode); err != nil {
		return fmt.Errorf("%s: %w", st.Op, err)
	}
	switch st.Op {
	case OpPut:
		if st.Key == "" {
			return fmt.Errorf("put: key is required")
		}
	case OpDeleteAll, OpExpectFirst:
	case OpExpectCount:
		if st.Count == nil {
			return fmt.Errorf("expect_count: count is required")
		}
	case OpExpectKeys:
		if st.Keys == nil {
			return fmt.Errorf("expect_keys: keys is required")
		}
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}

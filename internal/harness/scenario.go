package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run against a fresh store.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Store is the store id. Defaults to "scenario".
	Store string `yaml:"store,omitempty"`

	// Start is the manual clock's initial reading. Defaults to
	// 2025-01-02T15:00:00Z.
	Start string `yaml:"start,omitempty"`

	// Window is the liveness window. Defaults to 30s.
	Window string `yaml:"window,omitempty"`

	// IDs are handed out in order to helper steps that mint ids. When
	// empty, ids are q-1, q-2, ...
	IDs []string `yaml:"ids,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions check the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one of Commit, Request, Claim,
// Recover, Advance or Sweep is set.
type Step struct {
	// Commit is an event name; Payload is its body.
	Commit  string         `yaml:"commit,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty"`

	Request *RequestStep `yaml:"request,omitempty"`
	Claim   *ClaimStep   `yaml:"claim,omitempty"`
	Recover *RecoverStep `yaml:"recover,omitempty"`

	// Advance moves the manual clock forward, e.g. "31s".
	Advance string `yaml:"advance,omitempty"`

	// Sweep runs one liveness sweep.
	Sweep bool `yaml:"sweep,omitempty"`

	// Actor commits the step. Defaults to "u1".
	Actor string `yaml:"actor,omitempty"`

	// ExpectError names the rejection the step must produce: "schema", or
	// a commit error code such as NOTEBOOK_EXISTS.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// RequestStep runs Engine.RequestExecution.
type RequestStep struct {
	Cell     string `yaml:"cell"`
	Priority int64  `yaml:"priority,omitempty"`
	Count    int64  `yaml:"count,omitempty"`
	// Expect is the queue id the request must get.
	Expect string `yaml:"expect,omitempty"`
}

// ClaimStep runs Engine.ClaimNext.
type ClaimStep struct {
	Session string `yaml:"session"`
	// Expect is the claimed queue id, or "none" when nothing may be claimed.
	Expect string `yaml:"expect,omitempty"`
}

// RecoverStep runs Engine.RecoverOrphans.
type RecoverStep struct {
	// Expect lists the recovered queue ids in order. Nil skips the check.
	Expect []string `yaml:"expect"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": a row matching Where exists and has the Expect values
	// - "count": exactly Count rows match Where
	// - "head": the log head equals Count
	// - "replay": replaying the log reproduces the live tables
	Type string `yaml:"type"`

	// Table is the queried table (final_state, count).
	Table string `yaml:"table,omitempty"`

	// Where filters rows by column equality; null matches null columns.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected row count (count) or seq (head).
	Count int64 `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertCount      = "count"
	AssertHead       = "head"
	AssertReplay     = "replay"
)

// DefaultStart is the clock reading scenarios begin at.
var DefaultStart = time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and step shape.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}
	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if s.Window != "" {
		if _, err := time.ParseDuration(s.Window); err != nil {
			return fmt.Errorf("window: %w", err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	kinds := 0
	if step.Commit != "" {
		kinds++
	}
	if step.Request != nil {
		kinds++
		if step.Request.Cell == "" {
			return fmt.Errorf("steps[%d]: request.cell is required", index)
		}
	}
	if step.Claim != nil {
		kinds++
		if step.Claim.Session == "" {
			return fmt.Errorf("steps[%d]: claim.session is required", index)
		}
	}
	if step.Recover != nil {
		kinds++
	}
	if step.Advance != "" {
		kinds++
		if _, err := time.ParseDuration(step.Advance); err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
	}
	if step.Sweep {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("steps[%d]: exactly one of commit, request, claim, recover, advance, sweep is required", index)
	}
	if step.Payload != nil && step.Commit == "" {
		return fmt.Errorf("steps[%d]: payload is only valid with commit", index)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertHead, AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

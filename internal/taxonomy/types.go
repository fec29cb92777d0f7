// Package taxonomy defines the test smell rule set, core result
// structures, and stable ID generation for testsmell analysis results.
package taxonomy

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// RuleID names a test smell rule.
type RuleID string

// Rule identifiers, also used as configuration keys.
const (
	NoAsserts        RuleID = "no_asserts"
	MultipleAsserts  RuleID = "multiple_asserts"
	ConditionalLogic RuleID = "conditional_logic"
	ComputedExpected RuleID = "computed_expected"
)

// AllRules lists every rule in reporting order.
var AllRules = []RuleID{NoAsserts, MultipleAsserts, ConditionalLogic, ComputedExpected}

// Valid reports whether r is a known rule.
func (r RuleID) Valid() bool {
	_, ok := severityMap[r]
	return ok
}

// Severity grades how strongly a violation should be acted on.
type Severity string

// Severity constants, most severe first.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// TestTarget identifies the test method under analysis.
type TestTarget struct {
	// Assembly is the listing's assembly name.
	Assembly string `json:"assembly"`

	// Type is the declaring type, namespace included.
	Type string `json:"type"`

	// Method is the test method name.
	Method string `json:"method"`

	// Signature is the full method signature string.
	Signature string `json:"signature"`

	// Location is the source position of the first sequence point, or
	// empty when the listing carries no line information.
	Location string `json:"location,omitempty"`
}

// QualifiedName returns "Type::Method".
func (tt TestTarget) QualifiedName() string {
	return tt.Type + "::" + tt.Method
}

// Violation is a single test smell found in one test method.
type Violation struct {
	// ID is a stable identifier for diffing across runs.
	// Generated from sha256(assembly+method+rule+location).
	ID string `json:"id"`

	// Rule is the rule that fired.
	Rule RuleID `json:"rule"`

	// Severity is the configured severity of the rule.
	Severity Severity `json:"severity"`

	// Location is the source position (file:line) when known, else the
	// instruction label (IL_xxxx).
	Location string `json:"location"`

	// Message is a human-readable explanation.
	Message string `json:"message"`
}

// TestResult is the complete output for one test method.
type TestResult struct {
	// Target identifies the analyzed test.
	Target TestTarget `json:"target"`

	// Paths is the number of entry-to-return instruction paths.
	Paths int `json:"paths"`

	// Assertions is the number of assertion call sites in the body.
	Assertions int `json:"assertions"`

	// Violations is the list of detected test smells.
	Violations []Violation `json:"violations"`

	// Omitted counts violations dropped from Violations by the
	// run-wide violation cap.
	Omitted int `json:"omitted_violations,omitempty"`
}

// AnalysisError records a test method that could not be analyzed.
type AnalysisError struct {
	Target  TestTarget `json:"target"`
	Message string     `json:"message"`
}

// Metadata holds analysis run metadata.
type Metadata struct {
	RunID       string        `json:"run_id"`
	ToolVersion string        `json:"testsmell_version"`
	GoVersion   string        `json:"go_version"`
	Timestamp   time.Time     `json:"-"`
	Duration    time.Duration `json:"-"`
	Warnings    []string      `json:"warnings"`
}

// MarshalJSON customizes JSON encoding to use duration_ms and
// ISO 8601 timestamp.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type Alias Metadata
	ts := ""
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(&struct {
		Alias
		DurationMS int64  `json:"duration_ms"`
		Timestamp  string `json:"timestamp,omitempty"`
	}{
		Alias:      Alias(m),
		DurationMS: m.Duration.Milliseconds(),
		Timestamp:  ts,
	})
}

// Summary holds aggregate counts for a run.
type Summary struct {
	TotalTests      int              `json:"total_tests"`
	CleanTests      int              `json:"clean_tests"`
	Failed          int              `json:"failed"`
	TotalViolations int              `json:"total_violations"`
	ByRule          map[RuleID]int   `json:"by_rule"`
	BySeverity      map[Severity]int `json:"by_severity"`
	Truncated       bool             `json:"truncated,omitempty"`
}

// GenerateID produces a stable, deterministic ID for a violation
// based on its context. The ID is a sha256 hash truncated to 8 hex
// characters, prefixed with "ts-".
func GenerateID(assembly, method string, rule RuleID, location string) string {
	input := fmt.Sprintf("%s:%s:%s:%s", assembly, method, rule, location)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("ts-%x", hash[:4])
}

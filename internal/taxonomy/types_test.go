package taxonomy

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestGenerateID_Deterministic(t *testing.T) {
	id1 := GenerateID("Calc.Tests", "CalcTests::Adds", NoAsserts, "CalcTests.cs:10")
	id2 := GenerateID("Calc.Tests", "CalcTests::Adds", NoAsserts, "CalcTests.cs:10")

	if id1 != id2 {
		t.Errorf("GenerateID not deterministic: %q != %q", id1, id2)
	}
}

func TestGenerateID_Format(t *testing.T) {
	id := GenerateID("Calc.Tests", "CalcTests::Adds", NoAsserts, "IL_0000")

	if len(id) != 11 { // "ts-" + 8 hex chars
		t.Errorf("expected ID length 11, got %d: %q", len(id), id)
	}
	if id[:3] != "ts-" {
		t.Errorf("expected ID to start with 'ts-', got %q", id)
	}
}

func TestGenerateID_UniqueForDifferentInputs(t *testing.T) {
	id1 := GenerateID("Calc.Tests", "CalcTests::Adds", NoAsserts, "IL_0000")
	id2 := GenerateID("Calc.Tests", "CalcTests::Adds", MultipleAsserts, "IL_0000")
	id3 := GenerateID("Calc.Tests", "CalcTests::Subtracts", NoAsserts, "IL_0000")

	if id1 == id2 {
		t.Errorf("different rules should produce different IDs")
	}
	if id1 == id3 {
		t.Errorf("different methods should produce different IDs")
	}
}

func TestSeverityOf_AllRulesHaveSeverities(t *testing.T) {
	for _, r := range AllRules {
		if !r.Valid() {
			t.Errorf("%s is not valid", r)
		}
		if got := SeverityOf(r); got == "" {
			t.Errorf("SeverityOf(%s) returned empty severity", r)
		}
	}
	if RuleID("bogus").Valid() {
		t.Error("unknown rule reported as valid")
	}
	if got := SeverityOf("bogus"); got != SeverityInfo {
		t.Errorf("SeverityOf(bogus) = %s, want info", got)
	}
}

func TestSeverity_Rank(t *testing.T) {
	if !(SeverityError.Rank() < SeverityWarning.Rank() && SeverityWarning.Rank() < SeverityInfo.Rank()) {
		t.Error("severity ranks are not ordered error < warning < info")
	}
}

func TestTestTarget_QualifiedName(t *testing.T) {
	tt := TestTarget{Type: "Calc.Tests.CalcTests", Method: "Adds"}
	if got := tt.QualifiedName(); got != "Calc.Tests.CalcTests::Adds" {
		t.Errorf("QualifiedName() = %q", got)
	}
}

func TestMetadata_MarshalJSON(t *testing.T) {
	m := Metadata{
		ToolVersion: "dev",
		GoVersion:   "go1.24.2",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
		Warnings:    []string{},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"duration_ms":1500`,
		`"timestamp":"2026-01-02T03:04:05Z"`,
		`"testsmell_version":"dev"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}

	data, err = json.Marshal(Metadata{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "timestamp") {
		t.Errorf("zero timestamp should be omitted: %s", data)
	}
}

// Package report provides output formatters for testsmell analysis
// reports in JSON and human-readable text formats.
package report

import (
	"encoding/json"
	"io"

	"github.com/unbound-force/testsmell/internal/analysis"
	"github.com/unbound-force/testsmell/internal/taxonomy"
)

// SchemaVersion is the version of the JSON report layout.
const SchemaVersion = "1.0.0"

// JSONReport is the top-level JSON output structure.
type JSONReport struct {
	Version  string                   `json:"version"`
	Assembly string                   `json:"assembly"`
	Results  []taxonomy.TestResult    `json:"results"`
	Errors   []taxonomy.AnalysisError `json:"errors"`
	Summary  taxonomy.Summary         `json:"summary"`
	Metadata taxonomy.Metadata        `json:"metadata"`
}

// WriteJSON writes an analysis report as formatted JSON to the writer.
func WriteJSON(w io.Writer, rpt *analysis.Report) error {
	out := JSONReport{
		Version:  SchemaVersion,
		Assembly: rpt.Assembly,
		Results:  rpt.Results,
		Errors:   rpt.Errors,
		Summary:  rpt.Summary,
		Metadata: rpt.Metadata,
	}
	if out.Results == nil {
		out.Results = []taxonomy.TestResult{}
	}
	if out.Errors == nil {
		out.Errors = []taxonomy.AnalysisError{}
	}
	if out.Summary.ByRule == nil {
		out.Summary.ByRule = map[taxonomy.RuleID]int{}
	}
	if out.Summary.BySeverity == nil {
		out.Summary.BySeverity = map[taxonomy.Severity]int{}
	}
	if out.Metadata.Warnings == nil {
		out.Metadata.Warnings = []string{}
	}
	for i := range out.Results {
		if out.Results[i].Violations == nil {
			out.Results[i].Violations = []taxonomy.Violation{}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

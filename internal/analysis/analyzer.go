// Package analysis runs the test smell rules over every test method of a
// loaded assembly. Test methods are analyzed in parallel; a method that
// cannot be analyzed is recorded as an AnalysisError and does not stop
// the run.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/unbound-force/testsmell/internal/framework"
	"github.com/unbound-force/testsmell/internal/il"
	"github.com/unbound-force/testsmell/internal/loader"
	"github.com/unbound-force/testsmell/internal/rules"
	"github.com/unbound-force/testsmell/internal/taxonomy"
	"github.com/unbound-force/testsmell/internal/testcase"
)

// ErrTestNotFound is returned when TestFilter matches no test method.
var ErrTestNotFound = errors.New("test not found")

// Options configures the analysis behavior.
type Options struct {
	// Registry recognises test methods and assertions.
	// If nil, framework.Default() is used.
	Registry *framework.Registry

	// Rules is the rule set to apply. If nil, every rule runs with
	// default settings.
	Rules []rules.Rule

	// Severity maps a rule to the severity its violations carry.
	// If nil, taxonomy.SeverityOf is used.
	Severity func(taxonomy.RuleID) taxonomy.Severity

	// Include limits analysis to test methods whose qualified name it
	// accepts. Nil accepts every test.
	Include func(string) bool

	// TestFilter limits analysis to one test, by bare method name or
	// "Type::Method". Empty string means analyze all tests.
	TestFilter string

	// MaxViolations caps the number of reported violations across the
	// run. Zero means no cap.
	MaxViolations int

	// Workers bounds parallelism. Zero means GOMAXPROCS.
	Workers int

	// Version is the testsmell version string to embed in metadata.
	// If empty, defaults to "dev".
	Version string

	// Logger receives progress and per-test failures. Nil is silent.
	Logger *log.Logger
}

// Report is the outcome of one analysis run.
type Report struct {
	Assembly string                   `json:"assembly"`
	Results  []taxonomy.TestResult    `json:"results"`
	Errors   []taxonomy.AnalysisError `json:"errors"`
	Summary  taxonomy.Summary         `json:"summary"`
	Metadata taxonomy.Metadata        `json:"metadata"`
}

// outcome is the per-test slot written by exactly one goroutine.
type outcome struct {
	result *taxonomy.TestResult
	err    *taxonomy.AnalysisError
}

// Analyze applies the rules to every test method of asm. Results are in
// listing order regardless of scheduling.
func Analyze(ctx context.Context, asm *loader.Assembly, opts Options) (*Report, error) {
	start := time.Now()
	opts = opts.withDefaults()

	tests := testcase.Discover(asm, opts.Registry, opts.Include)
	if opts.TestFilter != "" {
		tests = filterTests(tests, opts.TestFilter)
		if len(tests) == 0 {
			return nil, fmt.Errorf("%q in %s: %w", opts.TestFilter, asm.Name, ErrTestNotFound)
		}
	}
	opts.Logger.Debug("discovered tests", "assembly", asm.Name, "count", len(tests))

	outcomes := make([]outcome, len(tests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, m := range tests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = analyzeTest(asm, m, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", asm.Name, err)
	}

	rpt := &Report{
		Assembly: asm.Name,
		Results:  make([]taxonomy.TestResult, 0, len(tests)),
		Errors:   []taxonomy.AnalysisError{},
	}
	for _, o := range outcomes {
		if o.err != nil {
			rpt.Errors = append(rpt.Errors, *o.err)
			continue
		}
		rpt.Results = append(rpt.Results, *o.result)
	}

	// Totals count every violation found, including truncated ones.
	rpt.Summary = Summarize(rpt.Results, rpt.Errors)
	truncated := truncate(rpt.Results, opts.MaxViolations)
	rpt.Summary.Truncated = truncated
	rpt.Metadata = buildMetadata(start, opts.Version)
	if truncated {
		rpt.Metadata.Warnings = append(rpt.Metadata.Warnings,
			fmt.Sprintf("violations truncated to %d", opts.MaxViolations))
	}
	return rpt, nil
}

// LoadAndAnalyze is a convenience function that loads a listing and
// runs analysis with the given options.
func LoadAndAnalyze(ctx context.Context, path string, opts Options) (*Report, error) {
	asm, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	return Analyze(ctx, asm, opts)
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = framework.Default()
	}
	if o.Rules == nil {
		o.Rules = rules.New(rules.Options{})
	}
	if o.Severity == nil {
		o.Severity = taxonomy.SeverityOf
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// analyzeTest runs every rule on one test method.
func analyzeTest(asm *loader.Assembly, m *il.Method, opts Options) outcome {
	target := testcase.TargetOf(asm, m)
	fail := func(err error) outcome {
		opts.Logger.Warn("skipping test", "test", target.QualifiedName(), "err", err)
		return outcome{err: &taxonomy.AnalysisError{Target: target, Message: err.Error()}}
	}

	tc, err := testcase.New(asm, m, opts.Registry)
	if err != nil {
		return fail(err)
	}
	paths, err := tc.Paths()
	if err != nil {
		return fail(err)
	}

	result := &taxonomy.TestResult{
		Target:     target,
		Paths:      len(paths),
		Assertions: len(tc.AssertionSites()),
		Violations: []taxonomy.Violation{},
	}
	for _, r := range opts.Rules {
		findings, err := r.Check(tc)
		if err != nil {
			return fail(fmt.Errorf("rule %s: %w", r.ID(), err))
		}
		for _, f := range findings {
			loc := testcase.Location(f.At)
			result.Violations = append(result.Violations, taxonomy.Violation{
				ID:       taxonomy.GenerateID(asm.Name, target.QualifiedName(), f.Rule, f.At.Label()),
				Rule:     f.Rule,
				Severity: opts.Severity(f.Rule),
				Location: loc,
				Message:  f.Message,
			})
		}
	}
	opts.Logger.Debug("analyzed test", "test", target.QualifiedName(),
		"paths", result.Paths, "violations", len(result.Violations))
	return outcome{result: result}
}

func filterTests(tests []*il.Method, name string) []*il.Method {
	var out []*il.Method
	for _, m := range tests {
		if m.Name == name || m.FullName() == name {
			out = append(out, m)
		}
	}
	return out
}

// truncate drops violations beyond limit, keeping result order, records
// the count dropped from each result, and reports whether any were
// dropped.
func truncate(results []taxonomy.TestResult, limit int) bool {
	if limit <= 0 {
		return false
	}
	remaining := limit
	dropped := false
	for i := range results {
		v := results[i].Violations
		if len(v) > remaining {
			results[i].Violations = v[:remaining]
			results[i].Omitted = len(v) - remaining
			dropped = true
		}
		remaining -= len(results[i].Violations)
	}
	return dropped
}

// Summarize computes aggregate counts over results and errors.
func Summarize(results []taxonomy.TestResult, errs []taxonomy.AnalysisError) taxonomy.Summary {
	s := taxonomy.Summary{
		TotalTests: len(results) + len(errs),
		Failed:     len(errs),
		ByRule:     make(map[taxonomy.RuleID]int),
		BySeverity: make(map[taxonomy.Severity]int),
	}
	for _, r := range results {
		if len(r.Violations) == 0 {
			s.CleanTests++
		}
		for _, v := range r.Violations {
			s.TotalViolations++
			s.ByRule[v.Rule]++
			s.BySeverity[v.Severity]++
		}
	}
	return s
}

// buildMetadata creates analysis metadata with current timing.
func buildMetadata(start time.Time, version string) taxonomy.Metadata {
	if version == "" {
		version = "dev"
	}
	return taxonomy.Metadata{
		RunID:       uuid.NewString(),
		ToolVersion: version,
		GoVersion:   runtime.Version(),
		Timestamp:   start,
		Duration:    time.Since(start),
		Warnings:    []string{},
	}
}

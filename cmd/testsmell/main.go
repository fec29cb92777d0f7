package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	charmlog "github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/unbound-force/testsmell/internal/analysis"
	"github.com/unbound-force/testsmell/internal/config"
	"github.com/unbound-force/testsmell/internal/framework"
	"github.com/unbound-force/testsmell/internal/report"
	"github.com/unbound-force/testsmell/internal/rules"
	"github.com/unbound-force/testsmell/internal/scaffold"
	"github.com/unbound-force/testsmell/internal/taxonomy"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

func main() {
	// Interrupts cancel the command context; watch mode returns cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "testsmell",
		Short: "testsmell: detect test anti-patterns in compiled .NET tests",
		Long: `testsmell reads an IL listing of a test assembly, follows every
execution path of each test method, and reports test smells such as
missing or repeated assertions, branching tests, and expected values
computed by the code under test.`,
		Version: version,
	}

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newPathsCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newInitCmd())
	return root
}

// analyzeParams holds the parsed flags for the analyze command.
type analyzeParams struct {
	listing       string
	format        string
	configPath    string
	test          string
	interactive   bool
	watch         bool
	maxViolations int
	verbose       bool
	hideClean     bool
	failOn        string
	stdout        io.Writer
	stderr        io.Writer
}

// runAnalyze is the extracted, testable body of the analyze command.
func runAnalyze(ctx context.Context, p analyzeParams) error {
	if p.format != "text" && p.format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", p.format)
	}
	failOn, err := parseFailOn(p.failOn)
	if err != nil {
		return err
	}
	if p.interactive {
		if p.watch {
			return fmt.Errorf("--interactive cannot be combined with --watch")
		}
		if !isTerminal(p.stdout) {
			return fmt.Errorf("interactive mode needs a terminal on stdout")
		}
	}
	if p.verbose {
		logger.SetLevel(charmlog.DebugLevel)
	}

	if p.watch {
		files := []string{p.listing, p.configPath}
		if p.configPath == "" {
			files[1] = config.DefaultFile
		}
		return watchLoop(ctx, files, func() error {
			return analyzeOnce(ctx, p, failOn)
		})
	}
	return analyzeOnce(ctx, p, failOn)
}

// analyzeOnce loads the config and the listing, analyzes, and writes the
// report. The config is read on every call so watch mode picks up edits.
func analyzeOnce(ctx context.Context, p analyzeParams, failOn taxonomy.Severity) error {
	cfg, err := loadConfig(p.configPath)
	if err != nil {
		return err
	}
	opts, err := analysisOptions(cfg)
	if err != nil {
		return err
	}
	opts.TestFilter = p.test
	opts.MaxViolations = p.maxViolations
	opts.Version = version
	opts.Logger = logger

	logger.Info("analyzing listing", "path", p.listing)
	rpt, err := analysis.LoadAndAnalyze(ctx, p.listing, opts)
	if err != nil {
		return err
	}
	logger.Info("analysis complete",
		"tests", rpt.Summary.TotalTests, "violations", rpt.Summary.TotalViolations)

	if p.interactive {
		if err := runInteractiveAnalyze(rpt); err != nil {
			return err
		}
	} else if err := writeReport(p, rpt); err != nil {
		return err
	}

	printFailOnSummary(p.stderr, rpt.Summary, failOn)
	return checkFailOn(rpt.Summary, failOn)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// loadConfig reads the config at path. An empty path looks for the
// default file in the working directory.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultFile
	}
	return config.Load(path)
}

// analysisOptions turns a config into analysis options: the framework
// registry, the enabled rules, severities and the method filter.
func analysisOptions(cfg *config.Config) (analysis.Options, error) {
	reg, unknown := framework.Default().Select(cfg.Frameworks)
	if len(unknown) > 0 {
		return analysis.Options{}, fmt.Errorf("unknown framework(s): %s", strings.Join(unknown, ", "))
	}
	return analysis.Options{
		Registry: reg.WithAssertionTypes(cfg.AssertionTypes),
		Rules: rules.New(rules.Options{
			Enabled:    cfg.RuleEnabled,
			MaxAsserts: cfg.MaxAsserts(),
		}),
		Severity: cfg.Severity,
		Include:  cfg.IncludeMethod,
	}, nil
}

func writeReport(p analyzeParams, rpt *analysis.Report) error {
	switch p.format {
	case "json":
		return report.WriteJSON(p.stdout, rpt)
	default:
		return report.WriteText(p.stdout, rpt, report.TextOptions{
			Verbose:   p.verbose,
			HideClean: p.hideClean,
		})
	}
}

func parseFailOn(s string) (taxonomy.Severity, error) {
	switch sev := taxonomy.Severity(s); sev {
	case "", taxonomy.SeverityError, taxonomy.SeverityWarning, taxonomy.SeverityInfo:
		return sev, nil
	default:
		return "", fmt.Errorf("invalid --fail-on %q: must be 'error', 'warning', or 'info'", s)
	}
}

// countAtOrAbove sums the violations whose severity ranks at least as
// high as level.
func countAtOrAbove(sum taxonomy.Summary, level taxonomy.Severity) int {
	n := 0
	for sev, c := range sum.BySeverity {
		if sev.Rank() <= level.Rank() {
			n += c
		}
	}
	return n
}

// printFailOnSummary prints a one-line CI summary to stderr when
// --fail-on is set.
func printFailOnSummary(w io.Writer, sum taxonomy.Summary, level taxonomy.Severity) {
	if level == "" {
		return
	}
	n := countAtOrAbove(sum, level)
	status := "PASS"
	if n > 0 {
		status = "FAIL"
	}
	fmt.Fprintf(w, "fail-on %s: %d violation(s) (%s)\n", level, n, status)
}

// checkFailOn returns an error if any violation is at least as severe as
// level. An empty level never fails.
func checkFailOn(sum taxonomy.Summary, level taxonomy.Severity) error {
	if level == "" {
		return nil
	}
	if n := countAtOrAbove(sum, level); n > 0 {
		return fmt.Errorf("%d violation(s) at or above severity %s", n, level)
	}
	return nil
}

func newAnalyzeCmd() *cobra.Command {
	var (
		format        string
		configPath    string
		test          string
		interactive   bool
		watch         bool
		maxViolations int
		verbose       bool
		hideClean     bool
		failOn        string
	)

	cmd := &cobra.Command{
		Use:   "analyze [listing.yaml]",
		Short: "Report test smells in a test assembly listing",
		Long: `Analyze every test method in an IL listing and report the
test smells each one exhibits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), analyzeParams{
				listing:       args[0],
				format:        format,
				configPath:    configPath,
				test:          test,
				interactive:   interactive,
				watch:         watch,
				maxViolations: maxViolations,
				verbose:       verbose,
				hideClean:     hideClean,
				failOn:        failOn,
				stdout:        cmd.OutOrStdout(),
				stderr:        cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "text",
		"output format: text or json")
	cmd.Flags().StringVar(&configPath, "config", "",
		"path to config file (default: "+config.DefaultFile+")")
	cmd.Flags().StringVarP(&test, "test", "t", "",
		"analyze a single test, by method name or Type::Method")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"launch interactive TUI for browsing results")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false,
		"re-run the analysis whenever the listing or config changes")
	cmd.Flags().IntVar(&maxViolations, "max-violations", 0,
		"stop reporting after this many violations (0 = no limit)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"debug logging and per-test path counts")
	cmd.Flags().BoolVar(&hideClean, "hide-clean", false,
		"omit tests without violations from text output")
	cmd.Flags().StringVar(&failOn, "fail-on", "",
		"fail if any violation has this severity or higher: error, warning, or info")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for testsmell analysis output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of testsmell analyze --format=json output. Useful for
validating output or generating client types.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), report.Schema)
			return err
		},
	}
}

// initParams holds the parsed flags for the init command.
type initParams struct {
	targetDir string
	force     bool
	stdout    io.Writer
}

// runInit is the extracted, testable body of the init command.
func runInit(p initParams) error {
	_, err := scaffold.Run(scaffold.Options{
		TargetDir: p.targetDir,
		Force:     p.force,
		Version:   version,
		Stdout:    p.stdout,
	})
	return err
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter " + config.DefaultFile,
		Long: `Write a commented ` + config.DefaultFile + ` with the default rule
settings into the current directory. An existing file is kept unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initParams{
				force:  force,
				stdout: cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false,
		"overwrite an existing config file")

	return cmd
}

// Package scaffold writes a starter .testsmell.yaml into a project.
package scaffold

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unbound-force/testsmell/internal/config"
)

//go:embed assets/testsmell.yaml
var starter []byte

const markerPrefix = "# scaffolded by testsmell "

// Options configures Run.
type Options struct {
	// TargetDir receives the config file. Empty means the working
	// directory.
	TargetDir string

	// Force replaces an existing config file.
	Force bool

	// Version goes into the marker comment on the first line.
	// Empty means "dev".
	Version string

	// Stdout receives the summary. Nil means os.Stdout.
	Stdout io.Writer
}

// Action is what Run did with the config file.
type Action string

const (
	// Created means no config file existed and one was written.
	Created Action = "created"

	// Skipped means an existing file was kept because Force was off.
	Skipped Action = "skipped"

	// Overwritten means an existing file was replaced because Force was on.
	Overwritten Action = "overwritten"
)

// Result describes the outcome of Run.
type Result struct {
	Path   string
	Action Action

	// PreviousVersion is the testsmell version recorded in the marker of
	// a file that already existed. Empty when there was no file or it was
	// written by hand.
	PreviousVersion string
}

// Starter returns the embedded starter config without a marker line.
func Starter() []byte {
	return bytes.Clone(starter)
}

// MarkerVersion reports the version named by the marker comment on the
// first line of a config file.
func MarkerVersion(data []byte) (string, bool) {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	rest, ok := strings.CutPrefix(strings.TrimRight(string(line), "\r"), markerPrefix)
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// Run writes the starter config, prefixed with a version marker, into
// opts.TargetDir. An existing file is left alone unless opts.Force is set.
func Run(opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	res := &Result{Path: filepath.Join(opts.TargetDir, config.DefaultFile), Action: Created}
	existing, err := os.ReadFile(res.Path)
	switch {
	case err == nil:
		res.PreviousVersion, _ = MarkerVersion(existing)
		res.Action = Overwritten
		if !opts.Force {
			res.Action = Skipped
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading %s: %w", res.Path, err)
	}

	if res.Action != Skipped {
		content := append([]byte(markerPrefix+opts.Version+"\n"), starter...)
		if err := writeAtomic(res.Path, content); err != nil {
			return nil, err
		}
	}

	printSummary(opts.Stdout, res)
	return res, nil
}

// writeAtomic replaces path through a temporary file in the same
// directory so a failed write never leaves a truncated config.
func writeAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".testsmell-*.yaml")
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func printSummary(w io.Writer, r *Result) {
	name := filepath.Base(r.Path)
	fmt.Fprintln(w, "testsmell configuration initialized:")
	switch r.Action {
	case Skipped:
		from := "written by hand"
		if r.PreviousVersion != "" {
			from = "from testsmell " + r.PreviousVersion
		}
		fmt.Fprintf(w, "  skipped: %s (already exists, %s)\n", name, from)
		fmt.Fprintln(w, "use --force to overwrite.")
	default:
		fmt.Fprintf(w, "  %s: %s\n", r.Action, name)
	}
}

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/unbound-force/testsmell/internal/analysis"
	"github.com/unbound-force/testsmell/internal/taxonomy"
)

// TextOptions controls human-readable output.
type TextOptions struct {
	// Verbose adds path and assertion counts to every test line.
	Verbose bool

	// HideClean omits tests without violations from the tree.
	HideClean bool
}

// WriteText writes an analysis report as human-readable styled text
// to the writer. Output uses lipgloss for color and formatting when
// the output is a TTY; degrades gracefully for pipes and CI.
func WriteText(w io.Writer, rpt *analysis.Report, opts TextOptions) error {
	s := DefaultStyles()

	t, err := BuildTree(rpt)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== %s ===", rpt.Assembly)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTree(t, s, opts))

	if rpt.Summary.TotalViolations > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ruleTable(rpt.Summary, s))
		fmt.Fprintf(w, "    Severity: %s\n", severityLine(rpt.Summary, s))
	}

	for _, warn := range rpt.Metadata.Warnings {
		fmt.Fprintln(w, s.Muted.Render("    warning: "+warn))
	}

	fmt.Fprintf(w, "\n%s\n", s.Header.Render(fmt.Sprintf(
		"%d test(s) analyzed, %d clean, %d failed, %d violation(s)",
		rpt.Summary.TotalTests, rpt.Summary.CleanTests,
		rpt.Summary.Failed, rpt.Summary.TotalViolations)))
	return nil
}

func renderTree(t *Tree, s Styles, opts TextOptions) *tree.Tree {
	root := t.Root()
	out := tree.Root(s.Header.Render(root.Key)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(s.Border)
	for _, child := range t.Children(root) {
		if sub := renderNode(t, child, s, opts); sub != nil {
			out.Child(sub)
		}
	}
	return out
}

// renderNode returns a string for leaves and a subtree for inner nodes,
// or nil when the node is hidden.
func renderNode(t *Tree, n Node, s Styles, opts TextOptions) any {
	switch n.Kind {
	case KindType, KindFailed:
		label := s.Type.Render(n.Key)
		if n.Kind == KindFailed {
			label = s.Fail.Render("could not analyze")
		}
		sub := tree.Root(label).EnumeratorStyle(s.Border)
		shown := 0
		for _, child := range t.Children(n) {
			if c := renderNode(t, child, s, opts); c != nil {
				sub.Child(c)
				shown++
			}
		}
		if shown == 0 {
			return nil
		}
		return sub

	case KindTest:
		if e, ok := t.Error(n); ok {
			return fmt.Sprintf("%s %s", e.Target.QualifiedName(), s.Fail.Render(e.Message))
		}
		r, _ := t.Test(n)
		label := testLabel(r, s, opts)
		if r.Omitted > 0 {
			label += " " + s.Muted.Render(fmt.Sprintf("(%d more violation(s) not shown)", r.Omitted))
		}
		children := t.Children(n)
		if len(children) == 0 {
			if r.Omitted > 0 {
				return label
			}
			if opts.HideClean {
				return nil
			}
			return label + " " + s.Clean.Render("clean")
		}
		sub := tree.Root(label).EnumeratorStyle(s.Border)
		for _, child := range children {
			sub.Child(renderNode(t, child, s, opts))
		}
		return sub

	case KindViolation:
		v, _ := t.Violation(n)
		return fmt.Sprintf("%s %s %s %s",
			s.SeverityStyle(v.Severity).Render(string(v.Severity)),
			v.Rule, s.Muted.Render(v.Location), v.Message)
	}
	return n.Key
}

func testLabel(r taxonomy.TestResult, s Styles, opts TextOptions) string {
	label := r.Target.Method
	if r.Target.Location != "" {
		label += " " + s.Muted.Render(r.Target.Location)
	}
	if opts.Verbose {
		label += s.SubHeader.Render(fmt.Sprintf(" (%d path(s), %d assertion(s))", r.Paths, r.Assertions))
	}
	return label
}

// ruleTable counts violations per rule, one row per rule in rule order.
func ruleTable(sum taxonomy.Summary, s Styles) *table.Table {
	rows := make([][]string, 0, len(taxonomy.AllRules))
	for _, id := range taxonomy.AllRules {
		rows = append(rows, []string{string(id), fmt.Sprintf("%d", sum.ByRule[id])})
	}
	return table.New().
		Width(40).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			return s.TableCell
		}).
		Headers("RULE", "VIOLATIONS").
		Rows(rows...)
}

func severityLine(sum taxonomy.Summary, s Styles) string {
	var parts []string
	for _, sev := range []taxonomy.Severity{
		taxonomy.SeverityError, taxonomy.SeverityWarning, taxonomy.SeverityInfo,
	} {
		if c, ok := sum.BySeverity[sev]; ok && c > 0 {
			parts = append(parts, s.SeverityStyle(sev).Render(fmt.Sprintf("%s: %d", sev, c)))
		}
	}
	return strings.Join(parts, ", ")
}

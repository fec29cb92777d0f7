package report

import (
	"fmt"

	"github.com/unbound-force/testsmell/internal/analysis"
	"github.com/unbound-force/testsmell/internal/graph"
	"github.com/unbound-force/testsmell/internal/taxonomy"
)

// NodeKind is the variant of a violation tree node.
type NodeKind string

// Violation tree levels, root first.
const (
	KindAssembly  NodeKind = "assembly"
	KindType      NodeKind = "type"
	KindFailed    NodeKind = "failed"
	KindTest      NodeKind = "test"
	KindViolation NodeKind = "violation"
)

// Node is a vertex of the violation tree. Key is unique within a kind.
type Node struct {
	Kind NodeKind
	Key  string
}

// Tree groups a report as assembly, then declaring type, then test, then
// violation. Tests that failed to analyze hang under a single "failed"
// node below the assembly.
type Tree struct {
	*graph.Graph[Node]

	tests      map[string]taxonomy.TestResult
	errors     map[string]taxonomy.AnalysisError
	violations map[string]taxonomy.Violation
	owner      map[string]string
}

// BuildTree folds the report's results into a tree rooted at the
// assembly node.
func BuildTree(rpt *analysis.Report) (*Tree, error) {
	t := &Tree{
		tests:      make(map[string]taxonomy.TestResult),
		errors:     make(map[string]taxonomy.AnalysisError),
		violations: make(map[string]taxonomy.Violation),
		owner:      make(map[string]string),
	}
	root := Node{Kind: KindAssembly, Key: rpt.Assembly}

	var leaves []Node
	for _, r := range rpt.Results {
		key := r.Target.Signature
		t.tests[key] = r
		// Tests whose violations were all cut by the cap stay test leaves;
		// the renderer marks them instead of calling them clean.
		if len(r.Violations) == 0 {
			leaves = append(leaves, Node{Kind: KindTest, Key: key})
			continue
		}
		for i, v := range r.Violations {
			vk := fmt.Sprintf("%s#%d", key, i)
			t.violations[vk] = v
			t.owner[vk] = key
			leaves = append(leaves, Node{Kind: KindViolation, Key: vk})
		}
	}
	for _, e := range rpt.Errors {
		key := e.Target.Signature
		t.errors[key] = e
		leaves = append(leaves, Node{Kind: KindTest, Key: key})
	}
	if len(leaves) == 0 {
		leaves = []Node{root}
	}

	b := graph.NewTreeBuilder(func(n Node) string { return string(n.Kind) })
	b.Group(string(KindViolation)).As(func(n Node) Node {
		return Node{Kind: KindTest, Key: t.owner[n.Key]}
	})
	b.Group(string(KindTest)).
		When(t.failed).As(func(Node) Node { return Node{Kind: KindFailed, Key: "failed"} }).
		As(func(n Node) Node { return Node{Kind: KindType, Key: t.tests[n.Key].Target.Type} })
	b.Group(string(KindType)).As(func(Node) Node { return root })
	b.Group(string(KindFailed)).As(func(Node) Node { return root })

	g, err := b.Build(leaves)
	if err != nil {
		return nil, fmt.Errorf("building report tree: %w", err)
	}
	t.Graph = g
	return t, nil
}

func (t *Tree) failed(n Node) bool {
	_, ok := t.errors[n.Key]
	return ok
}

// Children returns the child nodes of n in report order.
func (t *Tree) Children(n Node) []Node {
	heads, err := t.HeadsFor(n)
	if err != nil {
		return nil
	}
	return heads
}

// Test returns the result behind a test node.
func (t *Tree) Test(n Node) (taxonomy.TestResult, bool) {
	r, ok := t.tests[n.Key]
	return r, ok
}

// Error returns the analysis error behind a failed test node.
func (t *Tree) Error(n Node) (taxonomy.AnalysisError, bool) {
	e, ok := t.errors[n.Key]
	return e, ok
}

// Violation returns the violation behind a violation node.
func (t *Tree) Violation(n Node) (taxonomy.Violation, bool) {
	v, ok := t.violations[n.Key]
	return v, ok
}

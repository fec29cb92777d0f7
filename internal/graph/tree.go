package graph

import "fmt"

// maxTreeDepth bounds the number of new parents synthesized above a single
// leaf. Rules that keep inventing parents fail instead of running forever.
const maxTreeDepth = 1024

// TreeBuilder folds a flat set of leaves into a single-rooted tree by
// repeatedly replacing nodes with synthesized parents. Parents are
// produced by grouping rules registered per variant tag; a node whose
// variant has no applicable rule is headless and becomes the root
// candidate.
//
// Synthesized parents are compared with ==, so two leaves that convert to
// equal parents share one vertex. A TreeBuilder holds rules only; all
// working state lives in Build.
type TreeBuilder[N comparable] struct {
	tag    func(N) string
	groups map[string]*Grouping[N]
}

// NewTreeBuilder returns a TreeBuilder that dispatches rules on the tag
// reported by tag for each node.
func NewTreeBuilder[N comparable](tag func(N) string) *TreeBuilder[N] {
	return &TreeBuilder[N]{
		tag:    tag,
		groups: make(map[string]*Grouping[N]),
	}
}

// Grouping collects the conversion rules of one variant.
type Grouping[N comparable] struct {
	guarded  []guardedRule[N]
	fallback func(N) N
}

type guardedRule[N comparable] struct {
	when func(N) bool
	as   func(N) N
}

// Guard is a pending guarded rule; As completes it.
type Guard[N comparable] struct {
	group *Grouping[N]
	when  func(N) bool
}

// Group returns the rule set for the given variant tag, creating it on
// first use.
func (b *TreeBuilder[N]) Group(tag string) *Grouping[N] {
	g, ok := b.groups[tag]
	if !ok {
		g = &Grouping[N]{}
		b.groups[tag] = g
	}
	return g
}

// When starts a guarded rule. Guarded rules are tried in registration
// order before the unconditional rule.
func (g *Grouping[N]) When(pred func(N) bool) *Guard[N] {
	return &Guard[N]{group: g, when: pred}
}

// As registers the unconditional conversion of the variant, replacing any
// previous one.
func (g *Grouping[N]) As(conv func(N) N) *Grouping[N] {
	g.fallback = conv
	return g
}

// As registers conv for nodes satisfying the guard's predicate.
func (c *Guard[N]) As(conv func(N) N) *Grouping[N] {
	c.group.guarded = append(c.group.guarded, guardedRule[N]{when: c.when, as: conv})
	return c.group
}

// parentOf applies the first applicable rule for n's variant.
func (b *TreeBuilder[N]) parentOf(n N) (N, bool) {
	var zero N
	g, ok := b.groups[b.tag(n)]
	if !ok {
		return zero, false
	}
	for _, r := range g.guarded {
		if r.when(n) {
			return r.as(n), true
		}
	}
	if g.fallback != nil {
		return g.fallback(n), true
	}
	return zero, false
}

// Build folds leaves into a tree. The returned graph is rooted at the only
// headless node and its edges point from parents to children. Build fails
// with ErrMalformedTree when there is no headless node or more than one,
// or when the rules synthesize more than maxTreeDepth new parents above one
// leaf.
func (b *TreeBuilder[N]) Build(leaves []N) (*Graph[N], error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("%w: no leaves", ErrMalformedTree)
	}

	x := newExplorer[N]()
	var headless []N
	depth := 0
	upward := func(n N) ([]N, error) {
		if depth++; depth > maxTreeDepth {
			return nil, fmt.Errorf("%w: more than %d levels above a leaf", ErrMalformedTree, maxTreeDepth)
		}
		parent, ok := b.parentOf(n)
		if !ok {
			headless = append(headless, n)
			return nil, nil
		}
		return []N{parent}, nil
	}
	for _, leaf := range leaves {
		depth = 0
		if err := x.explore(leaf, upward); err != nil {
			return nil, err
		}
	}

	switch len(headless) {
	case 0:
		return nil, fmt.Errorf("%w: grouping never reaches a root", ErrMalformedTree)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %d candidate roots %v", ErrMalformedTree, len(headless), headless)
	}

	root := headless[0]
	forward := newGraph(root, x.heads, x.order)
	return BuildE(root, forward.TailsFor)
}

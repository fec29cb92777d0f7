package graph

// Build explores the node space reachable from root and returns it as a
// Graph. successors is called exactly once per distinct node and must
// return that node's heads in order. A node that is already known is never
// expanded again, which makes construction terminate on cyclic spaces.
func Build[N comparable](root N, successors func(N) []N) *Graph[N] {
	g, _ := BuildE(root, func(n N) ([]N, error) {
		return successors(n), nil
	})
	return g
}

// BuildE is Build with a successor function that can fail. The first error
// aborts construction and is returned as is.
func BuildE[N comparable](root N, successors func(N) ([]N, error)) (*Graph[N], error) {
	x := newExplorer[N]()
	if err := x.explore(root, successors); err != nil {
		return nil, err
	}
	return newGraph(root, x.heads, x.order), nil
}

// explorer holds the working state of one construction. It is shared by
// Build and TreeBuilder, which explores from several leaves into the same
// adjacency map.
type explorer[N comparable] struct {
	heads map[N][]N
	order []N
}

func newExplorer[N comparable]() *explorer[N] {
	return &explorer[N]{heads: make(map[N][]N)}
}

// explore expands start and everything reachable from it in depth-first
// preorder, using an explicit stack instead of recursion.
func (x *explorer[N]) explore(start N, successors func(N) ([]N, error)) error {
	stack := []N{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := x.heads[n]; seen {
			continue
		}

		heads, err := successors(n)
		if err != nil {
			return err
		}
		heads = append(make([]N, 0, len(heads)), heads...)
		x.heads[n] = heads
		x.order = append(x.order, n)

		for i := len(heads) - 1; i >= 0; i-- {
			if _, seen := x.heads[heads[i]]; !seen {
				stack = append(stack, heads[i])
			}
		}
	}
	return nil
}

// Package domain contains the core domain models and algorithms for dependency resolution.
package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// AdjacencyList is a directed graph keyed by node name. A successor that has no key of its own is
// a node without outgoing edges.
//
// Every traversal visits nodes in sorted order and successors in sorted order, so all results are
// reproducible for identical input regardless of map iteration or declaration order.
type AdjacencyList map[string][]string

// Edge is a directed edge From -> To.
type Edge struct {
	From string
	To   string
}

// String renders "from -> to".
func (e Edge) String() string {
	return e.From + " -> " + e.To
}

// Nodes returns every node of g (keys and successors) in sorted order.
func (g AdjacencyList) Nodes() []string {
	seen := make(map[string]struct{}, len(g))
	for n, succ := range g {
		seen[n] = struct{}{}
		for _, s := range succ {
			seen[s] = struct{}{}
		}
	}
	nodes := make([]string, 0, len(seen))
	for n := range seen {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	return nodes
}

// successors returns the sorted, de-duplicated successors of n.
func (g AdjacencyList) successors(n string) []string {
	succ := slices.Clone(g[n])
	slices.Sort(succ)
	return slices.Compact(succ)
}

// normalized returns a copy of g with every node keyed and every successor list sorted and
// de-duplicated.
func (g AdjacencyList) normalized() AdjacencyList {
	out := make(AdjacencyList, len(g))
	for _, n := range g.Nodes() {
		out[n] = g.successors(n)
	}
	return out
}

// Edges returns every edge of g, ordered by source then target.
func (g AdjacencyList) Edges() []Edge {
	var edges []Edge
	for _, n := range g.Nodes() {
		for _, s := range g.successors(n) {
			edges = append(edges, Edge{From: n, To: s})
		}
	}
	return edges
}

// Without returns a copy of g with the given edges removed. All nodes are kept.
func (g AdjacencyList) Without(edges []Edge) AdjacencyList {
	out := g.normalized()
	for _, e := range edges {
		out.removeEdge(e)
	}
	return out
}

func (g AdjacencyList) removeEdge(e Edge) {
	g[e.From] = slices.DeleteFunc(g[e.From], func(s string) bool { return s == e.To })
}

func (g AdjacencyList) addEdge(e Edge) {
	succ := g[e.From]
	i, found := slices.BinarySearch(succ, e.To)
	if !found {
		g[e.From] = slices.Insert(succ, i, e.To)
	}
}

// StronglyConnectedComponents decomposes g with Tarjan's algorithm. Components are returned in
// emission order, which places every component after the components it can reach; the members of
// each component are sorted.
func StronglyConnectedComponents(g AdjacencyList) [][]string {
	t := tarjan{
		graph:   g.normalized(),
		index:   make(map[string]int),
		low:     make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, n := range t.graph.Nodes() {
		if _, visited := t.index[n]; !visited {
			t.strongConnect(n)
		}
	}
	return t.components
}

type tarjan struct {
	graph      AdjacencyList
	counter    int
	index      map[string]int
	low        map[string]int
	onStack    map[string]bool
	stack      []string
	components [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.low[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph[v] {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			t.low[v] = min(t.low[v], t.low[w])
		} else if t.onStack[w] {
			t.low[v] = min(t.low[v], t.index[w])
		}
	}

	if t.low[v] != t.index[v] {
		return
	}
	var component []string
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		component = append(component, w)
		if w == v {
			break
		}
	}
	slices.Sort(component)
	t.components = append(t.components, component)
}

// isCyclicComponent reports whether component has two or more nodes or a self-loop.
func isCyclicComponent(g AdjacencyList, component []string) bool {
	if len(component) > 1 {
		return true
	}
	return slices.Contains(g[component[0]], component[0])
}

func cyclicComponents(g AdjacencyList) [][]string {
	var out [][]string
	for _, c := range StronglyConnectedComponents(g) {
		if isCyclicComponent(g, c) {
			out = append(out, c)
		}
	}
	return out
}

// Cyclic reports whether g contains a cycle.
func Cyclic(g AdjacencyList) bool {
	for _, c := range StronglyConnectedComponents(g) {
		if isCyclicComponent(g, c) {
			return true
		}
	}
	return false
}

// FeedbackArcSet returns a locally minimal set of edges whose removal makes g acyclic.
//
// Candidates are collected greedily: while a cyclic component remains, the first of its nodes (in
// sorted order) with an edge inside the component loses the edge to its smallest in-component
// successor. The candidates are then pruned in discovery order: an edge is dropped from the set
// when putting it back, with every remaining candidate still removed, leaves the graph acyclic.
func FeedbackArcSet(g AdjacencyList) []Edge {
	candidates := feedbackArcCandidates(g)
	return pruneFeedbackArcs(g, candidates)
}

func feedbackArcCandidates(g AdjacencyList) []Edge {
	work := g.normalized()
	var candidates []Edge
	for {
		components := cyclicComponents(work)
		if len(components) == 0 {
			return candidates
		}
		for _, component := range components {
			if e, ok := firstInnerEdge(work, component); ok {
				work.removeEdge(e)
				candidates = append(candidates, e)
			}
		}
	}
}

func firstInnerEdge(g AdjacencyList, component []string) (Edge, bool) {
	for _, v := range component {
		for _, w := range g[v] {
			if _, inside := slices.BinarySearch(component, w); inside {
				return Edge{From: v, To: w}, true
			}
		}
	}
	return Edge{}, false
}

func pruneFeedbackArcs(g AdjacencyList, candidates []Edge) []Edge {
	reduced := g.Without(candidates)
	var kept []Edge
	for _, e := range candidates {
		reduced.addEdge(e)
		if Cyclic(reduced) {
			reduced.removeEdge(e)
			kept = append(kept, e)
		}
	}
	return kept
}

// TSort orders the nodes of g so that every node comes after its successors, breaking ties by
// name. It fails with ErrCycleDetected when g is cyclic.
func TSort(g AdjacencyList) ([]string, error) {
	norm := g.normalized()
	components := StronglyConnectedComponents(norm)
	order := make([]string, 0, len(components))
	for _, c := range components {
		if isCyclicComponent(norm, c) {
			return nil, zerr.With(zerr.Wrap(ErrCycleDetected, "graph cannot be ordered"),
				"cycle", cyclePath(norm, c))
		}
		order = append(order, c[0])
	}
	return order, nil
}

// TSortCyclic orders g after removing its feedback arc set. It accepts any graph.
func TSortCyclic(g AdjacencyList) []string {
	reduced := g.Without(FeedbackArcSet(g))
	var order []string
	for _, c := range StronglyConnectedComponents(reduced) {
		order = append(order, c...)
	}
	return order
}

// cyclePath returns the shortest cycle through the smallest node of a cyclic component, rendered
// as "a -> b -> a".
func cyclePath(g AdjacencyList, component []string) string {
	start := component[0]
	parent := map[string]string{}
	queue := []string{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range g[v] {
			if _, inside := slices.BinarySearch(component, w); !inside {
				continue
			}
			if w == start {
				path := []string{start}
				for n := v; n != start; n = parent[n] {
					path = append(path, n)
				}
				path = append(path, start)
				slices.Reverse(path[1 : len(path)-1])
				return strings.Join(path, " -> ")
			}
			if _, seen := parent[w]; !seen {
				parent[w] = v
				queue = append(queue, w)
			}
		}
	}
	return strings.Join(component, " -> ")
}

package domain_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/zerr"
)

const propertyNodes = 6

// graphFromCodes decodes each code into the edge n<code/6> -> n<code%6>.
func graphFromCodes(codes []int) domain.AdjacencyList {
	g := domain.AdjacencyList{}
	for i := range propertyNodes {
		g[fmt.Sprintf("n%d", i)] = nil
	}
	for _, c := range codes {
		from := fmt.Sprintf("n%d", c/propertyNodes)
		to := fmt.Sprintf("n%d", c%propertyNodes)
		g[from] = append(g[from], to)
	}
	return g
}

func edgeCodes() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, propertyNodes*propertyNodes-1))
}

// bruteForceCyclic reports whether any node reaches itself.
func bruteForceCyclic(g domain.AdjacencyList) bool {
	for _, start := range g.Nodes() {
		seen := map[string]bool{}
		stack := slices.Clone(g[start])
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if n == start {
				return true
			}
			if seen[n] {
				continue
			}
			seen[n] = true
			stack = append(stack, g[n]...)
		}
	}
	return false
}

func TestCyclic(t *testing.T) {
	tests := []struct {
		name  string
		graph domain.AdjacencyList
		want  bool
	}{
		{"empty", domain.AdjacencyList{}, false},
		{"chain", domain.AdjacencyList{"a": {"b"}, "b": {"c"}}, false},
		{"diamond", domain.AdjacencyList{"a": {"b", "c"}, "b": {"d"}, "c": {"d"}}, false},
		{"self loop", domain.AdjacencyList{"a": {"a"}}, true},
		{"two cycle", domain.AdjacencyList{"a": {"b"}, "b": {"a"}}, true},
		{"cycle through unkeyed node", domain.AdjacencyList{"a": {"b"}, "c": {"a"}}, false},
		{"long cycle", domain.AdjacencyList{"a": {"b"}, "b": {"c"}, "c": {"d"}, "d": {"b"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Cyclic(tt.graph))
		})
	}
}

func TestStronglyConnectedComponents(t *testing.T) {
	g := domain.AdjacencyList{
		"a": {"b"},
		"b": {"c", "a"},
		"c": {"d"},
		"d": {"c"},
		"e": nil,
	}

	got := domain.StronglyConnectedComponents(g)

	assert.Equal(t, [][]string{{"c", "d"}, {"a", "b"}, {"e"}}, got)
}

func TestFeedbackArcSet(t *testing.T) {
	t.Run("acyclic graph needs no edges", func(t *testing.T) {
		g := domain.AdjacencyList{"a": {"b", "c"}, "b": {"c"}}
		assert.Empty(t, domain.FeedbackArcSet(g))
	})

	t.Run("self loop", func(t *testing.T) {
		g := domain.AdjacencyList{"a": {"a", "b"}}
		assert.Equal(t, []domain.Edge{{From: "a", To: "a"}}, domain.FeedbackArcSet(g))
	})

	t.Run("two cycle removes edge of smallest node", func(t *testing.T) {
		g := domain.AdjacencyList{"b": {"a"}, "a": {"b"}}
		assert.Equal(t, []domain.Edge{{From: "a", To: "b"}}, domain.FeedbackArcSet(g))
	})

	t.Run("redundant candidate is pruned", func(t *testing.T) {
		// a->b is removed first, then b->c. With b->c gone, a->b no longer closes a cycle.
		g := domain.AdjacencyList{
			"a": {"b"},
			"b": {"c"},
			"c": {"a", "b"},
		}
		fas := domain.FeedbackArcSet(g)
		assert.Equal(t, []domain.Edge{{From: "b", To: "c"}}, fas)
		assert.False(t, domain.Cyclic(g.Without(fas)))
	})

	t.Run("all candidates kept when each is needed", func(t *testing.T) {
		g := domain.AdjacencyList{
			"a": {"b", "c"},
			"b": {"a"},
			"c": {"a"},
		}
		assert.Equal(t, []domain.Edge{{From: "a", To: "b"}, {From: "a", To: "c"}}, domain.FeedbackArcSet(g))
	})

	t.Run("deterministic across declaration order", func(t *testing.T) {
		g1 := domain.AdjacencyList{"x": {"y", "z"}, "y": {"z", "x"}, "z": {"x"}}
		g2 := domain.AdjacencyList{"z": {"x"}, "y": {"x", "z"}, "x": {"z", "y"}}
		assert.Equal(t, domain.FeedbackArcSet(g1), domain.FeedbackArcSet(g2))
	})
}

func TestTSort(t *testing.T) {
	t.Run("dependencies first, ties by name", func(t *testing.T) {
		g := domain.AdjacencyList{
			"jam":    {"butter", "bread"},
			"toast":  {"bread"},
			"bread":  nil,
			"butter": nil,
		}
		order, err := domain.TSort(g)
		require.NoError(t, err)
		assert.Equal(t, []string{"bread", "butter", "jam", "toast"}, order)
	})

	t.Run("cyclic input fails with cycle metadata", func(t *testing.T) {
		g := domain.AdjacencyList{"a": {"b"}, "b": {"c"}, "c": {"a"}}
		_, err := domain.TSort(g)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrCycleDetected))

		var zErr *zerr.Error
		require.ErrorAs(t, err, &zErr)
		assert.Equal(t, "a -> b -> c -> a", zErr.Metadata()["cycle"])
	})
}

func TestTSortCyclic(t *testing.T) {
	g := domain.AdjacencyList{"a": {"b"}, "b": {"a", "c"}, "c": nil}
	assert.Equal(t, []string{"a", "c", "b"}, domain.TSortCyclic(g))
}

func TestGraphProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Cyclic agrees with brute force", prop.ForAll(
		func(codes []int) bool {
			g := graphFromCodes(codes)
			return domain.Cyclic(g) == bruteForceCyclic(g)
		},
		edgeCodes(),
	))

	properties.Property("removing the feedback arc set leaves an acyclic graph", prop.ForAll(
		func(codes []int) bool {
			g := graphFromCodes(codes)
			return !domain.Cyclic(g.Without(domain.FeedbackArcSet(g)))
		},
		edgeCodes(),
	))

	properties.Property("every feedback arc is needed", prop.ForAll(
		func(codes []int) bool {
			g := graphFromCodes(codes)
			fas := domain.FeedbackArcSet(g)
			for i := range fas {
				rest := slices.Delete(slices.Clone(fas), i, i+1)
				if !domain.Cyclic(g.Without(rest)) {
					return false
				}
			}
			return true
		},
		edgeCodes(),
	))

	properties.Property("TSortCyclic is an ordered permutation", prop.ForAll(
		func(codes []int) bool {
			g := graphFromCodes(codes)
			order := domain.TSortCyclic(g)
			if !slices.Equal(slices.Sorted(slices.Values(order)), g.Nodes()) {
				return false
			}
			pos := make(map[string]int, len(order))
			for i, n := range order {
				pos[n] = i
			}
			for _, e := range g.Without(domain.FeedbackArcSet(g)).Edges() {
				if pos[e.To] > pos[e.From] {
					return false
				}
			}
			return true
		},
		edgeCodes(),
	))

	properties.TestingRun(t)
}

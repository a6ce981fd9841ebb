package graph_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/internal/graph"
	"github.com/scrypster/mnemora/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(t *testing.T) *graph.Graph {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "mnemora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	c := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return graph.New(conn, c)
}

func addEdge(t *testing.T, g *graph.Graph, from, to string, relType types.RelationshipType) {
	t.Helper()
	require.NoError(t, g.AddEdge(&types.RelationshipEdge{FromID: from, ToID: to, Type: relType, Weight: 1.0}))
}

func TestPageRank_Triangle(t *testing.T) {
	g := newGraph(t)
	addEdge(t, g, "A", "B", types.RelRelatedTo)
	addEdge(t, g, "B", "C", types.RelRelatedTo)
	addEdge(t, g, "C", "A", types.RelRelatedTo)

	results, err := g.ComputePageRank(graph.DefaultPageRankConfig())
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.InDelta(t, 1.0/3.0, r.Score, 1e-4)
	}
}

func TestPageRank_FourCycle(t *testing.T) {
	g := newGraph(t)
	addEdge(t, g, "A", "B", types.RelRelatedTo)
	addEdge(t, g, "B", "C", types.RelRelatedTo)
	addEdge(t, g, "C", "D", types.RelRelatedTo)
	addEdge(t, g, "D", "A", types.RelRelatedTo)

	results, err := g.ComputePageRank(graph.DefaultPageRankConfig())
	require.NoError(t, err)
	for _, r := range results {
		assert.InDelta(t, 0.25, r.Score, 1e-4)
	}
}

func TestPageRank_TwoNodeCycle(t *testing.T) {
	g := newGraph(t)
	addEdge(t, g, "A", "B", types.RelRelatedTo)
	addEdge(t, g, "B", "A", types.RelRelatedTo)

	results, err := g.ComputePageRank(graph.DefaultPageRankConfig())
	require.NoError(t, err)
	for _, r := range results {
		assert.InDelta(t, 0.5, r.Score, 1e-4)
	}
}

func TestPageRank_Star(t *testing.T) {
	g := newGraph(t)
	addEdge(t, g, "leaf1", "hub", types.RelRelatedTo)
	addEdge(t, g, "leaf2", "hub", types.RelRelatedTo)
	addEdge(t, g, "leaf3", "hub", types.RelRelatedTo)
	addEdge(t, g, "leaf4", "hub", types.RelRelatedTo)

	results, err := g.ComputePageRank(graph.DefaultPageRankConfig())
	require.NoError(t, err)

	var hubScore float64
	var leafScores []float64
	for _, r := range results {
		if r.MemoryID == "hub" {
			hubScore = r.Score
		} else {
			leafScores = append(leafScores, r.Score)
		}
	}
	for _, l := range leafScores {
		assert.Greater(t, hubScore, l)
		assert.InDelta(t, leafScores[0], l, 1e-9)
	}
}

func TestPageRank_ScoresSumToOne(t *testing.T) {
	g := newGraph(t)
	addEdge(t, g, "A", "B", types.RelRelatedTo)
	addEdge(t, g, "B", "C", types.RelRelatedTo)

	results, err := g.ComputePageRank(graph.DefaultPageRankConfig())
	require.NoError(t, err)

	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPageRank_SingleSelfLoopScoresNodeApproxOne(t *testing.T) {
	g := newGraph(t)
	addEdge(t, g, "A", "A", types.RelRelatedTo)

	results, err := g.ComputePageRank(graph.DefaultPageRankConfig())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].MemoryID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
}

func TestFindCausalChain_ShortestPath(t *testing.T) {
	g := newGraph(t)
	addEdge(t, g, "A", "B", types.RelCausal)
	addEdge(t, g, "B", "C", types.RelCausal)
	addEdge(t, g, "A", "C", types.RelCausal)

	chain, err := g.FindCausalChain("A", "C", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, chain)
}

func TestDetectContradictions(t *testing.T) {
	g := newGraph(t)
	addEdge(t, g, "A", "B", types.RelContradicts)

	edges, err := g.DetectContradictions("B")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, types.RelContradicts, edges[0].Type)
}

func TestGetMemoryGraph_BFSBounded(t *testing.T) {
	g := newGraph(t)
	addEdge(t, g, "A", "B", types.RelRelatedTo)
	addEdge(t, g, "B", "C", types.RelRelatedTo)
	addEdge(t, g, "C", "D", types.RelRelatedTo)

	view, err := g.GetMemoryGraph("A", 2, "")
	require.NoError(t, err)
	assert.Contains(t, view.Nodes, "C")
	assert.NotContains(t, view.Nodes, "D")
}

func TestSuggestEdges_SharedTokens(t *testing.T) {
	ids := []string{"m1", "m2"}
	contents := []string{
		"the deployment pipeline broke yesterday",
		"fixed the deployment pipeline this morning",
	}
	suggestions := graph.SuggestEdges(ids, contents)
	require.Len(t, suggestions, 1)
	assert.True(t, suggestions[0].AutoDetected)
	assert.Equal(t, types.RelRelatedTo, suggestions[0].Type)
}

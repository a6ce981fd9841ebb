package graph

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/scrypster/mnemora/pkg/mnemerr"
)

// PageRankConfig parameterizes the PageRank computation (spec §4.E).
type PageRankConfig struct {
	Damping       float64
	MaxIterations int
	Tolerance     float64
}

// DefaultPageRankConfig returns the spec's default damping/iteration/tolerance.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{Damping: 0.85, MaxIterations: 20, Tolerance: 1e-6}
}

// PageRankResult is one node's computed score plus its degree counts.
type PageRankResult struct {
	MemoryID  string
	Score     float64
	InDegree  int
	OutDegree int
}

// ComputePageRank runs PageRank over the full edge set: self-loops are
// dropped, duplicate (from,to) pairs are merged into a single edge, and
// weights are ignored.
func (g *Graph) ComputePageRank(cfg PageRankConfig) ([]PageRankResult, error) {
	edges, err := g.allEdges()
	if err != nil {
		return nil, err
	}

	nodeSet := map[string]bool{}
	seenEdge := map[string]bool{}
	outNeighbors := map[string]map[string]bool{}
	inDegree := map[string]int{}

	// Every edge endpoint is a node, including a self-loop's lone endpoint
	// (spec §8's boundary case: a single self-loop (A,A) still scores A).
	// Self-loops are only excluded from the link structure used to compute
	// scores, not from node registration.
	for _, e := range edges {
		nodeSet[e.FromID] = true
		nodeSet[e.ToID] = true
	}

	for _, e := range edges {
		if e.FromID == e.ToID {
			continue // self-loops dropped from link computation
		}
		key := e.FromID + "->" + e.ToID
		if seenEdge[key] {
			continue // duplicate merged
		}
		seenEdge[key] = true

		if outNeighbors[e.FromID] == nil {
			outNeighbors[e.FromID] = map[string]bool{}
		}
		outNeighbors[e.FromID][e.ToID] = true
		inDegree[e.ToID]++
	}

	nodes := make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	n := len(nodes)
	if n == 0 {
		return nil, nil
	}

	scores := make(map[string]float64, n)
	for _, id := range nodes {
		scores[id] = 1.0 / float64(n)
	}

	d := cfg.Damping
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		var danglingMass float64
		for _, id := range nodes {
			if len(outNeighbors[id]) == 0 {
				danglingMass += scores[id]
			}
		}

		next := make(map[string]float64, n)
		for _, v := range nodes {
			next[v] = (1 - d) / float64(n)
		}
		for _, u := range nodes {
			out := outNeighbors[u]
			if len(out) == 0 {
				continue
			}
			share := d * scores[u] / float64(len(out))
			for v := range out {
				next[v] += share
			}
		}
		for _, v := range nodes {
			next[v] += d * danglingMass / float64(n)
		}

		var maxDelta float64
		for _, v := range nodes {
			delta := math.Abs(next[v] - scores[v])
			if delta > maxDelta {
				maxDelta = delta
			}
		}
		scores = next
		if maxDelta < cfg.Tolerance {
			break
		}
	}

	var sum float64
	for _, v := range nodes {
		sum += scores[v]
	}
	if sum > 0 {
		for _, v := range nodes {
			scores[v] /= sum
		}
	}

	out := make([]PageRankResult, 0, n)
	for _, id := range nodes {
		out = append(out, PageRankResult{
			MemoryID:  id,
			Score:     scores[id],
			InDegree:  inDegree[id],
			OutDegree: len(outNeighbors[id]),
		})
	}
	return out, nil
}

// PersistPageRank writes results to memory_pagerank, replacing any prior
// scores for the given memory ids.
func (g *Graph) PersistPageRank(results []PageRankResult) error {
	now := g.clock.Now().UTC().Format(time.RFC3339)
	query := g.db.Bind(`
		INSERT INTO memory_pagerank (memory_id, score, in_degree, out_degree, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			score = excluded.score, in_degree = excluded.in_degree,
			out_degree = excluded.out_degree, computed_at = excluded.computed_at
	`)
	for _, r := range results {
		if _, err := g.db.Exec(query, r.MemoryID, r.Score, r.InDegree, r.OutDegree, now); err != nil {
			return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
	}
	return nil
}

// PageRankOf returns the last persisted score for id, or 0 if none exists.
func (g *Graph) PageRankOf(id string) (float64, error) {
	query := g.db.Bind("SELECT score FROM memory_pagerank WHERE memory_id = ?")
	var score float64
	if err := g.db.QueryRow(query, id).Scan(&score); err != nil {
		return 0, nil
	}
	return score, nil
}

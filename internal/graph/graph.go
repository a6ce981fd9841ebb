// Package graph implements the Relationship Graph (spec §4.E): typed
// directed edges between memories with optional temporal validity, bounded
// traversals, and PageRank. Traversal bounds-checking is grounded on
// _examples/scrypster-memento/internal/engine/graph_bounds_checker.go;
// contradiction detection is grounded on
// internal/engine/contradiction_detector.go, simplified from the teacher's
// entity-based relationship model to this module's direct memory-to-memory
// typed edges.
package graph

import (
	"container/list"
	"fmt"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

// Graph is the relationship graph, backed by the memory_relationships table.
type Graph struct {
	db    *db.DB
	clock clock.Clock
}

// New creates a Graph.
func New(conn *db.DB, c clock.Clock) *Graph {
	return &Graph{db: conn, clock: c}
}

// AddEdge upserts a typed edge keyed by (from, to, type). Self-loops are
// permitted here; PageRank drops them at computation time per spec §4.E.
func (g *Graph) AddEdge(e *types.RelationshipEdge) error {
	if !types.IsValidRelationshipType(e.Type) {
		return fmt.Errorf("%w: %q", mnemerr.ErrInvalidInput, e.Type)
	}
	id := edgeID(e.FromID, e.ToID, e.Type)
	now := g.clock.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}

	query := g.db.Bind(`
		INSERT INTO memory_relationships (id, from_id, to_id, type, weight, valid_from, valid_to, auto_detected, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, type) DO UPDATE SET
			weight = excluded.weight, valid_from = excluded.valid_from,
			valid_to = excluded.valid_to, auto_detected = excluded.auto_detected
	`)
	validFrom := formatOptional(e.ValidFrom, now)
	validTo := formatPointer(e.ValidTo)
	autoDetected := 0
	if e.AutoDetected {
		autoDetected = 1
	}
	_, err := g.db.Exec(query, id, e.FromID, e.ToID, string(e.Type), e.Weight, validFrom, validTo, autoDetected, e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}

// GetRelated returns edges touching id, optionally filtered by type, in the
// requested direction.
func (g *Graph) GetRelated(id string, relType types.RelationshipType, dir types.Direction) ([]*types.RelationshipEdge, error) {
	var where string
	switch dir {
	case types.DirOut:
		where = "from_id = ?"
	case types.DirIn:
		where = "to_id = ?"
	default:
		where = "(from_id = ? OR to_id = ?)"
	}

	args := []interface{}{id}
	if dir == types.DirBoth {
		args = append(args, id)
	}
	if relType != "" {
		where += " AND type = ?"
		args = append(args, string(relType))
	}

	query := g.db.Bind(fmt.Sprintf(`
		SELECT from_id, to_id, type, weight, valid_from, valid_to, auto_detected, created_at
		FROM memory_relationships WHERE %s`, where))
	rows, err := g.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	defer rows.Close()

	var out []*types.RelationshipEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// allEdges loads the full edge set, used by PageRank and BFS traversals.
func (g *Graph) allEdges() ([]*types.RelationshipEdge, error) {
	rows, err := g.db.Query(`
		SELECT from_id, to_id, type, weight, valid_from, valid_to, auto_detected, created_at
		FROM memory_relationships`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	defer rows.Close()

	var out []*types.RelationshipEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// IncomingCounts returns, for every memory id that is the target of at
// least one edge, the number of incoming edges it has (every stored
// (from_id, to_id, type) edge counts once, so a source linked by two
// relationship types counts twice). Used by the Reference Counter's
// BulkUpdateFromRelationships to recompute the "relationship" ref_type
// count from the current edge set (spec §4.G).
func (g *Graph) IncomingCounts() (map[string]int, error) {
	edges, err := g.allEdges()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, e := range edges {
		counts[e.ToID]++
	}
	return counts, nil
}

// GraphView is the node/edge set returned by GetMemoryGraph.
type GraphView struct {
	Nodes []string
	Edges []*types.RelationshipEdge
}

// GetMemoryGraph performs a bounded BFS from id out to maxDepth hops,
// optionally restricted to typeFilter, deduplicating edges and walking
// whichever endpoint is not the current node.
func (g *Graph) GetMemoryGraph(id string, maxDepth int, typeFilter types.RelationshipType) (*GraphView, error) {
	edges, err := g.allEdges()
	if err != nil {
		return nil, err
	}

	nodesSeen := map[string]bool{id: true}
	edgesSeen := map[string]bool{}
	var resultEdges []*types.RelationshipEdge

	frontier := []string{id}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			for _, e := range edges {
				if typeFilter != "" && e.Type != typeFilter {
					continue
				}
				var other string
				switch current {
				case e.FromID:
					other = e.ToID
				case e.ToID:
					other = e.FromID
				default:
					continue
				}
				key := edgeID(e.FromID, e.ToID, e.Type)
				if !edgesSeen[key] {
					edgesSeen[key] = true
					resultEdges = append(resultEdges, e)
				}
				if !nodesSeen[other] {
					nodesSeen[other] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	nodes := make([]string, 0, len(nodesSeen))
	for n := range nodesSeen {
		nodes = append(nodes, n)
	}
	return &GraphView{Nodes: nodes, Edges: resultEdges}, nil
}

// FindCausalChain performs BFS over "causal" edges in the outgoing
// direction only, returning the shortest node sequence from -> to, or nil
// if none exists within maxDepth hops.
func (g *Graph) FindCausalChain(from, to string, maxDepth int) ([]string, error) {
	edges, err := g.allEdges()
	if err != nil {
		return nil, err
	}

	adjacency := map[string][]string{}
	for _, e := range edges {
		if e.Type == types.RelCausal {
			adjacency[e.FromID] = append(adjacency[e.FromID], e.ToID)
		}
	}

	type frame struct {
		node string
		path []string
	}
	visited := map[string]bool{from: true}
	queue := list.New()
	queue.PushBack(frame{node: from, path: []string{from}})

	for queue.Len() > 0 {
		f := queue.Remove(queue.Front()).(frame)
		if f.node == to {
			return f.path, nil
		}
		if len(f.path)-1 >= maxDepth {
			continue
		}
		for _, next := range adjacency[f.node] {
			if visited[next] {
				continue
			}
			visited[next] = true
			path := append(append([]string(nil), f.path...), next)
			queue.PushBack(frame{node: next, path: path})
		}
	}
	return nil, nil
}

// DetectContradictions returns edges of type "contradicts" touching id in
// either direction.
func (g *Graph) DetectContradictions(id string) ([]*types.RelationshipEdge, error) {
	return g.GetRelated(id, types.RelContradicts, types.DirBoth)
}

// EdgesAt returns only edges touching id that are valid at instant t
// (valid_from <= t <= valid_to, with an absent valid_to treated as +inf).
func (g *Graph) EdgesAt(id string, t time.Time) ([]*types.RelationshipEdge, error) {
	all, err := g.GetRelated(id, "", types.DirBoth)
	if err != nil {
		return nil, err
	}
	var out []*types.RelationshipEdge
	for _, e := range all {
		if e.ActiveAt(t) {
			out = append(out, e)
		}
	}
	return out, nil
}

func edgeID(from, to string, t types.RelationshipType) string {
	return from + "|" + to + "|" + string(t)
}

func formatOptional(t *time.Time, fallback time.Time) string {
	if t == nil {
		return fallback.UTC().Format(time.RFC3339)
	}
	return t.UTC().Format(time.RFC3339)
}

func formatPointer(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEdge(rows rowScanner) (*types.RelationshipEdge, error) {
	var e types.RelationshipEdge
	var typ string
	var validFrom string
	var validTo *string
	var autoDetected int
	var createdAt string

	if err := rows.Scan(&e.FromID, &e.ToID, &typ, &e.Weight, &validFrom, &validTo, &autoDetected, &createdAt); err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	e.Type = types.RelationshipType(typ)
	if vf, err := time.Parse(time.RFC3339, validFrom); err == nil {
		e.ValidFrom = &vf
	}
	if validTo != nil {
		if vt, err := time.Parse(time.RFC3339, *validTo); err == nil {
			e.ValidTo = &vt
		}
	}
	e.AutoDetected = autoDetected != 0
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

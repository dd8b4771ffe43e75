package entity

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const graphShardPow = 5

// Graph is an in-process co-report adjacency: two entities are linked when
// they appeared in the same report. Edges remember when they were last seen.
// Lock-striped by entity id.
type Graph struct {
	shards []graphShard
	mask   uint32
}

type graphShard struct {
	mu    sync.RWMutex
	edges map[uuid.UUID]map[uuid.UUID]time.Time
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	n := 1 << graphShardPow
	g := &Graph{shards: make([]graphShard, n), mask: uint32(n - 1)}
	for i := range g.shards {
		g.shards[i].edges = make(map[uuid.UUID]map[uuid.UUID]time.Time)
	}
	return g
}

func (g *Graph) shardFor(id uuid.UUID) *graphShard {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return &g.shards[h.Sum32()&g.mask]
}

// Link connects every pair of ids. Self-edges and nil ids are ignored.
func (g *Graph) Link(ids []uuid.UUID, at time.Time) {
	for _, a := range ids {
		if a == uuid.Nil {
			continue
		}
		sh := g.shardFor(a)
		sh.mu.Lock()
		for _, b := range ids {
			if b == a || b == uuid.Nil {
				continue
			}
			adj := sh.edges[a]
			if adj == nil {
				adj = make(map[uuid.UUID]time.Time)
				sh.edges[a] = adj
			}
			if at.After(adj[b]) {
				adj[b] = at
			}
		}
		sh.mu.Unlock()
	}
}

// Neighbors returns the ids co-reported with id
func (g *Graph) Neighbors(id uuid.UUID) []uuid.UUID {
	sh := g.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	adj := sh.edges[id]
	out := make([]uuid.UUID, 0, len(adj))
	for n := range adj {
		out = append(out, n)
	}
	return out
}

// Degree returns the number of distinct co-reported entities
func (g *Graph) Degree(id uuid.UUID) int {
	sh := g.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.edges[id])
}

// Len returns the number of entities with at least one edge
func (g *Graph) Len() int {
	n := 0
	for i := range g.shards {
		sh := &g.shards[i]
		sh.mu.RLock()
		n += len(sh.edges)
		sh.mu.RUnlock()
	}
	return n
}

// Purge drops edges last seen before cutoff and returns how many were removed
func (g *Graph) Purge(cutoff time.Time) int {
	removed := 0
	for i := range g.shards {
		sh := &g.shards[i]
		sh.mu.Lock()
		for a, adj := range sh.edges {
			for b, seen := range adj {
				if seen.Before(cutoff) {
					delete(adj, b)
					removed++
				}
			}
			if len(adj) == 0 {
				delete(sh.edges, a)
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

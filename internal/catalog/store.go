package catalog

import (
	"strings"
	"sync"
)

// maxLineageDepth bounds graph traversal regardless of the requested depth.
const maxLineageDepth = 5

// Store holds the seeded catalog plus lineage edges registered at runtime.
type Store struct {
	datasets []Dataset

	mu    sync.RWMutex
	edges []Edge
}

// NewStore builds a store with the seed datasets and lineage.
func NewStore() *Store {
	return &Store{
		datasets: seedDatasets(),
		edges:    seedEdges(),
	}
}

// ByURN finds a dataset by exact URN.
func (s *Store) ByURN(urn string) (Dataset, bool) {
	for _, d := range s.datasets {
		if d.URN == urn {
			return d, true
		}
	}
	return Dataset{}, false
}

// ByName finds a dataset by bare or schema-qualified name, case insensitively.
func (s *Store) ByName(name string) (Dataset, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, d := range s.datasets {
		if strings.ToLower(d.Name) == n || strings.ToLower(d.FullName()) == n {
			return d, true
		}
	}
	return Dataset{}, false
}

// Resolve accepts a URN or a table name and returns the matching dataset.
func (s *Store) Resolve(ref string) (Dataset, bool) {
	if strings.HasPrefix(ref, "urn:") {
		return s.ByURN(ref)
	}
	return s.ByName(ref)
}

// Names returns all schema-qualified dataset names in seed order.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.datasets))
	for _, d := range s.datasets {
		out = append(out, d.FullName())
	}
	return out
}

// Search returns datasets matching query in name, description, tags or
// columns, in seed order, capped at limit.
func (s *Store) Search(query string, limit int) []Dataset {
	if limit <= 0 {
		limit = 10
	}
	var out []Dataset
	for _, d := range s.datasets {
		if len(d.matches(query)) > 0 {
			out = append(out, d)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// Edges returns seed plus registered lineage edges.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Edge(nil), s.edges...)
}

// AddEdge registers a lineage edge unless the same source/target pair already
// exists. Returns whether the edge was added.
func (s *Store) AddEdge(sourceURN, targetURN, edgeType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.edges {
		if e.SourceURN == sourceURN && e.TargetURN == targetURN {
			return false
		}
	}
	s.edges = append(s.edges, Edge{
		SourceURN: sourceURN,
		TargetURN: targetURN,
		Type:      edgeType,
		CreatedAt: nowRFC3339(),
	})
	return true
}

// Node is one dataset reached during lineage traversal.
type Node struct {
	URN      string `json:"urn"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Type     string `json:"type"`
	Distance int    `json:"distance"`
}

// Upstream walks edges pointing into urn, breadth-limited by depth.
func (s *Store) Upstream(urn string, depth int) []Node {
	return s.traverse(urn, depth, func(e Edge, cur string) (string, bool) {
		if e.TargetURN == cur {
			return e.SourceURN, true
		}
		return "", false
	})
}

// Downstream walks edges leaving urn, breadth-limited by depth.
func (s *Store) Downstream(urn string, depth int) []Node {
	return s.traverse(urn, depth, func(e Edge, cur string) (string, bool) {
		if e.SourceURN == cur {
			return e.TargetURN, true
		}
		return "", false
	})
}

func (s *Store) traverse(urn string, depth int, next func(Edge, string) (string, bool)) []Node {
	if depth < 1 {
		depth = 1
	}
	if depth > maxLineageDepth {
		depth = maxLineageDepth
	}
	edges := s.Edges()
	visited := map[string]bool{}
	result := []Node{}

	var walk func(cur string, dist int)
	walk = func(cur string, dist int) {
		if dist > depth || visited[cur] {
			return
		}
		visited[cur] = true
		for _, e := range edges {
			neighbor, ok := next(e, cur)
			if !ok || visited[neighbor] {
				continue
			}
			ds, found := s.ByURN(neighbor)
			if !found {
				continue
			}
			result = append(result, Node{
				URN:      ds.URN,
				Name:     ds.FullName(),
				Platform: ds.Platform,
				Type:     e.Type,
				Distance: dist,
			})
			walk(neighbor, dist+1)
		}
	}
	walk(urn, 1)
	return result
}

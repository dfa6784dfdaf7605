// Package mock provides an in-memory test double for [graphstore.Store].
//
// Unlike the field-configurable stubs elsewhere in this module, Store here
// is a small but functionally real implementation: higher layers (the
// declarative memory pipeline, the episodic manager) exercise search and
// filtering behavior in tests, not just error injection, so the fake
// actually indexes and scores nodes rather than returning canned results.
//
// Typical usage:
//
//	store := mock.NewStore()
//	store.AddNodes(ctx, []graphstore.Node{{ID: "n1", Labels: []string{"episode"}}})
//
//	if got := store.CallCount("AddNodes"); got != 1 {
//	    t.Errorf("expected 1 AddNodes call, got %d", got)
//	}
package mock

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vaultmind/vaultmind/pkg/graphstore"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is an in-memory, concurrency-safe [graphstore.Store].
type Store struct {
	mu sync.Mutex

	calls []Call
	nodes map[string]graphstore.Node
	edges map[string]graphstore.Edge

	// CloseErr is returned by [Store.Close] when non-nil.
	CloseErr error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		nodes: make(map[string]graphstore.Node),
		edges: make(map[string]graphstore.Edge),
	}
}

// Calls returns a copy of all recorded method invocations.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls and all stored data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.nodes = make(map[string]graphstore.Node)
	s.edges = make(map[string]graphstore.Edge)
}

// AddNodes implements [graphstore.Store].
func (s *Store) AddNodes(_ context.Context, nodes []graphstore.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "AddNodes", Args: []any{nodes}})
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	return nil
}

// AddEdges implements [graphstore.Store]. Endpoints must already be present,
// matching the foreign-key behavior of the postgres backend.
func (s *Store) AddEdges(_ context.Context, edges []graphstore.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "AddEdges", Args: []any{edges}})
	for _, e := range edges {
		if _, ok := s.nodes[e.SourceID]; !ok {
			return &missingEndpointError{nodeID: e.SourceID}
		}
		if _, ok := s.nodes[e.TargetID]; !ok {
			return &missingEndpointError{nodeID: e.TargetID}
		}
		s.edges[e.ID] = e
	}
	return nil
}

type missingEndpointError struct{ nodeID string }

func (e *missingEndpointError) Error() string {
	return "graphstore/mock: edge endpoint " + e.nodeID + " does not exist"
}

// DeleteNodes implements [graphstore.Store].
func (s *Store) DeleteNodes(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "DeleteNodes", Args: []any{ids}})
	victims := make(map[string]bool, len(ids))
	for _, id := range ids {
		victims[id] = true
		delete(s.nodes, id)
	}
	for id, e := range s.edges {
		if victims[e.SourceID] || victims[e.TargetID] {
			delete(s.edges, id)
		}
	}
	return nil
}

// ClearData implements [graphstore.Store].
func (s *Store) ClearData(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "ClearData"})
	s.nodes = make(map[string]graphstore.Node)
	s.edges = make(map[string]graphstore.Edge)
	return nil
}

// Close implements [graphstore.Store].
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Close"})
	return s.CloseErr
}

// SearchMatchingNodes implements [graphstore.Store].
func (s *Store) SearchMatchingNodes(_ context.Context, requiredLabels []string, filters graphstore.PropertyFilter, includeMissing bool, limit int) ([]graphstore.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "SearchMatchingNodes", Args: []any{requiredLabels, filters, includeMissing, limit}})

	var out []graphstore.Node
	for _, n := range s.sortedNodes() {
		if !hasLabels(n, requiredLabels) {
			continue
		}
		if !matchesFilter(n, filters, includeMissing) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return nonNilNodes(out), nil
}

// SearchSimilarNodes implements [graphstore.Store] via an exact in-memory
// scan, scored the same way the postgres backend's fallback path scores.
func (s *Store) SearchSimilarNodes(_ context.Context, p graphstore.SimilarSearch) ([]graphstore.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "SearchSimilarNodes", Args: []any{p}})

	limit := p.Limit
	if limit <= 0 {
		limit = graphstore.DefaultANNLimit
	}

	type scored struct {
		node  graphstore.Node
		score float64
	}
	var results []scored
	for _, n := range s.sortedNodes() {
		if !hasLabels(n, p.RequiredLabels) {
			continue
		}
		if !matchesFilter(n, p.RequiredProperties, p.IncludeMissingProperties) {
			continue
		}
		raw, ok := n.Properties[p.EmbeddingProperty]
		if !ok {
			continue
		}
		vec, ok := asFloat32Slice(raw)
		if !ok || len(vec) != len(p.QueryVector) {
			continue
		}
		results = append(results, scored{node: n, score: similarity(p.Metric, p.QueryVector, vec)})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]graphstore.Node, len(results))
	for i, r := range results {
		out[i] = r.node
	}
	return nonNilNodes(out), nil
}

// SearchRelatedNodes implements [graphstore.Store].
func (s *Store) SearchRelatedNodes(_ context.Context, p graphstore.RelatedSearch) ([]graphstore.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "SearchRelatedNodes", Args: []any{p}})

	findSources, findTargets := p.FindSources, p.FindTargets
	if !findSources && !findTargets {
		findTargets = true
	}

	seen := map[string]bool{}
	var out []graphstore.Node
	for _, e := range s.sortedEdges() {
		if len(p.AllowedRelations) > 0 && !contains(p.AllowedRelations, e.Relation) {
			continue
		}
		var neighborID string
		switch {
		case findTargets && e.SourceID == p.NodeID:
			neighborID = e.TargetID
		case findSources && e.TargetID == p.NodeID:
			neighborID = e.SourceID
		default:
			continue
		}
		if seen[neighborID] {
			continue
		}
		n, ok := s.nodes[neighborID]
		if !ok || !hasLabels(n, p.RequiredLabels) || !matchesFilter(n, p.RequiredProperties, p.IncludeMissing) {
			continue
		}
		seen[neighborID] = true
		out = append(out, n)
		if p.Limit > 0 && len(out) >= p.Limit {
			break
		}
	}
	return nonNilNodes(out), nil
}

// SearchDirectionalNodes implements [graphstore.Store].
func (s *Store) SearchDirectionalNodes(_ context.Context, p graphstore.DirectionalSearch) ([]graphstore.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "SearchDirectionalNodes", Args: []any{p}})

	var candidates []graphstore.Node
	for _, n := range s.sortedNodes() {
		if !hasLabels(n, p.RequiredLabels) {
			continue
		}
		if !matchesFilter(n, p.Filters, false) {
			continue
		}
		if p.ByProperty != "" && p.StartAtValue != nil {
			v, ok := n.Properties[p.ByProperty]
			if !ok {
				continue
			}
			cmp := compareValues(v, p.StartAtValue)
			if p.OrderAscending {
				if cmp < 0 || (cmp == 0 && !p.IncludeEqual) {
					continue
				}
			} else {
				if cmp > 0 || (cmp == 0 && !p.IncludeEqual) {
					continue
				}
			}
		}
		candidates = append(candidates, n)
	}

	if p.ByProperty != "" {
		sort.SliceStable(candidates, func(i, j int) bool {
			cmp := compareValues(candidates[i].Properties[p.ByProperty], candidates[j].Properties[p.ByProperty])
			if p.OrderAscending {
				return cmp < 0
			}
			return cmp > 0
		})
	}
	if p.Limit > 0 && len(candidates) > p.Limit {
		candidates = candidates[:p.Limit]
	}
	return nonNilNodes(candidates), nil
}

func (s *Store) sortedNodes() []graphstore.Node {
	out := make([]graphstore.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) sortedEdges() []graphstore.Edge {
	out := make([]graphstore.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func hasLabels(n graphstore.Node, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := map[string]bool{}
	for _, l := range n.Labels {
		have[l] = true
	}
	for _, l := range required {
		if !have[l] {
			return false
		}
	}
	return true
}

func matchesFilter(n graphstore.Node, filter graphstore.PropertyFilter, includeMissing bool) bool {
	for k, want := range filter {
		got, ok := n.Properties[k]
		if !ok {
			if includeMissing {
				continue
			}
			return false
		}
		if compareValues(got, want) != 0 {
			return false
		}
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// compareValues compares two property values: chronologically when both
// sides are time.Time, numerically when both sides parse as float64, and
// by string comparison otherwise.
func compareValues(a, b any) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := toString(a), toString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asFloat32Slice(v any) ([]float32, bool) {
	switch t := v.(type) {
	case []float32:
		return t, true
	case []any:
		out := make([]float32, len(t))
		for i, e := range t {
			f, ok := toFloat64(e)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	default:
		return nil, false
	}
}

func similarity(metric graphstore.SimilarityMetric, a, b []float32) float64 {
	switch metric {
	case graphstore.Dot:
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		return sum
	case graphstore.Euclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return -math.Sqrt(sum)
	case graphstore.Manhattan:
		var sum float64
		for i := range a {
			sum += math.Abs(float64(a[i]) - float64(b[i]))
		}
		return -sum
	default: // Cosine
		var dot, normA, normB float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			normA += float64(a[i]) * float64(a[i])
			normB += float64(b[i]) * float64(b[i])
		}
		if normA == 0 || normB == 0 {
			return 0
		}
		return dot / (math.Sqrt(normA) * math.Sqrt(normB))
	}
}

func nonNilNodes(nodes []graphstore.Node) []graphstore.Node {
	if nodes == nil {
		return []graphstore.Node{}
	}
	return nodes
}

// Ensure Store satisfies the interface at compile time.
var _ graphstore.Store = (*Store)(nil)

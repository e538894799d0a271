// Package memory provides a brute-force in-memory vector store, useful for
// local runs and tests.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/dkovalenko/cvrank/internal/vectorstore"
)

// Store keeps points in insertion order and answers queries with exact
// cosine distance.
type Store struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	points    map[string]vectorstore.Point
}

func New() *Store {
	return &Store{points: make(map[string]vectorstore.Point)}
}

func (s *Store) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return nil
}

func (s *Store) Upsert(_ context.Context, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if s.dimension > 0 && len(p.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
		if _, exists := s.points[p.ID]; !exists {
			s.order = append(s.order, p.ID)
		}
		s.points[p.ID] = p
	}
	return nil
}

func (s *Store) Fetch(_ context.Context, id string) (vectorstore.Point, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[id]
	return p, ok, nil
}

func (s *Store) Query(_ context.Context, vector []float64, scope vectorstore.Scope, topK int) ([]vectorstore.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 3
	}

	matches := make([]vectorstore.Match, 0)
	for _, id := range s.order {
		p := s.points[id]
		if !inScope(p.Payload, scope) {
			continue
		}
		matches = append(matches, vectorstore.Match{
			Text:     p.Text,
			Distance: 1 - cosine(vector, p.Vector),
			Payload:  p.Payload,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) Count(_ context.Context, scope vectorstore.Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if scope == (vectorstore.Scope{}) {
		return len(s.points), nil
	}

	count := 0
	for _, p := range s.points {
		if inScope(p.Payload, scope) {
			count++
		}
	}
	return count, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.points = make(map[string]vectorstore.Point)
	return nil
}

func inScope(payload map[string]any, scope vectorstore.Scope) bool {
	if scope.Category != "" {
		if v, _ := payload[vectorstore.PayloadCategory].(string); v != scope.Category {
			return false
		}
	}
	if scope.CandidateName != "" {
		if v, _ := payload[vectorstore.PayloadCandidateName].(string); v != scope.CandidateName {
			return false
		}
	}
	return true
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

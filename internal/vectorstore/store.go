package vectorstore

import "context"

// Payload keys shared by all store implementations.
const (
	PayloadText          = "text"
	PayloadCategory      = "category"
	PayloadCandidateName = "candidate_name"
)

// Scope restricts a query to one attribute category and, optionally, one
// candidate.
type Scope struct {
	Category      string
	CandidateName string
}

// Point is a stored vector with its source text and metadata.
type Point struct {
	ID      string
	Vector  []float64
	Text    string
	Payload map[string]any
}

// Match is a single nearest-neighbor result. Distance is non-negative; a
// smaller distance means a closer match.
type Match struct {
	Text     string
	Distance float64
	Payload  map[string]any
}

// Store persists embedding vectors and answers similarity queries. An empty
// result from Query means "no match", not an error. Count with a zero-value
// scope reports the total number of stored points.
type Store interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []Point) error
	Fetch(ctx context.Context, id string) (Point, bool, error)
	Query(ctx context.Context, vector []float64, scope Scope, topK int) ([]Match, error)
	Count(ctx context.Context, scope Scope) (int, error)
	Clear(ctx context.Context) error
}

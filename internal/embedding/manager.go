package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dkovalenko/cvrank/internal/model"
	"github.com/dkovalenko/cvrank/internal/util"
	"github.com/dkovalenko/cvrank/internal/vectorstore"
)

// Stats is a snapshot of the manager's counters and the store contents,
// broken down by job requirements versus candidate attributes.
type Stats struct {
	CacheHits       int
	APICalls        int
	StoredPoints    int
	TotalPoints     int
	JobPoints       int
	CandidatePoints int
	HitRate         float64
}

// Manager is a read-through embedding cache backed by the vector store.
// Each cache key is guarded by a single-flight group, so concurrent
// evaluations never issue duplicate provider calls for the same text.
type Manager struct {
	embedder Embedder
	store    vectorstore.Store
	logger   *zap.Logger

	flight singleflight.Group

	mu          sync.Mutex
	initialized bool
	cacheHits   int
	apiCalls    int
	stored      int
}

func NewManager(embedder Embedder, store vectorstore.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{embedder: embedder, store: store, logger: logger}
}

// Embeddings returns one vector per item, fetching and storing the ones the
// store does not hold yet. Output is index-aligned with the input.
func (m *Manager) Embeddings(ctx context.Context, items []model.Embeddable, scope vectorstore.Scope) ([][]float64, error) {
	vectors := make([][]float64, len(items))

	group, ctx := errgroup.WithContext(ctx)
	for i, item := range items {
		group.Go(func() error {
			vector, err := m.vectorFor(ctx, item, scope)
			if err != nil {
				return err
			}
			vectors[i] = vector
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}

// Query answers a similarity query against the underlying store.
func (m *Manager) Query(ctx context.Context, vector []float64, scope vectorstore.Scope, topK int) ([]vectorstore.Match, error) {
	return m.store.Query(ctx, vector, scope, topK)
}

// Stats returns a snapshot of the cache counters and store contents.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	total, err := m.store.Count(ctx, vectorstore.Scope{})
	if err != nil {
		return Stats{}, fmt.Errorf("counting stored points: %w", err)
	}

	var jobs, candidates int
	for _, category := range model.Categories {
		n, err := m.store.Count(ctx, vectorstore.Scope{Category: category.JobScope()})
		if err != nil {
			return Stats{}, fmt.Errorf("counting %s requirement points: %w", category, err)
		}
		jobs += n

		n, err = m.store.Count(ctx, vectorstore.Scope{Category: category.CandidateScope()})
		if err != nil {
			return Stats{}, fmt.Errorf("counting %s attribute points: %w", category, err)
		}
		candidates += n
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stats := Stats{
		CacheHits:       m.cacheHits,
		APICalls:        m.apiCalls,
		StoredPoints:    m.stored,
		TotalPoints:     total,
		JobPoints:       jobs,
		CandidatePoints: candidates,
	}
	if requests := stats.CacheHits + stats.APICalls; requests > 0 {
		stats.HitRate = float64(stats.CacheHits) / float64(requests) * 100
	}
	return stats, nil
}

// Clear drops all stored embeddings.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.initialized = false
	m.mu.Unlock()
	return m.store.Clear(ctx)
}

func (m *Manager) vectorFor(ctx context.Context, item model.Embeddable, scope vectorstore.Scope) ([]float64, error) {
	id := m.pointID(item.EmbedText(), scope)

	// The lookup runs on a context detached from the winning caller, so a
	// canceled evaluation cannot fail unrelated callers sharing the key.
	// Each waiter still honors its own context below.
	ch := m.flight.DoChan(id, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)

		point, found, err := m.store.Fetch(fetchCtx, id)
		if err != nil {
			return nil, fmt.Errorf("looking up embedding: %w", err)
		}
		if found && len(point.Vector) > 0 {
			m.count(func() { m.cacheHits++ })
			return point.Vector, nil
		}
		return m.fetchAndStore(fetchCtx, id, item, scope)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.([]float64), nil
	}
}

func (m *Manager) fetchAndStore(ctx context.Context, id string, item model.Embeddable, scope vectorstore.Scope) ([]float64, error) {
	text := item.EmbedText()

	m.logger.Debug("fetching embedding",
		zap.String("embedder", m.embedder.Name()),
		zap.String("category", scope.Category),
		zap.String("text", util.TruncateForLog(text, 80)),
	)

	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding %q: %w", util.TruncateForLog(text, 80), err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vectors))
	}
	vector := vectors[0]
	m.count(func() { m.apiCalls++ })

	if err := m.ensureCollection(ctx, len(vector)); err != nil {
		return nil, err
	}

	payload := item.Payload()
	payload[vectorstore.PayloadCategory] = scope.Category
	if scope.CandidateName != "" {
		payload[vectorstore.PayloadCandidateName] = scope.CandidateName
	}

	point := vectorstore.Point{ID: id, Vector: vector, Text: text, Payload: payload}
	if err := m.store.Upsert(ctx, []vectorstore.Point{point}); err != nil {
		return nil, fmt.Errorf("storing embedding: %w", err)
	}
	m.count(func() { m.stored++ })

	return vector, nil
}

// ensureCollection bootstraps the store once the vector dimension is known.
func (m *Manager) ensureCollection(ctx context.Context, dimension int) error {
	m.mu.Lock()
	initialized := m.initialized
	m.mu.Unlock()
	if initialized {
		return nil
	}

	if err := m.store.EnsureCollection(ctx, dimension); err != nil {
		return fmt.Errorf("initializing collection: %w", err)
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// pointID derives a deterministic UUID from the embedding model, scope and
// text, so identical items map to the same stored point.
func (m *Manager) pointID(text string, scope vectorstore.Scope) string {
	key := fmt.Sprintf("%s|%s|%s|%s", m.embedder.Model(), scope.Category, scope.CandidateName, text)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func (m *Manager) count(update func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	update()
}

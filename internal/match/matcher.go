package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dkovalenko/cvrank/internal/model"
	"github.com/dkovalenko/cvrank/internal/vectorstore"
)

// ErrJobRequired is returned when the skills category is matched without the
// job needed to compute skill weights. This is a programming error, not a
// data condition, so it fails fast instead of defaulting.
var ErrJobRequired = errors.New("job is required to weight the skills category")

// SimilarityProvider answers nearest-neighbor queries over stored candidate
// attributes. An empty result means "no match", not an error.
type SimilarityProvider interface {
	Query(ctx context.Context, vector []float64, scope vectorstore.Scope, topK int) ([]vectorstore.Match, error)
}

// EmbeddingProvider converts embeddable items into vectors, index-aligned
// with the input.
type EmbeddingProvider interface {
	Embeddings(ctx context.Context, items []model.Embeddable, scope vectorstore.Scope) ([][]float64, error)
}

const (
	defaultTopK         = 3
	defaultQueryTimeout = 30 * time.Second

	proficiencyScale = 5.0
)

// Config tunes the matcher's provider access.
type Config struct {
	// TopK is the number of nearest neighbors requested per requirement.
	TopK int
	// QueryTimeout bounds every single provider call.
	QueryTimeout time.Duration
}

// Matcher scores requirement categories against a candidate's stored
// attributes.
type Matcher struct {
	embeddings   EmbeddingProvider
	similarity   SimilarityProvider
	logger       *zap.Logger
	topK         int
	queryTimeout time.Duration
}

func NewMatcher(embeddings EmbeddingProvider, similarity SimilarityProvider, logger *zap.Logger, cfg Config) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Matcher{
		embeddings:   embeddings,
		similarity:   similarity,
		logger:       logger,
		topK:         topK,
		queryTimeout: timeout,
	}
}

// MatchCategory matches one requirement category against the candidate's
// stored attributes. The job is required for the skills category, where it
// determines the requirement weights; other categories ignore it.
func (m *Matcher) MatchCategory(ctx context.Context, reqs []model.Requirement, candidateName string, category model.Category, job *model.Job) (model.CategoryResult, error) {
	var weights []float64
	if category == model.CategorySkills {
		if job == nil {
			return model.CategoryResult{}, ErrJobRequired
		}
		weights = ComputeWeights(job.Skills, job.YearsExperience, job.RoleType)
	}
	return m.matchWithWeights(ctx, reqs, candidateName, category, weights)
}

// matchWithWeights is the shared implementation. For the skills category the
// caller supplies precomputed weights so they are calculated once per job.
func (m *Matcher) matchWithWeights(ctx context.Context, reqs []model.Requirement, candidateName string, category model.Category, weights []float64) (model.CategoryResult, error) {
	if category == model.CategorySkills && weights == nil {
		return model.CategoryResult{}, ErrJobRequired
	}
	if len(reqs) == 0 {
		return model.CategoryResult{Category: category, OverallScore: 0, Matches: []model.AttributeMatch{}}, nil
	}

	items := make([]model.Embeddable, len(reqs))
	for i, r := range reqs {
		items[i] = r
	}
	vectors, err := m.embeddings.Embeddings(ctx, items, vectorstore.Scope{Category: category.JobScope()})
	if err != nil {
		return model.CategoryResult{}, fmt.Errorf("embedding %s requirements: %w", category, err)
	}

	// Queries are independent; dispatch them in parallel and address results
	// by index so the output stays deterministic.
	matches := make([]model.AttributeMatch, len(reqs))
	scope := vectorstore.Scope{Category: category.CandidateScope(), CandidateName: candidateName}

	group, groupCtx := errgroup.WithContext(ctx)
	for i := range reqs {
		group.Go(func() error {
			queryCtx, cancel := context.WithTimeout(groupCtx, m.queryTimeout)
			defer cancel()

			results, err := m.similarity.Query(queryCtx, vectors[i], scope, m.topK)
			if err != nil {
				return fmt.Errorf("querying %s attributes for %q: %w", category, candidateName, err)
			}
			matches[i] = m.scoreRequirement(reqs[i], results, category, weights, i)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return model.CategoryResult{}, err
	}

	return model.CategoryResult{
		Category:     category,
		OverallScore: categoryScore(category, matches),
		Matches:      matches,
	}, nil
}

func (m *Matcher) scoreRequirement(req model.Requirement, results []vectorstore.Match, category model.Category, weights []float64, index int) model.AttributeMatch {
	if len(results) == 0 {
		return model.AttributeMatch{
			Requirement: req.Description,
			Quality:     model.QualityNoMatch,
		}
	}

	best := results[0]
	similarity := math.Max(0, 1-best.Distance)

	match := model.AttributeMatch{
		Requirement: req.Description,
		MatchedItem: best.Text,
		Matched:     true,
		Similarity:  similarity,
	}

	if category == model.CategorySkills {
		proficiency := proficiencyFrom(best.Payload)
		weight := 0.0
		if index < len(weights) {
			weight = weights[index]
		}
		match.Proficiency = &proficiency
		match.FinalScore = float64(proficiency) / proficiencyScale * similarity * weight
	} else {
		match.FinalScore = similarity * req.Weight
	}

	match.Quality = model.QualityFromScore(match.FinalScore)
	return match
}

// categoryScore aggregates per-requirement scores. Skills are summed (the
// weights already sum to 1, so the clamped sum stays in [0,1] and rewards
// coverage); every other category is averaged.
func categoryScore(category model.Category, matches []model.AttributeMatch) float64 {
	if len(matches) == 0 {
		return 0
	}

	var total float64
	for _, m := range matches {
		total += m.FinalScore
	}

	if category == model.CategorySkills {
		return math.Min(1, total)
	}
	return total / float64(len(matches))
}

// proficiencyFrom reads the stored skill score from a match payload. Stores
// may carry it as an int or a JSON float; absent or unreadable scores fall
// back to the default.
func proficiencyFrom(payload map[string]any) int {
	var decoded struct {
		Score *int `mapstructure:"skill_score"`
	}
	cfg := &mapstructure.DecoderConfig{
		Result:           &decoded,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return model.DefaultProficiency
	}
	if err := decoder.Decode(payload); err != nil || decoded.Score == nil {
		return model.DefaultProficiency
	}
	return *decoded.Score
}

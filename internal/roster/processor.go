// Package roster handles candidate ingestion: embedding candidate attributes
// and storing them for similarity queries.
package roster

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dkovalenko/cvrank/internal/model"
	"github.com/dkovalenko/cvrank/internal/vectorstore"
)

// EmbeddingProvider converts embeddable items into stored vectors.
type EmbeddingProvider interface {
	Embeddings(ctx context.Context, items []model.Embeddable, scope vectorstore.Scope) ([][]float64, error)
}

// Processor ingests candidate profiles into the vector store.
type Processor struct {
	embeddings EmbeddingProvider
	logger     *zap.Logger
}

func NewProcessor(embeddings EmbeddingProvider, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{embeddings: embeddings, logger: logger}
}

// AddCandidate validates the candidate and stores every non-empty attribute
// category under the candidate's scope.
func (p *Processor) AddCandidate(ctx context.Context, candidate model.Candidate) error {
	if err := candidate.Validate(); err != nil {
		return err
	}

	for _, category := range model.Categories {
		items := candidate.Attributes(category)
		if len(items) == 0 {
			continue
		}

		scope := vectorstore.Scope{
			Category:      category.CandidateScope(),
			CandidateName: candidate.Name,
		}
		if _, err := p.embeddings.Embeddings(ctx, items, scope); err != nil {
			return fmt.Errorf("ingesting %s of %q: %w", category, candidate.Name, err)
		}

		p.logger.Debug("candidate attributes stored",
			zap.String("candidate", candidate.Name),
			zap.String("category", string(category)),
			zap.Int("items", len(items)),
		)
	}

	p.logger.Info("candidate processed", zap.String("candidate", candidate.Name))
	return nil
}

// AddCandidates ingests multiple candidates.
func (p *Processor) AddCandidates(ctx context.Context, candidates []model.Candidate) error {
	for _, candidate := range candidates {
		if err := p.AddCandidate(ctx, candidate); err != nil {
			return err
		}
	}
	return nil
}

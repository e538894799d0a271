package match

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dkovalenko/cvrank/internal/model"
)

// Evaluator runs the matcher across all categories and ranks candidates.
type Evaluator struct {
	matcher *Matcher
	logger  *zap.Logger
}

func NewEvaluator(matcher *Matcher, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{matcher: matcher, logger: logger}
}

// Evaluate scores one candidate against the job. It either fully succeeds or
// fully fails: a provider error aborts the whole evaluation rather than
// producing a silently degraded score.
func (e *Evaluator) Evaluate(ctx context.Context, job *model.Job, candidateName string) (*model.Evaluation, error) {
	weights := ComputeWeights(job.Skills, job.YearsExperience, job.RoleType)
	return e.evaluateWithWeights(ctx, job, candidateName, weights)
}

// EvaluateMany scores all candidates against the job in parallel and returns
// the evaluations sorted by overall score, highest first. Candidates with
// equal scores keep their input order. Skill weights are computed once and
// shared read-only across candidates.
func (e *Evaluator) EvaluateMany(ctx context.Context, job *model.Job, candidateNames []string) ([]*model.Evaluation, error) {
	weights := ComputeWeights(job.Skills, job.YearsExperience, job.RoleType)

	evaluations := make([]*model.Evaluation, len(candidateNames))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, name := range candidateNames {
		group.Go(func() error {
			evaluation, err := e.evaluateWithWeights(groupCtx, job, name, weights)
			if err != nil {
				return err
			}
			evaluations[i] = evaluation
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(evaluations, func(i, j int) bool {
		return evaluations[i].OverallScore > evaluations[j].OverallScore
	})
	return evaluations, nil
}

func (e *Evaluator) evaluateWithWeights(ctx context.Context, job *model.Job, candidateName string, weights []float64) (*model.Evaluation, error) {
	results := make([]model.CategoryResult, 0, len(model.Categories))
	var total float64

	for _, category := range model.Categories {
		reqs := job.Requirements(category)
		if len(reqs) == 0 {
			continue
		}

		result, err := e.matcher.matchWithWeights(ctx, reqs, candidateName, category, weights)
		if err != nil {
			return nil, fmt.Errorf("evaluating %q: %w", candidateName, err)
		}

		e.logger.Debug("category matched",
			zap.String("candidate", candidateName),
			zap.String("category", string(category)),
			zap.Float64("score", result.OverallScore),
			zap.Int("requirements", len(reqs)),
		)

		results = append(results, result)
		total += result.OverallScore
	}

	overall := 0.0
	if len(results) > 0 {
		overall = total / float64(len(results))
	}

	return &model.Evaluation{
		CandidateName: candidateName,
		JobTitle:      job.Title,
		OverallScore:  overall,
		Categories:    results,
	}, nil
}

// TopMatch is one entry of a category's best matches.
type TopMatch struct {
	Requirement string             `json:"requirement"`
	MatchedItem string             `json:"matched_item"`
	Score       float64            `json:"score"`
	Quality     model.MatchQuality `json:"quality"`
}

// TopMatches returns the n highest-scoring matches of a category result that
// actually matched a candidate attribute.
func TopMatches(result model.CategoryResult, n int) []TopMatch {
	ordered := make([]model.AttributeMatch, len(result.Matches))
	copy(ordered, result.Matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FinalScore > ordered[j].FinalScore
	})

	top := make([]TopMatch, 0, n)
	for _, m := range ordered {
		if !m.Matched {
			continue
		}
		top = append(top, TopMatch{
			Requirement: m.Requirement,
			MatchedItem: m.MatchedItem,
			Score:       m.FinalScore,
			Quality:     m.Quality,
		})
		if len(top) == n {
			break
		}
	}
	return top
}

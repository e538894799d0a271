package model

// MatchQuality is a human-readable band summarizing a numeric score.
type MatchQuality string

const (
	QualityExcellent MatchQuality = "Excellent"
	QualityVeryGood  MatchQuality = "Very Good"
	QualityGood      MatchQuality = "Good"
	QualityFair      MatchQuality = "Fair"
	QualityPoor      MatchQuality = "Poor"
	QualityVeryPoor  MatchQuality = "Very Poor"
	QualityNoMatch   MatchQuality = "No Match"
)

// QualityFromScore maps a score in [0,1] to its quality band. Boundary values
// belong to the higher band.
func QualityFromScore(score float64) MatchQuality {
	switch {
	case score >= 0.9:
		return QualityExcellent
	case score >= 0.8:
		return QualityVeryGood
	case score >= 0.7:
		return QualityGood
	case score >= 0.6:
		return QualityFair
	case score >= 0.4:
		return QualityPoor
	case score > 0:
		return QualityVeryPoor
	}
	return QualityNoMatch
}

// Rank orders quality bands from NO_MATCH (0) to EXCELLENT (6).
func (q MatchQuality) Rank() int {
	switch q {
	case QualityExcellent:
		return 6
	case QualityVeryGood:
		return 5
	case QualityGood:
		return 4
	case QualityFair:
		return 3
	case QualityPoor:
		return 2
	case QualityVeryPoor:
		return 1
	}
	return 0
}

// AttributeMatch is the match result for a single requirement.
type AttributeMatch struct {
	Requirement string       `json:"requirement"`
	MatchedItem string       `json:"matched_item,omitempty"`
	Matched     bool         `json:"matched"`
	Similarity  float64      `json:"similarity"`
	Proficiency *int         `json:"proficiency,omitempty"`
	FinalScore  float64      `json:"final_score"`
	Quality     MatchQuality `json:"quality"`
}

// CategoryResult holds the match results for one requirement category.
type CategoryResult struct {
	Category     Category         `json:"category"`
	OverallScore float64          `json:"overall_score"`
	Matches      []AttributeMatch `json:"matches"`
}

// Evaluation is the complete result of scoring one candidate against one job.
// It is immutable after creation.
type Evaluation struct {
	CandidateName string           `json:"candidate_name"`
	JobTitle      string           `json:"job_title"`
	OverallScore  float64          `json:"overall_score"`
	Categories    []CategoryResult `json:"category_results"`
}

// CategoryScore returns the score for the given category, or 0 when the
// category was not evaluated. Callers that need to distinguish a true zero
// from an absent category should use Category instead.
func (e *Evaluation) CategoryScore(c Category) float64 {
	if result, ok := e.Category(c); ok {
		return result.OverallScore
	}
	return 0
}

// Category returns the result for the given category and whether it was
// evaluated at all.
func (e *Evaluation) Category(c Category) (CategoryResult, bool) {
	for _, result := range e.Categories {
		if result.Category == c {
			return result, true
		}
	}
	return CategoryResult{}, false
}

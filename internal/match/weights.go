package match

import (
	"math"

	"github.com/dkovalenko/cvrank/internal/model"
)

const (
	// experienceThreshold is the seniority cutoff in years: at or above it,
	// core ability stops contributing to skill weights.
	experienceThreshold = 5.0
	// coreFactorMax is the share of weight given to core skills at zero
	// years of experience.
	coreFactorMax = 0.6

	requiredMultiplier   = 3.0
	niceToHaveMultiplier = 1.0

	technicalToolFactor  = 0.9
	technicalSoftFactor  = 0.1
	leadershipToolFactor = 0.4
	leadershipSoftFactor = 0.6
)

// CoreFactor returns the share of weight assigned to core skills for the
// given required years of experience. It decays linearly from 0.6 at zero
// years to 0 at five or more.
func CoreFactor(years float64) float64 {
	return math.Max(0, coreFactorMax*(1-years/experienceThreshold))
}

// ComputeWeights converts a job's skill requirements into normalized
// importance weights, index-aligned with the input. For a non-empty input the
// weights always sum to 1: junior roles weigh core skills heavily, senior
// roles shift the weight to tools and soft skills according to the role type,
// and required skills count three times as much as nice-to-haves.
func ComputeWeights(reqs []model.Requirement, years float64, role model.RoleType) []float64 {
	if len(reqs) == 0 {
		return []float64{}
	}

	counts := map[model.SkillKind]int{}
	for _, r := range reqs {
		counts[r.Kind]++
	}

	unnormalized := make([]float64, len(reqs))
	var total float64
	for i, r := range reqs {
		multiplier := niceToHaveMultiplier
		if r.Required {
			multiplier = requiredMultiplier
		}
		unnormalized[i] = r.Weight * typeWeight(r.Kind, years, role, counts) * multiplier
		total += unnormalized[i]
	}

	weights := make([]float64, len(reqs))
	if total == 0 {
		// All unnormalized weights vanished (e.g. every base weight is 0).
		// Fall back to an equal split so the sum-to-1 invariant still holds.
		equal := 1.0 / float64(len(reqs))
		for i := range weights {
			weights[i] = equal
		}
		return weights
	}

	for i, w := range unnormalized {
		weights[i] = w / total
	}
	return weights
}

func typeWeight(kind model.SkillKind, years float64, role model.RoleType, counts map[model.SkillKind]int) float64 {
	coreFactor := CoreFactor(years)

	if kind == model.SkillCore {
		if counts[model.SkillCore] == 0 {
			return 0
		}
		return coreFactor / float64(counts[model.SkillCore])
	}

	remaining := 1 - coreFactor

	if years >= experienceThreshold {
		if counts[kind] == 0 {
			return 0
		}
		return remaining * roleFactor(kind, role) / float64(counts[kind])
	}

	// Junior roles split the non-core share equally, regardless of role type.
	other := counts[model.SkillSoft] + counts[model.SkillTool]
	if other == 0 {
		return 0
	}
	return remaining / float64(other)
}

func roleFactor(kind model.SkillKind, role model.RoleType) float64 {
	switch role {
	case model.RoleTechnical:
		if kind == model.SkillTool {
			return technicalToolFactor
		}
		return technicalSoftFactor
	case model.RoleLeadership:
		if kind == model.SkillTool {
			return leadershipToolFactor
		}
		return leadershipSoftFactor
	}
	return 0
}

package model

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SkillKind classifies a skill requirement for weighting purposes.
type SkillKind string

const (
	SkillCore SkillKind = "core"
	SkillSoft SkillKind = "soft"
	SkillTool SkillKind = "tool"
)

// RoleType describes the nature of the position being hired for.
type RoleType string

const (
	RoleTechnical  RoleType = "technical"
	RoleLeadership RoleType = "leadership"
)

// Category is one of the requirement/attribute groups a job and a candidate share.
type Category string

const (
	CategorySkills         Category = "skills"
	CategoryExperience     Category = "experience"
	CategoryEducation      Category = "education"
	CategoryCertifications Category = "certifications"
)

// Categories lists all categories in the fixed order used for evaluation.
var Categories = []Category{
	CategorySkills,
	CategoryExperience,
	CategoryEducation,
	CategoryCertifications,
}

// JobScope names the storage scope for a job's requirements in this category.
func (c Category) JobScope() string { return "job_" + string(c) }

// CandidateScope names the storage scope for candidate attributes in this category.
func (c Category) CandidateScope() string { return "candidate_" + string(c) }

var validate = validator.New(validator.WithRequiredStructEnabled())

// Requirement is a single job-specified need within a category.
type Requirement struct {
	Description string    `yaml:"description" json:"description" validate:"required"`
	Weight      float64   `yaml:"weight" json:"weight" validate:"gte=0"`
	Kind        SkillKind `yaml:"kind" json:"kind" validate:"oneof=core soft tool"`
	Required    bool      `yaml:"required" json:"required"`
}

// UnmarshalYAML accepts either a full mapping or a bare string. A bare string
// becomes a required core requirement with weight 1, matching how requirement
// lists are usually written for the non-skills categories.
func (r *Requirement) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err == nil {
		*r = Requirement{Description: strings.TrimSpace(text), Weight: 1.0, Kind: SkillCore, Required: true}
		return nil
	}

	type plain struct {
		Description string     `yaml:"description"`
		Weight      *float64   `yaml:"weight"`
		Kind        *SkillKind `yaml:"kind"`
		Required    *bool      `yaml:"required"`
	}
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}

	r.Description = strings.TrimSpace(p.Description)
	r.Weight = 1.0
	if p.Weight != nil {
		r.Weight = *p.Weight
	}
	r.Kind = SkillCore
	if p.Kind != nil {
		r.Kind = *p.Kind
	}
	r.Required = true
	if p.Required != nil {
		r.Required = *p.Required
	}
	return nil
}

// Validate rejects malformed requirements before they reach the matching code.
func (r Requirement) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("requirement description must not be blank")
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("requirement %q: %w", r.Description, err)
	}
	return nil
}

// Job is a complete job specification with requirements grouped by category.
type Job struct {
	Title           string        `yaml:"title" json:"title" validate:"required"`
	RoleType        RoleType      `yaml:"role_type" json:"role_type" validate:"oneof=technical leadership"`
	YearsExperience float64       `yaml:"years_of_experience" json:"years_of_experience" validate:"gte=0"`
	Skills          []Requirement `yaml:"skills" json:"skills"`
	Experience      []Requirement `yaml:"experience" json:"experience"`
	Education       []Requirement `yaml:"education" json:"education"`
	Certifications  []Requirement `yaml:"certifications" json:"certifications"`
}

// Requirements returns the requirement list for the given category, in
// insertion order. Order matters: skill weights are paired by index.
func (j *Job) Requirements(c Category) []Requirement {
	switch c {
	case CategorySkills:
		return j.Skills
	case CategoryExperience:
		return j.Experience
	case CategoryEducation:
		return j.Education
	case CategoryCertifications:
		return j.Certifications
	}
	return nil
}

// Validate checks the job and every requirement it carries.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return fmt.Errorf("job title must not be blank")
	}
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("job %q: %w", j.Title, err)
	}
	for _, c := range Categories {
		for _, r := range j.Requirements(c) {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("job %q, category %s: %w", j.Title, c, err)
			}
		}
	}
	return nil
}

// Skill is a single candidate skill with a 0-5 proficiency score.
type Skill struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Score int    `yaml:"score" json:"score" validate:"gte=0,lte=5"`
}

// UnmarshalYAML applies the default proficiency of 3 when no score is given.
func (s *Skill) UnmarshalYAML(unmarshal func(any) error) error {
	type plain struct {
		Name  string `yaml:"name"`
		Score *int   `yaml:"score"`
	}
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	s.Name = strings.TrimSpace(p.Name)
	s.Score = DefaultProficiency
	if p.Score != nil {
		s.Score = *p.Score
	}
	return nil
}

// DefaultProficiency is assumed when a stored skill carries no score.
const DefaultProficiency = 3

// Candidate is a complete candidate profile.
type Candidate struct {
	Name            string   `yaml:"name" json:"name" validate:"required"`
	YearsExperience float64  `yaml:"years_of_experience" json:"years_of_experience" validate:"gte=0"`
	Skills          []Skill  `yaml:"skills" json:"skills" validate:"dive"`
	Experience      []string `yaml:"experience" json:"experience"`
	Education       []string `yaml:"education" json:"education"`
	Certifications  []string `yaml:"certifications" json:"certifications"`
}

// Validate rejects malformed candidate profiles at load time.
func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("candidate name must not be blank")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("candidate %q: %w", c.Name, err)
	}
	for _, s := range c.Skills {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("candidate %q: skill name must not be blank", c.Name)
		}
	}
	for _, group := range [][]string{c.Experience, c.Education, c.Certifications} {
		for _, entry := range group {
			if strings.TrimSpace(entry) == "" {
				return fmt.Errorf("candidate %q: attribute entries must not be blank", c.Name)
			}
		}
	}
	return nil
}

// Attributes returns the candidate entries for the given category as
// embeddable items.
func (c *Candidate) Attributes(cat Category) []Embeddable {
	switch cat {
	case CategorySkills:
		items := make([]Embeddable, 0, len(c.Skills))
		for _, s := range c.Skills {
			items = append(items, s)
		}
		return items
	case CategoryExperience:
		return textItems(c.Experience)
	case CategoryEducation:
		return textItems(c.Education)
	case CategoryCertifications:
		return textItems(c.Certifications)
	}
	return nil
}

func textItems(entries []string) []Embeddable {
	items := make([]Embeddable, 0, len(entries))
	for _, e := range entries {
		items = append(items, TextItem(e))
	}
	return items
}

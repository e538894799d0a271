package model

// Embeddable is the closed set of items whose text can be turned into a
// vector. Payload returns the metadata stored alongside the vector.
type Embeddable interface {
	EmbedText() string
	Payload() map[string]any
}

// TextItem is a plain text attribute (experience, education, certification).
type TextItem string

func (t TextItem) EmbedText() string { return string(t) }

func (t TextItem) Payload() map[string]any { return map[string]any{} }

// PayloadSkillScore is the payload key carrying a skill's proficiency.
const PayloadSkillScore = "skill_score"

func (s Skill) EmbedText() string { return s.Name }

func (s Skill) Payload() map[string]any {
	return map[string]any{PayloadSkillScore: s.Score}
}

func (r Requirement) EmbedText() string { return r.Description }

func (r Requirement) Payload() map[string]any {
	return map[string]any{
		"weight":   r.Weight,
		"kind":     string(r.Kind),
		"required": r.Required,
	}
}

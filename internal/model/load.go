package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadJob reads and validates a job specification from a YAML file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file %q: %w", path, err)
	}

	job := &Job{RoleType: RoleTechnical}
	if err := yaml.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("parsing job file %q: %w", path, err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// LoadCandidates reads and validates candidate profiles from a YAML file.
// The file holds a top-level `candidates` list.
func LoadCandidates(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading candidates file %q: %w", path, err)
	}

	var doc struct {
		Candidates []Candidate `yaml:"candidates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing candidates file %q: %w", path, err)
	}
	if len(doc.Candidates) == 0 {
		return nil, fmt.Errorf("candidates file %q contains no candidates", path)
	}
	for i := range doc.Candidates {
		if err := doc.Candidates[i].Validate(); err != nil {
			return nil, err
		}
	}

	return doc.Candidates, nil
}

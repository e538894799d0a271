package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/dkovalenko/cvrank/internal/model"
	"github.com/dkovalenko/cvrank/internal/vectorstore"
)

type recordedCall struct {
	texts []string
	scope vectorstore.Scope
}

type recordingProvider struct {
	calls []recordedCall
	err   error
}

func (r *recordingProvider) Embeddings(_ context.Context, items []model.Embeddable, scope vectorstore.Scope) ([][]float64, error) {
	if r.err != nil {
		return nil, r.err
	}
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.EmbedText()
	}
	r.calls = append(r.calls, recordedCall{texts: texts, scope: scope})
	return make([][]float64, len(items)), nil
}

func TestAddCandidateStoresByCategory(t *testing.T) {
	t.Parallel()

	provider := &recordingProvider{}
	processor := NewProcessor(provider, nil)

	candidate := model.Candidate{
		Name:            "alice",
		YearsExperience: 4,
		Skills:          []model.Skill{{Name: "Go", Score: 5}, {Name: "Kubernetes", Score: 4}},
		Experience:      []string{"Backend development at a payments company"},
		Education:       []string{"BSc Computer Science"},
	}
	if err := processor.AddCandidate(context.Background(), candidate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Certifications are empty and must not produce a call.
	if len(provider.calls) != 3 {
		t.Fatalf("expected 3 category calls, got %d", len(provider.calls))
	}

	want := []recordedCall{
		{texts: []string{"Go", "Kubernetes"}, scope: vectorstore.Scope{Category: "candidate_skills", CandidateName: "alice"}},
		{texts: []string{"Backend development at a payments company"}, scope: vectorstore.Scope{Category: "candidate_experience", CandidateName: "alice"}},
		{texts: []string{"BSc Computer Science"}, scope: vectorstore.Scope{Category: "candidate_education", CandidateName: "alice"}},
	}
	for i, call := range provider.calls {
		if call.scope != want[i].scope {
			t.Fatalf("call %d: expected scope %+v, got %+v", i, want[i].scope, call.scope)
		}
		if len(call.texts) != len(want[i].texts) {
			t.Fatalf("call %d: expected %d texts, got %d", i, len(want[i].texts), len(call.texts))
		}
		for j, text := range call.texts {
			if text != want[i].texts[j] {
				t.Fatalf("call %d text %d: expected %q, got %q", i, j, want[i].texts[j], text)
			}
		}
	}
}

func TestAddCandidateRejectsInvalid(t *testing.T) {
	t.Parallel()

	provider := &recordingProvider{}
	processor := NewProcessor(provider, nil)

	err := processor.AddCandidate(context.Background(), model.Candidate{Name: "   "})
	if err == nil {
		t.Fatal("expected validation error for blank name")
	}
	if len(provider.calls) != 0 {
		t.Fatalf("invalid candidate must not be stored, got %d calls", len(provider.calls))
	}
}

func TestAddCandidatesStopsOnError(t *testing.T) {
	t.Parallel()

	providerErr := errors.New("store unavailable")
	provider := &recordingProvider{err: providerErr}
	processor := NewProcessor(provider, nil)

	candidates := []model.Candidate{
		{Name: "alice", Skills: []model.Skill{{Name: "Go", Score: 5}}},
		{Name: "bob", Skills: []model.Skill{{Name: "Java", Score: 3}}},
	}
	err := processor.AddCandidates(context.Background(), candidates)
	if !errors.Is(err, providerErr) {
		t.Fatalf("expected provider error to propagate, got %v", err)
	}
}

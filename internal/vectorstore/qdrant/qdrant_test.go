package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkovalenko/cvrank/internal/vectorstore"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := New(Config{URL: server.URL, APIKey: "test-key", Collection: "cvrank"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return store
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Collection: "cvrank"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := New(Config{URL: "http://localhost:6333"}); err == nil {
		t.Fatal("expected error for missing collection")
	}
}

func TestEnsureCollection(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/cvrank" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("api-key"); got != "test-key" {
			t.Errorf("expected api-key header, got %q", got)
		}

		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body.Vectors.Size != 768 || body.Vectors.Distance != "Cosine" {
			t.Errorf("unexpected collection config: %+v", body.Vectors)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := store.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.EnsureCollection(context.Background(), 0); err == nil {
		t.Fatal("expected error for invalid dimension")
	}
}

func TestEnsureCollectionToleratesExisting(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	if err := store.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("existing collection must not be an error, got %v", err)
	}
}

func TestUpsertPayload(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/cvrank/points" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Errorf("expected wait=true, got %s", r.URL.RawQuery)
		}

		var body struct {
			Points []struct {
				ID      string         `json:"id"`
				Vector  []float64      `json:"vector"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if len(body.Points) != 1 {
			t.Fatalf("expected 1 point, got %d", len(body.Points))
		}
		p := body.Points[0]
		if p.ID != "p1" || p.Payload[vectorstore.PayloadText] != "Go" {
			t.Errorf("unexpected point: %+v", p)
		}
		if p.Payload[vectorstore.PayloadCategory] != "candidate_skills" {
			t.Errorf("item payload not merged: %+v", p.Payload)
		}
		w.WriteHeader(http.StatusOK)
	})

	err := store.Upsert(context.Background(), []vectorstore.Point{{
		ID:      "p1",
		Vector:  []float64{1, 0},
		Text:    "Go",
		Payload: map[string]any{vectorstore.PayloadCategory: "candidate_skills"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, found, err := store.Fetch(context.Background(), "missing")
	if err != nil {
		t.Fatalf("a missing point is not an error, got %v", err)
	}
	if found {
		t.Fatal("expected found=false")
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/cvrank/points/p1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"vector":  []float64{1, 0},
				"payload": map[string]any{vectorstore.PayloadText: "Go", "skill_score": 4},
			},
		})
	})

	point, found, err := store.Fetch(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || point.Text != "Go" || len(point.Vector) != 2 {
		t.Fatalf("unexpected point: found=%v %+v", found, point)
	}
}

func TestQuery(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/cvrank/points/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var body struct {
			Limit  int `json:"limit"`
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body.Limit != 5 {
			t.Errorf("expected limit 5, got %d", body.Limit)
		}
		if len(body.Filter.Must) != 2 {
			t.Fatalf("expected category and candidate filters, got %+v", body.Filter.Must)
		}
		if body.Filter.Must[0].Key != vectorstore.PayloadCategory || body.Filter.Must[0].Match.Value != "candidate_skills" {
			t.Errorf("unexpected category filter: %+v", body.Filter.Must[0])
		}
		if body.Filter.Must[1].Key != vectorstore.PayloadCandidateName || body.Filter.Must[1].Match.Value != "alice" {
			t.Errorf("unexpected candidate filter: %+v", body.Filter.Must[1])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"score": 0.9, "payload": map[string]any{vectorstore.PayloadText: "Golang"}},
				{"score": 0.5, "payload": map[string]any{vectorstore.PayloadText: "Java"}},
			},
		})
	})

	scope := vectorstore.Scope{Category: "candidate_skills", CandidateName: "alice"}
	matches, err := store.Query(context.Background(), []float64{1, 0}, scope, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	// Qdrant reports cosine similarity; matches carry distance.
	if got := matches[0].Distance; got < 0.0999 || got > 0.1001 {
		t.Fatalf("expected distance 0.1, got %f", got)
	}
	if matches[0].Text != "Golang" {
		t.Fatalf("unexpected first match %q", matches[0].Text)
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/cvrank/points/count" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if _, ok := body["filter"]; ok {
			t.Errorf("total count must not carry a filter: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": 42}})
	})

	count, err := store.Count(context.Background(), vectorstore.Scope{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Fatalf("expected 42, got %d", count)
	}
}

func TestCountScoped(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Exact  bool `json:"exact"`
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if !body.Exact {
			t.Error("expected an exact count")
		}
		if len(body.Filter.Must) != 1 || body.Filter.Must[0].Key != vectorstore.PayloadCategory || body.Filter.Must[0].Match.Value != "job_skills" {
			t.Errorf("unexpected count filter: %+v", body.Filter.Must)
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": 7}})
	})

	count, err := store.Count(context.Background(), vectorstore.Scope{Category: "job_skills"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7, got %d", count)
	}
}

func TestClearToleratesMissingCollection(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	})
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("clearing an absent collection must not fail, got %v", err)
	}
}

// Package qdrant implements the vector store on top of the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dkovalenko/cvrank/internal/vectorstore"
)

const defaultTimeout = 15 * time.Second

// Store is a minimal REST client to Qdrant. Collections use cosine distance;
// the distance reported in matches is 1 minus the cosine score.
type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection name is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 409 when the collection already exists.
	err := s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
	if err != nil && !errors.Is(err, errConflict) {
		return err
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	items := make([]map[string]any, len(points))
	for i, p := range points {
		payload := map[string]any{vectorstore.PayloadText: p.Text}
		for k, v := range p.Payload {
			payload[k] = v
		}
		items[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": payload,
		}
	}
	body := map[string]any{"points": items}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
}

func (s *Store) Fetch(ctx context.Context, id string) (vectorstore.Point, bool, error) {
	var resp struct {
		Result struct {
			Payload map[string]any `json:"payload"`
			Vector  []float64      `json:"vector"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/%s", s.url, s.collection, id)
	err := s.do(ctx, http.MethodGet, url, nil, &resp)
	if errors.Is(err, errNotFound) {
		return vectorstore.Point{}, false, nil
	}
	if err != nil {
		return vectorstore.Point{}, false, err
	}

	text, _ := resp.Result.Payload[vectorstore.PayloadText].(string)
	return vectorstore.Point{
		ID:      id,
		Vector:  resp.Result.Vector,
		Text:    text,
		Payload: resp.Result.Payload,
	}, true, nil
}

func (s *Store) Query(ctx context.Context, vector []float64, scope vectorstore.Scope, topK int) ([]vectorstore.Match, error) {
	if topK <= 0 {
		topK = 3
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter":       scopeFilter(scope),
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, err
	}

	matches := make([]vectorstore.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		text, _ := r.Payload[vectorstore.PayloadText].(string)
		matches = append(matches, vectorstore.Match{
			Text:     text,
			Distance: 1 - r.Score,
			Payload:  r.Payload,
		})
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context, scope vectorstore.Scope) (int, error) {
	body := map[string]any{"exact": true}
	if scope != (vectorstore.Scope{}) {
		body["filter"] = scopeFilter(scope)
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection)
	if err := s.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Store) Clear(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", s.url, s.collection)
	err := s.do(ctx, http.MethodDelete, url, nil, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

func scopeFilter(scope vectorstore.Scope) map[string]any {
	must := make([]map[string]any, 0, 2)
	if scope.Category != "" {
		must = append(must, map[string]any{
			"key":   vectorstore.PayloadCategory,
			"match": map[string]any{"value": scope.Category},
		})
	}
	if scope.CandidateName != "" {
		must = append(must, map[string]any{
			"key":   vectorstore.PayloadCandidateName,
			"match": map[string]any{"value": scope.CandidateName},
		})
	}
	return map[string]any{"must": must}
}

var (
	errNotFound = errors.New("not found")
	errConflict = errors.New("already exists")
)

func (s *Store) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusConflict:
		return errConflict
	case resp.StatusCode >= 300:
		return fmt.Errorf("qdrant %s %s: %s", method, url, resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding qdrant response: %w", err)
		}
	}
	return nil
}

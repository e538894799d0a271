// Package openai implements the embedder against OpenAI-compatible embedding
// APIs, including Azure OpenAI deployments.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dkovalenko/cvrank/internal/util"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 30 * time.Second
	maxRetries     = 5
)

// Embedder is an OpenAI-compatible embeddings client with retry and backoff.
type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	apiVersion string
	client     *http.Client
}

// Config configures the embeddings client. Setting APIVersion switches the
// client to Azure deployment-style URLs and the api-key header.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	APIVersion string
	Timeout    time.Duration
}

func New(cfg Config) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Embedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (e *Embedder) Name() string { return "openai" }

func (e *Embedder) Model() string { return e.model }

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts to embed")
	}

	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding embeddings request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		vectors, retryAfter, err := e.request(ctx, body, len(texts))
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !errors.Is(err, errRetryable) || attempt == maxRetries {
			break
		}

		delay := retryAfter
		if delay == 0 {
			delay = backoff(attempt)
		}
		if err := util.WaitFor(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

var errRetryable = errors.New("retryable")

func (e *Embedder) request(ctx context.Context, body []byte, want int) ([][]float64, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiVersion != "" {
		req.Header.Set("api-key", e.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		var retryAfter time.Duration
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, fmt.Errorf("%w: embeddings request failed: %s", errRetryable, resp.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("embeddings request failed: %s", resp.Status)
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("decoding embeddings response: %w", err)
	}
	if len(out.Data) != want {
		return nil, 0, fmt.Errorf("api returned %d embeddings for %d texts", len(out.Data), want)
	}

	vectors := make([][]float64, want)
	for _, item := range out.Data {
		if item.Index < 0 || item.Index >= want {
			return nil, 0, fmt.Errorf("api returned embedding with index %d out of range", item.Index)
		}
		if len(item.Embedding) == 0 {
			return nil, 0, errors.New("api returned an empty embedding")
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, 0, fmt.Errorf("api returned no embedding for text %d", i)
		}
	}
	return vectors, 0, nil
}

// endpoint builds the embeddings URL. Azure uses per-deployment paths with an
// api-version query parameter.
func (e *Embedder) endpoint() string {
	if e.apiVersion != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s", e.baseURL, e.model, e.apiVersion)
	}
	return fmt.Sprintf("%s/embeddings", e.baseURL)
}

func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

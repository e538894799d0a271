package embedding

import "context"

// Embedder turns texts into vectors. The returned slice preserves the order
// and length of the input. Failures are propagated to the caller.
type Embedder interface {
	Name() string
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

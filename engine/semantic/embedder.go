package semantic

import "context"

// Embedder maps text to fixed-dimension vectors. Implementations are
// deterministic for a fixed model version (same text, same vector) and
// perform no internal retries; a caller that wants backoff owns it.
type Embedder interface {
	// EmbedBatch returns one vector per input text, order-preserving.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dims is the vector dimension of the configured model.
	Dims() int
}

// Package semantic owns the knowledge store: (chunk, vector) pairs with
// metadata, persisted across restarts, queried by cosine similarity with
// exact-match and range filters applied before ranking.
package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

// Payload keys every stored chunk carries. Additional metadata keys
// (project_type, voltage_class, ...) pass through untouched.
const (
	KeyContent = "content"
	KeyDocID   = "doc_id"
	KeySection = "section"
	KeySeq     = "seq"
	KeyStart   = "start"
	KeyEnd     = "end"
)

// VectorRecord is a single vector to store, keyed by a deterministic ID
// derived from chunk identity so re-ingestion replaces rather than
// duplicates.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}

// SearchResult is a single similarity hit. Score is the raw cosine
// similarity in [-1, 1]; normalisation is the retriever's concern.
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Content string            `json:"content"`
	DocID   string            `json:"doc_id"`
	Section string            `json:"section"`
	Seq     int               `json:"seq"`
	Start   int               `json:"start"`
	End     int               `json:"end"`
	Meta    map[string]string `json:"meta"`
}

// Range is an inclusive numeric bound; nil ends are open.
type Range struct {
	GTE *float64
	LTE *float64
}

// Filter restricts a search before ranking. All conditions must hold
// (conjunction); evaluation is exact, never approximate.
type Filter struct {
	Match map[string]string
	Range map[string]Range
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool { return len(f.Match) == 0 && len(f.Range) == 0 }

// Store is the knowledge-store contract shared by the Qdrant and local
// implementations.
type Store interface {
	// EnsureReady prepares the collection for vectors of the given
	// dimension, creating it if needed.
	EnsureReady(ctx context.Context, dims int) error
	// Upsert stores records, replacing any existing record with the same ID.
	Upsert(ctx context.Context, records []VectorRecord) error
	// Search returns the topK records passing filter, ordered by descending
	// cosine similarity with ties broken by original insertion order.
	Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]SearchResult, error)
	// DeleteBySource removes every record of one source document.
	DeleteBySource(ctx context.Context, docID string) error
	// Count returns the number of stored records.
	Count(ctx context.Context) (uint64, error)
	Close() error
}

// unavailable tags a persistence-layer failure with the dependency-error
// sentinel so callers can classify it without string matching.
func unavailable(op string, err error) error {
	return fmt.Errorf("semantic: %s: %w", op, errors.Join(domain.ErrStoreUnavailable, err))
}

// Package rag retrieves evidence passages for earthing studies. It embeds
// a query, searches the vector store, and post-processes the hits into a
// ranked, deduplicated evidence list. There is no generation step; the
// evidence is the product.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
	"github.com/EarthmarkAI/earthmark-mvp/engine/semantic"
)

// Searcher abstracts the vector store search surface.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, filter semantic.Filter) ([]semantic.SearchResult, error)
}

// Options configures retrieval behaviour.
type Options struct {
	TopK int
	// MinSimilarity floors the normalized score; hits below it are
	// dropped even when fewer than TopK remain.
	MinSimilarity float64
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		MinSimilarity: 0.6,
		SearchTimeout: 5 * time.Second,
	}
}

// Service is the evidence retriever.
type Service struct {
	embed  semantic.Embedder
	search Searcher
	opts   Options
	logger *slog.Logger
}

// New creates a retriever Service.
func New(embed semantic.Embedder, search Searcher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	return &Service{embed: embed, search: search, opts: opts, logger: logger}
}

// Evidence is one retrieved passage with its provenance.
type Evidence struct {
	DocID   string            `json:"doc_id"`
	Section string            `json:"section"`
	Seq     int               `json:"seq"`
	Start   int               `json:"start"`
	End     int               `json:"end"`
	Content string            `json:"content"`
	Score   float64           `json:"score"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Normalize maps raw cosine similarity in [-1, 1] onto [0, 1].
func Normalize(cos float32) float64 {
	s := (1 + float64(cos)) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Retrieve embeds the query and returns the top evidence passages above
// the similarity floor, deduplicated by overlapping source spans. Filter
// restricts the search to matching payload fields. On a store failure the
// evidence list is empty and the error reports the cause; callers decide
// whether a study proceeds without evidence.
func (s *Service) Retrieve(ctx context.Context, query string, filter semantic.Filter) ([]Evidence, error) {
	vecs, err := s.embed.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("rag: embed query: got %d vectors: %w", len(vecs), domain.ErrEmbedderUnavailable)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	// Over-fetch so the floor and the dedup still leave TopK candidates.
	raw, err := s.search.Search(searchCtx, vecs[0], s.opts.TopK*3, filter)
	if err != nil {
		return []Evidence{}, fmt.Errorf("rag: semantic search: %w", err)
	}

	evidence := s.rank(raw)
	s.logger.Info("rag retrieve done", "hits", len(raw), "evidence", len(evidence))
	return evidence, nil
}

// SimilarProjects retrieves evidence from projects matching the
// fingerprint. The query embedding still ranks the hits, but only chunks
// carrying the fingerprint metadata are candidates.
func (s *Service) SimilarProjects(ctx context.Context, query string, fp domain.ProjectFingerprint) ([]Evidence, error) {
	match := map[string]string{}
	if fp.VoltageClass != "" {
		match["voltage_class"] = fp.VoltageClass
	}
	if fp.ProjectType != "" {
		match["project_type"] = fp.ProjectType
	}
	return s.Retrieve(ctx, query, semantic.Filter{Match: match})
}

// rank normalizes scores, applies the floor, drops span overlaps, and
// truncates to TopK. Input is already sorted by raw score descending.
func (s *Service) rank(raw []semantic.SearchResult) []Evidence {
	evidence := make([]Evidence, 0, s.opts.TopK)
	for _, r := range raw {
		score := Normalize(r.Score)
		if score < s.opts.MinSimilarity {
			continue
		}
		ev := Evidence{
			DocID:   r.DocID,
			Section: r.Section,
			Seq:     r.Seq,
			Start:   r.Start,
			End:     r.End,
			Content: r.Content,
			Score:   score,
			Meta:    r.Meta,
		}
		if overlapsKept(evidence, ev) {
			continue
		}
		evidence = append(evidence, ev)
		if len(evidence) == s.opts.TopK {
			break
		}
	}
	return evidence
}

// overlapsKept reports whether ev shares source bytes with an already
// kept passage. Kept passages rank higher, so the overlap loses.
func overlapsKept(kept []Evidence, ev Evidence) bool {
	for _, k := range kept {
		if k.DocID != ev.DocID {
			continue
		}
		if ev.Start < k.End && k.Start < ev.End {
			return true
		}
	}
	return false
}

package semantic

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

func init() {
	// Payload values cross the gob boundary as interface values.
	gob.Register(map[string]any{})
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(false)
	gob.Register("")
}

// MemoryStore is a brute-force cosine Store for local mode and tests. It
// keeps every record in memory and, when given a snapshot path, writes the
// whole collection to a single gob file after each mutation so the corpus
// survives a restart. Backup/restore is copying that file.
type MemoryStore struct {
	mu      sync.RWMutex
	dims    int
	byID    map[string]int // record ID -> slot in records
	records []VectorRecord // insertion order; replaced in place on upsert
	path    string         // "" disables snapshots
}

var _ Store = (*MemoryStore)(nil)

// memSnapshot is the on-disk layout of a MemoryStore.
type memSnapshot struct {
	Dims    int
	Records []VectorRecord
}

// NewMemory creates a MemoryStore. A non-empty snapshotPath loads any
// existing snapshot and enables persistence.
func NewMemory(snapshotPath string) (*MemoryStore, error) {
	s := &MemoryStore{byID: make(map[string]int), path: snapshotPath}
	if snapshotPath == "" {
		return s, nil
	}
	f, err := os.Open(snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, unavailable("open snapshot", err)
	}
	defer f.Close()

	var snap memSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, unavailable("decode snapshot", err)
	}
	s.dims = snap.Dims
	s.records = snap.Records
	for i, r := range s.records {
		s.byID[r.ID] = i
	}
	return s, nil
}

// EnsureReady fixes the vector dimension. Changing the dimension of a
// non-empty store is an integrity error, not a silent re-index.
func (s *MemoryStore) EnsureReady(_ context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("semantic: dims %d: %w", dims, domain.ErrDimensionMismatch)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dims != 0 && s.dims != dims && len(s.records) > 0 {
		return fmt.Errorf("semantic: store holds %d-dim vectors, requested %d: %w", s.dims, dims, domain.ErrDimensionMismatch)
	}
	s.dims = dims
	return nil
}

// Upsert stores records, replacing by ID in place so the original
// insertion order (and with it the search tie-break) is stable across
// re-ingestion.
func (s *MemoryStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if s.dims != 0 && len(r.Embedding) != s.dims {
			return fmt.Errorf("semantic: record %s has %d dims, store has %d: %w",
				r.ID, len(r.Embedding), s.dims, domain.ErrDimensionMismatch)
		}
		if i, ok := s.byID[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.byID[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return s.snapshotLocked()
}

// Search scans every record passing the filter and returns the topK by
// cosine similarity, ties broken by insertion order.
func (s *MemoryStore) Search(_ context.Context, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dims != 0 && len(embedding) != s.dims {
		return nil, fmt.Errorf("semantic: query has %d dims, store has %d: %w",
			len(embedding), s.dims, domain.ErrDimensionMismatch)
	}

	type hit struct {
		idx   int
		score float32
	}
	var hits []hit
	for i, r := range s.records {
		if !matches(r.Payload, filter) {
			continue
		}
		hits = append(hits, hit{idx: i, score: cosine(embedding, r.Embedding)})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].idx < hits[b].idx
	})
	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = toResult(s.records[h.idx], h.score)
	}
	return results, nil
}

// DeleteBySource removes every record whose doc_id payload matches.
func (s *MemoryStore) DeleteBySource(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if payloadString(r.Payload[KeyDocID]) != docID {
			kept = append(kept, r)
		}
	}
	s.records = kept
	s.byID = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.byID[r.ID] = i
	}
	return s.snapshotLocked()
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records)), nil
}

// Close writes a final snapshot.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked writes the collection atomically (temp file + rename).
// Must hold mu.
func (s *MemoryStore) snapshotLocked() error {
	if s.path == "" {
		return nil
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return unavailable("write snapshot", err)
	}
	err = gob.NewEncoder(f).Encode(memSnapshot{Dims: s.dims, Records: s.records})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return unavailable("write snapshot", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return unavailable("write snapshot", err)
	}
	return nil
}

func toResult(r VectorRecord, score float32) SearchResult {
	sr := SearchResult{ID: r.ID, Score: score, Meta: make(map[string]string)}
	for k, v := range r.Payload {
		switch k {
		case KeyContent:
			sr.Content = payloadString(v)
		case KeyDocID:
			sr.DocID = payloadString(v)
		case KeySection:
			sr.Section = payloadString(v)
		case KeySeq:
			sr.Seq = payloadInt(v)
		case KeyStart:
			sr.Start = payloadInt(v)
		case KeyEnd:
			sr.End = payloadInt(v)
		default:
			sr.Meta[k] = payloadString(v)
		}
	}
	return sr
}

// matches evaluates a filter exactly: every match key must compare equal
// and every range key must hold numerically.
func matches(payload map[string]any, f Filter) bool {
	for k, want := range f.Match {
		if payloadString(payload[k]) != want {
			return false
		}
	}
	for k, r := range f.Range {
		v, ok := payloadFloat(payload[k])
		if !ok {
			return false
		}
		if r.GTE != nil && v < *r.GTE {
			return false
		}
		if r.LTE != nil && v > *r.LTE {
			return false
		}
	}
	return true
}

func payloadString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func payloadInt(v any) int {
	switch tv := v.(type) {
	case int:
		return tv
	case int64:
		return int(tv)
	case float64:
		return int(tv)
	}
	return 0
}

func payloadFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case int:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case float64:
		return tv, true
	}
	return 0, false
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(na))) * float32(math.Sqrt(float64(nb))))
}

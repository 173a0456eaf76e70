package rag

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
	"github.com/EarthmarkAI/earthmark-mvp/engine/semantic"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Dims() int { return len(s.vec) }

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

type stubSearcher struct {
	results []semantic.SearchResult
	filter  semantic.Filter
	err     error
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, _ int, filter semantic.Filter) ([]semantic.SearchResult, error) {
	s.filter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func hit(docID string, seq, start, end int, cos float32) semantic.SearchResult {
	return semantic.SearchResult{
		ID:      docID + "-chunk",
		Score:   cos,
		Content: "evidence text",
		DocID:   docID,
		Section: "Body",
		Seq:     seq,
		Start:   start,
		End:     end,
	}
}

func newService(search Searcher, opts Options) *Service {
	return New(&stubEmbedder{vec: []float32{1, 0}}, search, opts, nil)
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		cos  float32
		want float64
	}{
		{1, 1},
		{0, 0.5},
		{-1, 0},
		{0.8, 0.9},
	}
	for _, tc := range cases {
		if got := Normalize(tc.cos); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("Normalize(%v) = %v, want %v", tc.cos, got, tc.want)
		}
	}
	if Normalize(1.0000002) > 1 {
		t.Error("float noise above 1 must clamp")
	}
}

func TestRetrieve_RanksAndNormalizes(t *testing.T) {
	search := &stubSearcher{results: []semantic.SearchResult{
		hit("doc1", 0, 0, 100, 1.0),
		hit("doc2", 0, 0, 100, 0.6),
	}}
	svc := newService(search, Options{TopK: 5, MinSimilarity: 0.6})

	evidence, err := svc.Retrieve(context.Background(), "grid resistance target", semantic.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(evidence) != 2 {
		t.Fatalf("got %d evidence, want 2", len(evidence))
	}
	if evidence[0].DocID != "doc1" || math.Abs(evidence[0].Score-1) > 1e-6 {
		t.Errorf("top evidence %+v", evidence[0])
	}
	if math.Abs(evidence[1].Score-0.8) > 1e-6 {
		t.Errorf("cosine 0.6 should normalize to 0.8, got %v", evidence[1].Score)
	}
}

func TestRetrieve_SimilarityFloor(t *testing.T) {
	search := &stubSearcher{results: []semantic.SearchResult{
		hit("doc1", 0, 0, 100, 0.9),  // 0.95 normalized
		hit("doc2", 0, 0, 100, 0.0),  // 0.50
		hit("doc3", 0, 0, 100, -0.5), // 0.25
	}}
	svc := newService(search, Options{TopK: 5, MinSimilarity: 0.6})

	evidence, err := svc.Retrieve(context.Background(), "q", semantic.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(evidence) != 1 || evidence[0].DocID != "doc1" {
		t.Fatalf("floor should leave only doc1, got %+v", evidence)
	}
}

func TestRetrieve_DropsOverlappingSpans(t *testing.T) {
	search := &stubSearcher{results: []semantic.SearchResult{
		hit("doc1", 0, 0, 1000, 0.95),
		hit("doc1", 1, 800, 1800, 0.90),  // overlaps the winner
		hit("doc1", 2, 1800, 2800, 0.85), // touches but does not overlap
		hit("doc2", 0, 0, 1000, 0.80),    // same span, different doc
	}}
	svc := newService(search, Options{TopK: 5, MinSimilarity: 0.5})

	evidence, err := svc.Retrieve(context.Background(), "q", semantic.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(evidence) != 3 {
		t.Fatalf("got %d evidence, want 3: %+v", len(evidence), evidence)
	}
	for _, ev := range evidence {
		if ev.DocID == "doc1" && ev.Seq == 1 {
			t.Error("overlapping lower-scored span survived dedup")
		}
	}
}

func TestRetrieve_TopKTruncates(t *testing.T) {
	var results []semantic.SearchResult
	for i := 0; i < 10; i++ {
		results = append(results, hit("doc1", i, i*1000, i*1000+500, float32(0.9)-float32(i)*0.01))
	}
	svc := newService(&stubSearcher{results: results}, Options{TopK: 3, MinSimilarity: 0.5})

	evidence, err := svc.Retrieve(context.Background(), "q", semantic.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(evidence) != 3 {
		t.Fatalf("got %d evidence, want TopK=3", len(evidence))
	}
}

func TestRetrieve_StoreFailureDegradesGracefully(t *testing.T) {
	search := &stubSearcher{err: domain.ErrStoreUnavailable}
	svc := newService(search, Options{})

	evidence, err := svc.Retrieve(context.Background(), "q", semantic.Filter{})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("got %v, want ErrStoreUnavailable", err)
	}
	if evidence == nil || len(evidence) != 0 {
		t.Errorf("degraded retrieval should return an empty, non-nil list, got %v", evidence)
	}
}

func TestRetrieve_EmbedderFailure(t *testing.T) {
	svc := New(&stubEmbedder{err: domain.ErrEmbedderUnavailable}, &stubSearcher{}, Options{}, nil)
	_, err := svc.Retrieve(context.Background(), "q", semantic.Filter{})
	if !errors.Is(err, domain.ErrEmbedderUnavailable) {
		t.Fatalf("got %v, want ErrEmbedderUnavailable", err)
	}
}

func TestSimilarProjects_FiltersByFingerprint(t *testing.T) {
	search := &stubSearcher{results: []semantic.SearchResult{hit("doc1", 0, 0, 100, 0.9)}}
	svc := newService(search, Options{})

	_, err := svc.SimilarProjects(context.Background(), "earthing design", domain.ProjectFingerprint{
		VoltageClass: "33kV",
		ProjectType:  "substation",
	})
	if err != nil {
		t.Fatal(err)
	}
	if search.filter.Match["voltage_class"] != "33kV" || search.filter.Match["project_type"] != "substation" {
		t.Fatalf("search filter %+v missing fingerprint fields", search.filter)
	}
}

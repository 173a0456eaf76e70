package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

const (
	// DefaultChunkSize is the target chunk length in bytes.
	DefaultChunkSize = 1000
	// DefaultOverlap is the overlap between consecutive chunks in bytes.
	DefaultOverlap = 200
)

// ChunkConfig controls how documents are split.
type ChunkConfig struct {
	Size    int `json:"size" yaml:"size"`
	Overlap int `json:"overlap" yaml:"overlap"`
}

// DefaultChunkConfig returns the standard splitting parameters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: DefaultChunkSize, Overlap: DefaultOverlap}
}

func (c ChunkConfig) validate() error {
	if c.Size <= 0 {
		return domain.NewFieldError("chunker", "chunk_size", c.Size, domain.ErrInvalidChunkConfig)
	}
	if c.Overlap < 0 {
		return domain.NewFieldError("chunker", "overlap", c.Overlap, domain.ErrInvalidChunkConfig)
	}
	if c.Size <= c.Overlap {
		// Overlap >= size would never advance the window.
		return domain.NewFieldError("chunker", "overlap", c.Overlap, domain.ErrInvalidChunkConfig)
	}
	return nil
}

// ChunkDocument splits a document into overlapping, section-aware chunks.
// Splitting happens per section, so a chunk never spans two sections; a
// section at most Size long becomes a single chunk. Sequence numbers run
// across the whole document.
func ChunkDocument(doc Document, cfg ChunkConfig) ([]Chunk, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	sections := doc.Sections
	if len(sections) == 0 {
		sections = []SectionBoundary{{Label: "Document", Start: 0, End: len(doc.Text)}}
	}

	var chunks []Chunk
	seq := 0
	for _, sec := range sections {
		if sec.Start < 0 || sec.End > len(doc.Text) || sec.Start > sec.End {
			return nil, domain.NewFieldError("chunker", "section "+sec.Label, sec, domain.ErrInvalidChunkConfig)
		}
		for _, c := range splitSection(doc, sec, cfg, &seq) {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// splitSection windows one section. The window prefers to end on a
// paragraph break, then a sentence end, a line break, or a word break,
// provided the break still leaves forward progress beyond the overlap.
func splitSection(doc Document, sec SectionBoundary, cfg ChunkConfig, seq *int) []Chunk {
	if strings.TrimSpace(doc.Text[sec.Start:sec.End]) == "" {
		return nil
	}

	emit := func(start, end int) Chunk {
		c := Chunk{
			Text:    doc.Text[start:end],
			DocID:   doc.ID,
			Section: sec.Label,
			Seq:     *seq,
			Start:   start,
			End:     end,
		}
		*seq++
		return c
	}

	if sec.End-sec.Start <= cfg.Size {
		return []Chunk{emit(sec.Start, sec.End)}
	}

	var chunks []Chunk
	start := sec.Start
	for start < sec.End {
		end := start + cfg.Size
		if end >= sec.End {
			end = sec.End
		} else {
			end = breakPoint(doc.Text, start, end, cfg.Overlap)
		}
		chunks = append(chunks, emit(start, end))
		if end >= sec.End {
			break
		}
		start = end - cfg.Overlap
		for !utf8.RuneStart(doc.Text[start]) {
			start++
		}
	}
	return chunks
}

// breakPoint moves the window end back to the latest natural boundary in
// (start+overlap, end], falling back to a hard cut when no boundary
// leaves enough progress for the next window to advance. The hard cut
// backs up to a rune start so chunk text stays valid UTF-8.
func breakPoint(text string, start, end, overlap int) int {
	window := text[start:end]
	floor := overlap + 1 // relative position the break must exceed

	for _, sep := range []string{"\n\n", ". ", "\n", " "} {
		if i := strings.LastIndex(window, sep); i >= 0 {
			pos := i + len(sep)
			if pos >= floor {
				return start + pos
			}
		}
	}

	for end > start+floor && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

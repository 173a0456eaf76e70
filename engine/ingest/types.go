package ingest

import (
	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

// SectionBoundary is one labelled span supplied by the document-parsing
// collaborator. Offsets are byte offsets into Document.Text.
type SectionBoundary struct {
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Document is a parsed historical report ready for ingestion: plain text
// plus section boundaries and report-level metadata.
type Document struct {
	ID          string                    `json:"id"`
	Title       string                    `json:"title"`
	Text        string                    `json:"text"`
	Sections    []SectionBoundary         `json:"sections"`
	Fingerprint domain.ProjectFingerprint `json:"fingerprint"`
	Meta        map[string]string         `json:"meta"`
}

// Chunk is a bounded span of a document. Identity is (DocID, Seq); Text is
// always the exact Text[Start:End] slice of the source so offsets trace
// back to the original bytes.
type Chunk struct {
	Text    string
	DocID   string
	Section string
	Seq     int
	Start   int
	End     int
}

// chunkedDoc is a document split into chunks, mid-pipeline.
type chunkedDoc struct {
	Document
	Chunks []Chunk
}

// embeddedDoc is a chunked document with embeddings, 1:1 with Chunks.
type embeddedDoc struct {
	chunkedDoc
	Embeddings [][]float32
}

// Ingestion outcome per document.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// DocStatus is the per-document entry of a batch ingestion report. A batch
// never aborts on one document's failure; each document gets exactly one
// status.
type DocStatus struct {
	DocID         string `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
	Status        string `json:"status"`
	ErrorDetail   string `json:"error_detail,omitempty"`
}

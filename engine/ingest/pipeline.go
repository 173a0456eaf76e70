// Package ingest provides the document ingestion pipeline: validation,
// chunking, embedding, and vector storage, composed from fn stages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
	"github.com/EarthmarkAI/earthmark-mvp/engine/semantic"
	"github.com/EarthmarkAI/earthmark-mvp/pkg/fn"
)

// DefaultEmbedBatchSize is the max chunks per embedding request.
const DefaultEmbedBatchSize = 100

// Recorder receives a bookkeeping entry after a document lands in the
// vector store. Catalog failures never fail an ingestion.
type Recorder interface {
	RecordDocument(ctx context.Context, id, title string, fp domain.ProjectFingerprint, chunks int) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder semantic.Embedder
	Store    semantic.Store
	Catalog  Recorder // optional
	Logger   *slog.Logger
	Chunk    ChunkConfig
	// EmbedBatchSize caps chunks per embedding call; 0 means the default.
	EmbedBatchSize int
}

func (d Deps) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) batchSize() int {
	if d.EmbedBatchSize > 0 {
		return d.EmbedBatchSize
	}
	return DefaultEmbedBatchSize
}

// --- Pipeline stages ---

// ValidateDoc rejects documents without an ID or without any text.
var ValidateDoc fn.Stage[Document, Document] = func(_ context.Context, doc Document) fn.Result[Document] {
	if strings.TrimSpace(doc.ID) == "" {
		return fn.Err[Document](domain.NewFieldError("ingest", "id", doc.ID, domain.ErrInvalidChunkConfig))
	}
	if strings.TrimSpace(doc.Text) == "" {
		return fn.Err[Document](fmt.Errorf("ingest: document %s has no text", doc.ID))
	}
	return fn.Ok(doc)
}

// NewChunkStage splits the document into section-aware chunks.
func NewChunkStage(cfg ChunkConfig) fn.Stage[Document, chunkedDoc] {
	return func(_ context.Context, doc Document) fn.Result[chunkedDoc] {
		chunks, err := ChunkDocument(doc, cfg)
		if err != nil {
			return fn.Err[chunkedDoc](err)
		}
		if len(chunks) == 0 {
			return fn.Err[chunkedDoc](fmt.Errorf("ingest: document %s produced no chunks", doc.ID))
		}
		return fn.Ok(chunkedDoc{Document: doc, Chunks: chunks})
	}
}

// NewEmbedStage embeds chunks in batches, preserving chunk order.
func NewEmbedStage(embedder semantic.Embedder, batchSize int) fn.Stage[chunkedDoc, embeddedDoc] {
	return func(ctx context.Context, doc chunkedDoc) fn.Result[embeddedDoc] {
		embeddings := make([][]float32, 0, len(doc.Chunks))

		for _, batch := range fn.Chunk(doc.Chunks, batchSize) {
			texts := fn.Map(batch, func(c Chunk) string { return c.Text })
			vecs, err := embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fn.Err[embeddedDoc](fmt.Errorf("embed batch: %w", err))
			}
			if len(vecs) != len(texts) {
				return fn.Err[embeddedDoc](fmt.Errorf("embed batch: got %d vectors for %d texts: %w",
					len(vecs), len(texts), domain.ErrDimensionMismatch))
			}
			embeddings = append(embeddings, vecs...)
		}

		return fn.Ok(embeddedDoc{chunkedDoc: doc, Embeddings: embeddings})
	}
}

// PointID derives the deterministic vector store ID for a chunk, so
// re-ingesting a document overwrites its points instead of duplicating
// them.
func PointID(docID string, seq int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", docID, seq))).String()
}

// NewStoreStage upserts the embedded chunks and records the document in
// the catalog. The catalog write is best-effort.
func NewStoreStage(store semantic.Store, catalog Recorder, log *slog.Logger) fn.Stage[embeddedDoc, DocStatus] {
	return func(ctx context.Context, doc embeddedDoc) fn.Result[DocStatus] {
		records := make([]semantic.VectorRecord, len(doc.Chunks))
		for i, chunk := range doc.Chunks {
			payload := map[string]any{
				semantic.KeyContent: chunk.Text,
				semantic.KeyDocID:   chunk.DocID,
				semantic.KeySection: chunk.Section,
				semantic.KeySeq:     chunk.Seq,
				semantic.KeyStart:   chunk.Start,
				semantic.KeyEnd:     chunk.End,
			}
			if doc.Fingerprint.VoltageClass != "" {
				payload["voltage_class"] = doc.Fingerprint.VoltageClass
			}
			if doc.Fingerprint.ProjectType != "" {
				payload["project_type"] = doc.Fingerprint.ProjectType
			}
			for k, v := range doc.Meta {
				payload[k] = v
			}
			records[i] = semantic.VectorRecord{
				ID:        PointID(chunk.DocID, chunk.Seq),
				Embedding: doc.Embeddings[i],
				Payload:   payload,
			}
		}

		if err := store.Upsert(ctx, records); err != nil {
			return fn.Err[DocStatus](fmt.Errorf("vector upsert: %w", err))
		}

		if catalog != nil {
			if err := catalog.RecordDocument(ctx, doc.ID, doc.Title, doc.Fingerprint, len(doc.Chunks)); err != nil {
				log.Warn("ingest: catalog record failed", "doc_id", doc.ID, "error", err)
			}
		}

		return fn.Ok(DocStatus{DocID: doc.ID, ChunksCreated: len(doc.Chunks), Status: StatusSuccess})
	}
}

// LoggedTap returns a stage that logs entry and exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(_ context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes validate, chunk, embed, and store for one document.
func NewPipeline(deps Deps) fn.Stage[Document, DocStatus] {
	log := deps.log()
	cfg := deps.Chunk
	if cfg == (ChunkConfig{}) {
		cfg = DefaultChunkConfig()
	}

	validated := fn.Then(LoggedTap[Document]("validate", log), fn.TracedStage("ingest.validate", ValidateDoc))
	chunked := fn.Then(validated, fn.Then(LoggedTap[Document]("chunk", log), fn.TracedStage("ingest.chunk", NewChunkStage(cfg))))
	embedded := fn.Then(chunked, fn.Then(LoggedTap[chunkedDoc]("embed", log), fn.TracedStage("ingest.embed", NewEmbedStage(deps.Embedder, deps.batchSize()))))
	stored := fn.Then(embedded, fn.Then(LoggedTap[embeddedDoc]("store", log), fn.TracedStage("ingest.store", NewStoreStage(deps.Store, deps.Catalog, log))))

	return stored
}

// IngestOne runs a single document through the pipeline and always
// returns a DocStatus, converting pipeline errors into a failed status.
func IngestOne(ctx context.Context, doc Document, deps Deps) DocStatus {
	result := NewPipeline(deps)(ctx, doc)
	if result.IsErr() {
		_, err := result.Unwrap()
		status := StatusFailed
		if ctx.Err() != nil {
			status = StatusCancelled
		}
		deps.log().Error("ingest: document failed", "doc_id", doc.ID, "status", status, "error", err)
		return DocStatus{DocID: doc.ID, Status: status, ErrorDetail: err.Error()}
	}
	status, _ := result.Unwrap()
	deps.log().Info("ingest: document stored", "doc_id", status.DocID, "chunks", status.ChunksCreated)
	return status
}

// IngestBatch runs documents through the pipeline with at most workers
// in flight. One document's failure never aborts the batch; every
// document gets exactly one status, in input order. When the context is
// cancelled, in-flight documents finish their current stage and
// unstarted documents are marked cancelled.
func IngestBatch(ctx context.Context, docs []Document, deps Deps, workers int) []DocStatus {
	if workers <= 0 {
		workers = 1
	}
	statuses := fn.ParMap(docs, workers, func(doc Document) DocStatus {
		if ctx.Err() != nil {
			return DocStatus{DocID: doc.ID, Status: StatusCancelled, ErrorDetail: ctx.Err().Error()}
		}
		return IngestOne(ctx, doc, deps)
	})
	return statuses
}

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/EarthmarkAI/earthmark-mvp/pkg/natsutil"
)

const (
	// IngestSubject is the NATS subject for parsed documents awaiting
	// ingestion.
	IngestSubject = "earthmark.ingest.document"
	// StatusSubject receives a DocStatus event per processed document.
	StatusSubject = "earthmark.ingest.status"
	// DLQSubject is the dead letter queue for documents that keep failing.
	DLQSubject = "earthmark.ingest.dlq"
	// MaxRetries before a document goes to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// dlqMessage wraps a document that exhausted its retries.
type dlqMessage struct {
	Document Document `json:"document"`
	Error    string   `json:"error"`
	Retries  int      `json:"retries"`
}

// StartConsumer subscribes to IngestSubject and runs each document
// through the pipeline. Input errors go straight to the DLQ; dependency
// errors are re-published with an incremented retry count until
// MaxRetries, then dead-lettered. A status event is published either way.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	log := deps.log()

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var doc Document
		if err := json.Unmarshal(msg.Data, &doc); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()
		status := IngestOne(ctx, doc, deps)

		if status.Status == StatusSuccess {
			publishStatus(ctx, nc, log, status)
			ackIfNeeded(msg)
			return
		}

		retries := retryCount(msg) + 1
		retryable := status.Status == StatusFailed && !isInputFailure(doc, deps)

		if !retryable || retries >= MaxRetries {
			dlq := dlqMessage{Document: doc, Error: status.ErrorDetail, Retries: retries}
			if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
				log.Error("ingest: DLQ publish failed", "doc_id", doc.ID, "error", err)
			}
		} else {
			retryMsg := nats.NewMsg(IngestSubject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				log.Error("ingest: retry publish failed", "doc_id", doc.ID, "error", err)
			}
		}

		publishStatus(ctx, nc, log, status)
		ackIfNeeded(msg)
	})
}

// isInputFailure re-runs the cheap local stages to tell a malformed
// document from a failing dependency. Retrying bad input never helps.
func isInputFailure(doc Document, deps Deps) bool {
	if r := ValidateDoc(context.Background(), doc); r.IsErr() {
		return true
	}
	cfg := deps.Chunk
	if cfg == (ChunkConfig{}) {
		cfg = DefaultChunkConfig()
	}
	if _, err := ChunkDocument(doc, cfg); err != nil {
		return true
	}
	return false
}

func publishStatus(ctx context.Context, nc *nats.Conn, log *slog.Logger, status DocStatus) {
	if err := natsutil.Publish(ctx, nc, StatusSubject, status); err != nil {
		log.Warn("ingest: status publish failed", "doc_id", status.DocID, "error", err)
	}
}

func retryCount(msg *nats.Msg) int {
	if msg.Header == nil {
		return 0
	}
	n := 0
	if v := msg.Header.Get(retryHeader); v != "" {
		fmt.Sscanf(v, "%d", &n)
	}
	return n
}

func ackIfNeeded(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Ack()
	}
}

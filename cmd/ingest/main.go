// Command ingest is the ingestion worker. It consumes parsed documents
// from NATS and, optionally, watches a directory for document JSON files,
// running both through the chunk/embed/store pipeline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/EarthmarkAI/earthmark-mvp/engine/catalog"
	"github.com/EarthmarkAI/earthmark-mvp/engine/ingest"
	"github.com/EarthmarkAI/earthmark-mvp/engine/semantic"
	"github.com/EarthmarkAI/earthmark-mvp/pkg/metrics"
	"github.com/EarthmarkAI/earthmark-mvp/pkg/ollama"
)

var met = metrics.New()

var (
	mDocsTotal      = met.Counter("earthmark_ingest_docs_total", "Documents ingested")
	mDocsFailed     = met.Counter("earthmark_ingest_docs_failed_total", "Documents that failed ingestion")
	mChunksTotal    = met.Counter("earthmark_ingest_chunks_total", "Chunks created")
	mFilesProcessed = met.Counter("earthmark_ingest_files_processed_total", "Files processed")
	mActiveDocs     = met.Gauge("earthmark_ingest_active_docs", "Documents currently in the pipeline")
	mLastScan       = met.Gauge("earthmark_ingest_last_scan_timestamp", "Epoch of last directory scan")
	mPipelineDur    = met.Histogram("earthmark_ingest_pipeline_seconds", "Per-document pipeline time", nil)
)

func main() {
	var (
		dataDir     = flag.String("dir", "", "directory to watch for document JSON files (empty disables)")
		natsURL     = flag.String("nats", "nats://localhost:4222", "NATS server URL (empty disables)")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", ollama.DefaultModel, "Ollama embedding model")
		ollamaRPS   = flag.Float64("ollama-rps", 0, "Ollama request rate limit (0 disables)")
		neo4jURI    = flag.String("neo4j", "bolt://localhost:7687", "Neo4j bolt URI (empty disables catalog)")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "", "Neo4j password")
		storeType   = flag.String("store", "qdrant", "vector store backend: qdrant or memory")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "earthing_evidence", "Qdrant collection name")
		snapshot    = flag.String("snapshot", "", "memory store snapshot path")
		chunkSize   = flag.Int("chunk-size", ingest.DefaultChunkSize, "chunk size in bytes")
		overlap     = flag.Int("overlap", ingest.DefaultOverlap, "chunk overlap in bytes")
		workers     = flag.Int("workers", 4, "concurrent documents per batch")
		interval    = flag.Duration("interval", 30*time.Second, "directory scan interval")
		stateFile   = flag.String("state", "", "processed files state (defaults to <dir>/.ingest-state.json)")
		metricsAddr = flag.String("metrics", ":9100", "metrics listen address")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	met.ServeAsync(*metricsAddr, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// --- Vector store ---
	var (
		store semantic.Store
		err   error
	)
	switch *storeType {
	case "memory":
		store, err = semantic.NewMemory(*snapshot)
	case "qdrant":
		store, err = semantic.NewQdrant(*qdrantAddr, *collection)
	default:
		log.Error("unknown store type", "store", *storeType)
		os.Exit(1)
	}
	if err != nil {
		log.Error("store connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// --- Embedder ---
	var embedOpts []ollama.Option
	if *ollamaRPS > 0 {
		embedOpts = append(embedOpts, ollama.WithRateLimit(*ollamaRPS, 1))
	}
	embedder := ollama.NewEmbedClient(*ollamaURL, *ollamaModel, embedOpts...)

	if err := store.EnsureReady(ctx, embedder.Dims()); err != nil {
		log.Error("store ensure failed", "error", err)
		os.Exit(1)
	}
	log.Info("store ready", "type", *storeType, "dims", embedder.Dims())

	// --- Catalog ---
	deps := ingest.Deps{
		Embedder: embedder,
		Store:    store,
		Logger:   log,
		Chunk:    ingest.ChunkConfig{Size: *chunkSize, Overlap: *overlap},
	}
	if *neo4jURI != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURI, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			log.Warn("neo4j connect failed, catalog disabled", "error", err)
		} else {
			defer driver.Close(ctx)
			if err := driver.VerifyConnectivity(ctx); err != nil {
				log.Warn("neo4j verify failed, catalog disabled", "error", err)
			} else {
				deps.Catalog = catalog.New(driver)
				log.Info("connected to Neo4j")
			}
		}
	}

	// --- NATS consumer ---
	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL, nats.Name("earthmark-ingest"))
		if err != nil {
			log.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()

		sub, err := ingest.StartConsumer(nc, deps)
		if err != nil {
			log.Error("nats subscribe failed", "error", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()
		log.Info("consuming documents", "subject", ingest.IngestSubject)
	}

	// --- Directory watcher ---
	if *dataDir == "" {
		<-ctx.Done()
		log.Info("shutting down")
		return
	}

	if *stateFile == "" {
		*stateFile = filepath.Join(*dataDir, ".ingest-state.json")
	}
	processed := loadState(*stateFile)
	os.MkdirAll(*dataDir, 0o755)
	log.Info("watching for documents", "dir", *dataDir, "interval", *interval)

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		entries, err := os.ReadDir(*dataDir)
		if err != nil {
			log.Error("readdir failed", "error", err)
			return
		}

		var paths []string
		keys := map[string]string{}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name()[0] == '.' {
				continue
			}
			info, _ := e.Info()
			size := int64(0)
			if info != nil {
				size = info.Size()
			}
			key := fmt.Sprintf("%s:%d", e.Name(), size)
			if processed[key] {
				continue
			}
			path := filepath.Join(*dataDir, e.Name())
			paths = append(paths, path)
			keys[path] = key
		}
		if len(paths) == 0 {
			return
		}

		mActiveDocs.Set(int64(len(paths)))
		start := time.Now()
		statuses := ingest.IngestPaths(ctx, paths, deps, *workers)
		mPipelineDur.Since(start)
		mActiveDocs.Set(0)

		failedDocs := map[string]bool{}
		for _, s := range statuses {
			switch s.Status {
			case ingest.StatusSuccess:
				mDocsTotal.Inc()
				mChunksTotal.Add(int64(s.ChunksCreated))
			default:
				mDocsFailed.Inc()
				failedDocs[s.DocID] = true
				log.Warn("document not ingested", "doc_id", s.DocID, "status", s.Status, "error", s.ErrorDetail)
			}
		}

		// A file is done only when every document in it succeeded, so
		// failures retry on the next scan.
		for _, path := range paths {
			mFilesProcessed.Inc()
			if fileFailed(path, failedDocs) {
				continue
			}
			processed[keys[path]] = true
		}
		saveState(*stateFile, processed)
	}

	scan()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

// fileFailed reports whether the document in a file is among the failed
// IDs. Loader falls back to the base name as the document ID, so both are
// checked.
func fileFailed(path string, failed map[string]bool) bool {
	if failed[filepath.Base(path)] {
		return true
	}
	doc, err := ingest.LoadDocument(path)
	if err != nil {
		return true
	}
	return failed[doc.ID]
}

func loadState(path string) map[string]bool {
	m := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	json.Unmarshal(data, &m)
	return m
}

func saveState(path string, m map[string]bool) {
	data, _ := json.Marshal(m)
	os.WriteFile(path, data, 0o644)
}

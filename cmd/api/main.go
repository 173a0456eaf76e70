// Package main implements the Earthmark API server: earthing calculations,
// evidence retrieval, and synchronous document ingestion.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/EarthmarkAI/earthmark-mvp/engine/calc"
	"github.com/EarthmarkAI/earthmark-mvp/engine/catalog"
	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
	"github.com/EarthmarkAI/earthmark-mvp/engine/ingest"
	"github.com/EarthmarkAI/earthmark-mvp/engine/rag"
	"github.com/EarthmarkAI/earthmark-mvp/engine/semantic"
	"github.com/EarthmarkAI/earthmark-mvp/pkg/config"
	"github.com/EarthmarkAI/earthmark-mvp/pkg/fn"
	"github.com/EarthmarkAI/earthmark-mvp/pkg/metrics"
	"github.com/EarthmarkAI/earthmark-mvp/pkg/mid"
	"github.com/EarthmarkAI/earthmark-mvp/pkg/natsutil"
	"github.com/EarthmarkAI/earthmark-mvp/pkg/ollama"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(envOr("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Embedder ---
	var embedOpts []ollama.Option
	if cfg.Embedder.RateLimit > 0 {
		embedOpts = append(embedOpts, ollama.WithRateLimit(cfg.Embedder.RateLimit, cfg.Embedder.RateBurst))
	}
	if cfg.Embedder.Dims > 0 {
		embedOpts = append(embedOpts, ollama.WithDims(cfg.Embedder.Dims))
	}
	embedOpts = append(embedOpts, ollama.WithHTTPClient(&http.Client{
		Timeout: time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	}))
	embedder := ollama.NewEmbedClient(cfg.Embedder.BaseURL, cfg.Embedder.Model, embedOpts...)

	// --- Vector store ---
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ready := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[struct{}] {
		return fn.FromPair(struct{}{}, store.EnsureReady(ctx, embedder.Dims()))
	})
	if _, err := ready.Unwrap(); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}

	// --- Catalog (optional; the API degrades to store-only stats) ---
	var cat *catalog.Catalog
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		logger.Warn("neo4j unavailable, catalog disabled", "err", err)
	} else {
		defer driver.Close(ctx)
		cat = catalog.New(driver)
	}

	// --- Services ---
	retriever := rag.New(embedder, store, rag.Options{
		TopK:          cfg.Retriever.TopK,
		MinSimilarity: cfg.Retriever.MinSimilarity,
		SearchTimeout: cfg.RetrieverTimeout(),
	}, logger)

	ingestDeps := ingest.Deps{
		Embedder: embedder,
		Store:    store,
		Logger:   logger,
		Chunk:    ingest.ChunkConfig{Size: cfg.Chunker.Size, Overlap: cfg.Chunker.Overlap},
	}
	if cat != nil {
		ingestDeps.Catalog = cat
	}

	reg := metrics.New()
	srvMetrics := apiMetrics{
		calculations: reg.Counter("earthmark_calculations_total", "Compliance evaluations served"),
		retrievals:   reg.Counter("earthmark_retrievals_total", "Evidence retrievals served"),
		latency:      reg.Histogram("earthmark_request_seconds", "Request latency", nil),
	}
	reg.ServeAsync(cfg.MetricsAddr, logger)

	// --- NATS (optional; mirrors the ingest worker's status feed) ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("earthmark-api"))
		if err != nil {
			logger.Warn("nats unavailable, worker status feed disabled", "err", err)
		} else {
			defer nc.Drain()
			if _, err := natsutil.Subscribe(nc, ingest.StatusSubject, recordWorkerStatus(reg)); err != nil {
				logger.Warn("worker status subscription failed", "err", err)
			}
		}
	}

	api := &server{
		store:     store,
		catalog:   cat,
		retriever: retriever,
		ingest:    ingestDeps,
		workers:   cfg.Workers,
		logger:    logger,
		metrics:   srvMetrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", api.handleHealth)
	mux.HandleFunc("POST /api/validate", api.handleValidate)
	mux.HandleFunc("POST /api/calculate", api.handleCalculate)
	mux.HandleFunc("POST /api/retrieve", api.handleRetrieve)
	mux.HandleFunc("POST /api/similar-projects", api.handleSimilarProjects)
	mux.HandleFunc("POST /api/ingest", api.handleIngest)
	mux.HandleFunc("DELETE /api/documents/{id}", api.handleDeleteDocument)
	mux.HandleFunc("GET /api/stats", api.handleStats)
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(envOr("CORS_ORIGIN", "*")),
		mid.OTel("earthmark-api"),
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// recordWorkerStatus counts per-outcome documents reported by the ingest
// worker so both binaries show up on one dashboard.
func recordWorkerStatus(reg *metrics.Registry) func(context.Context, ingest.DocStatus) {
	return func(_ context.Context, st ingest.DocStatus) {
		reg.Counter(
			metrics.WithLabels("earthmark_worker_documents_total", "status", st.Status),
			"Documents processed by the ingest worker",
		).Inc()
	}
}

func openStore(cfg *config.Config) (semantic.Store, error) {
	switch cfg.Store.Type {
	case "memory":
		return semantic.NewMemory(cfg.Store.SnapshotPath)
	case "qdrant":
		return semantic.NewQdrant(cfg.Store.QdrantAddr, cfg.Store.Collection)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// --- Server ---

type apiMetrics struct {
	calculations *metrics.Counter
	retrievals   *metrics.Counter
	latency      *metrics.Histogram
}

type server struct {
	store     semantic.Store
	catalog   *catalog.Catalog
	retriever *rag.Service
	ingest    ingest.Deps
	workers   int
	logger    *slog.Logger
	metrics   apiMetrics
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleValidate runs boundary validation only and always reports every
// issue found, not just the first.
func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	payload, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := domain.ParseProjectInput(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CalculateRequest is the JSON body for POST /api/calculate.
type CalculateRequest struct {
	Method    string          `json:"method"`
	HeavyBody bool            `json:"heavy_body,omitempty"`
	Project   json.RawMessage `json:"project"`
}

// CalculateResponse pairs the result with the validation report that
// admitted the input.
type CalculateResponse struct {
	Validation domain.ValidationReport   `json:"validation"`
	Result     *domain.CalculationResult `json:"result,omitempty"`
}

func (s *server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.metrics.latency.Since(start)

	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Method == "" {
		req.Method = string(calc.MethodSverak)
	}

	report, err := domain.ParseProjectInput(req.Project)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if report.Input == nil {
		writeJSON(w, http.StatusUnprocessableEntity, CalculateResponse{Validation: report})
		return
	}

	in := report.Input
	result, err := calc.EvaluateCompliance(calc.Study{
		Soil:  in.Soil,
		Grid:  in.Grid,
		Fault: in.Fault,
		Surface: calc.SurfaceLayer{
			Resistivity: in.SurfaceResistivity,
			Thickness:   in.SurfaceThickness,
		},
		Material:  in.ConductorMaterial,
		Method:    calc.Method(req.Method),
		HeavyBody: req.HeavyBody,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.metrics.calculations.Inc()
	writeJSON(w, http.StatusOK, CalculateResponse{Validation: report, Result: &result})
}

// RetrieveRequest is the JSON body for POST /api/retrieve.
type RetrieveRequest struct {
	Query   string            `json:"query"`
	Filters map[string]string `json:"filters,omitempty"`
}

func (s *server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.metrics.latency.Since(start)

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, errors.New("query is required"))
		return
	}

	evidence, err := s.retriever.Retrieve(r.Context(), req.Query, semantic.Filter{Match: req.Filters})
	if err != nil {
		s.logger.Error("retrieve failed", "err", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"evidence": evidence,
			"degraded": true,
			"error":    err.Error(),
		})
		return
	}

	s.metrics.retrievals.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"evidence": evidence})
}

// SimilarProjectsRequest is the JSON body for POST /api/similar-projects.
type SimilarProjectsRequest struct {
	Query        string `json:"query"`
	VoltageClass string `json:"voltage_class,omitempty"`
	ProjectType  string `json:"project_type,omitempty"`
}

func (s *server) handleSimilarProjects(w http.ResponseWriter, r *http.Request) {
	var req SimilarProjectsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	fp := domain.ProjectFingerprint{VoltageClass: req.VoltageClass, ProjectType: req.ProjectType}

	resp := map[string]any{}
	if req.Query != "" {
		evidence, err := s.retriever.SimilarProjects(r.Context(), req.Query, fp)
		if err != nil {
			s.logger.Error("similar-projects retrieval failed", "err", err)
			resp["degraded"] = true
		}
		resp["evidence"] = evidence
	}
	if s.catalog != nil {
		projects, err := s.catalog.SimilarProjects(r.Context(), fp, 10)
		if err != nil {
			s.logger.Warn("catalog lookup failed", "err", err)
		} else {
			resp["projects"] = projects
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// IngestRequest is the JSON body for POST /api/ingest.
type IngestRequest struct {
	Documents []ingest.Document `json:"documents"`
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("documents are required"))
		return
	}

	statuses := ingest.IngestBatch(r.Context(), req.Documents, s.ingest, s.workers)
	writeJSON(w, http.StatusOK, map[string]any{"statuses": statuses})
}

func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("document id is required"))
		return
	}
	if err := s.store.DeleteBySource(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if s.catalog != nil {
		if err := s.catalog.RemoveDocument(r.Context(), id); err != nil {
			s.logger.Warn("catalog delete failed", "doc_id", id, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{}
	if n, err := s.store.Count(r.Context()); err == nil {
		resp["vectors"] = n
	} else {
		s.logger.Warn("store count failed", "err", err)
	}
	if s.catalog != nil {
		if stats, err := s.catalog.Stats(r.Context()); err == nil {
			resp["catalog"] = stats
		} else {
			s.logger.Warn("catalog stats failed", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func readBody(r *http.Request) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return raw, nil
}

// statusFor maps the error taxonomy onto HTTP statuses: bad input is the
// caller's fault, anything else is ours.
func statusFor(err error) int {
	if domain.IsInput(err) {
		return http.StatusBadRequest
	}
	if domain.IsIntegrity(err) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("http addr %q", cfg.HTTPAddr)
	}
	if cfg.Embedder.Model != "nomic-embed-text" || cfg.Embedder.Dims != 768 {
		t.Errorf("embedder defaults %+v", cfg.Embedder)
	}
	if cfg.Chunker.Size != 1000 || cfg.Chunker.Overlap != 200 {
		t.Errorf("chunker defaults %+v", cfg.Chunker)
	}
	if cfg.Retriever.TopK != 5 || cfg.Retriever.MinSimilarity != 0.6 {
		t.Errorf("retriever defaults %+v", cfg.Retriever)
	}
}

func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http_addr: ":9999"
store:
  type: memory
  snapshot_path: /tmp/vec.gob
chunker:
  size: 500
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("http addr %q", cfg.HTTPAddr)
	}
	if cfg.Store.Type != "memory" || cfg.Store.SnapshotPath != "/tmp/vec.gob" {
		t.Errorf("store %+v", cfg.Store)
	}
	if cfg.Chunker.Size != 500 {
		t.Errorf("chunker size %d", cfg.Chunker.Size)
	}
	// Unset fields come from defaults.
	if cfg.Chunker.Overlap != 200 || cfg.NATSURL == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("QDRANT_ADDR", "qdrant.internal:6334")
	t.Setenv("OLLAMA_URL", "http://ollama.internal:11434")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.QdrantAddr != "qdrant.internal:6334" {
		t.Errorf("qdrant addr %q", cfg.Store.QdrantAddr)
	}
	if cfg.Embedder.BaseURL != "http://ollama.internal:11434" {
		t.Errorf("ollama url %q", cfg.Embedder.BaseURL)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http_addr: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML should fail loudly")
	}
}

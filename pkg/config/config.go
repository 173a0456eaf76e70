// Package config loads the YAML application configuration shared by the
// API server and the ingest worker. Missing file means defaults;
// environment variables override the connection endpoints so containers
// need no config file at all.
package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EmbedderConfig configures the Ollama embedder.
type EmbedderConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Dims        int     `yaml:"dims"`
	RateLimit   float64 `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst   int     `yaml:"rate_burst"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// ChunkerConfig configures document splitting.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	// Type is "qdrant" or "memory".
	Type         string `yaml:"type"`
	QdrantAddr   string `yaml:"qdrant_addr"`
	Collection   string `yaml:"collection"`
	SnapshotPath string `yaml:"snapshot_path"` // memory backend only
}

// RetrieverConfig configures evidence retrieval.
type RetrieverConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	TimeoutSecs   int     `yaml:"timeout_secs"`
}

// Config is the root configuration.
type Config struct {
	HTTPAddr    string          `yaml:"http_addr"`
	MetricsAddr string          `yaml:"metrics_addr"`
	NATSURL     string          `yaml:"nats_url"`
	Neo4jURI    string          `yaml:"neo4j_uri"`
	Neo4jUser   string          `yaml:"neo4j_user"`
	Neo4jPass   string          `yaml:"neo4j_pass"`
	Embedder    EmbedderConfig  `yaml:"embedder"`
	Chunker     ChunkerConfig   `yaml:"chunker"`
	Store       StoreConfig     `yaml:"store"`
	Retriever   RetrieverConfig `yaml:"retriever"`
	Workers     int             `yaml:"workers"`
}

// Load reads a config file. A missing file yields defaults; environment
// overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		applyDefaults(cfg)
	}
	applyEnv(cfg)
	return cfg, nil
}

// RetrieverTimeout returns the configured search timeout as a duration.
func (c *Config) RetrieverTimeout() time.Duration {
	return time.Duration(c.Retriever.TimeoutSecs) * time.Second
}

func defaults() *Config {
	return &Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9100",
		NATSURL:     "nats://localhost:4222",
		Neo4jURI:    "bolt://localhost:7687",
		Neo4jUser:   "neo4j",
		Embedder: EmbedderConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "nomic-embed-text",
			Dims:        768,
			TimeoutSecs: 30,
		},
		Chunker: ChunkerConfig{Size: 1000, Overlap: 200},
		Store: StoreConfig{
			Type:       "qdrant",
			QdrantAddr: "localhost:6334",
			Collection: "earthing_evidence",
		},
		Retriever: RetrieverConfig{TopK: 5, MinSimilarity: 0.6, TimeoutSecs: 5},
		Workers:   4,
	}
}

// applyDefaults fills zero values a partial YAML file left out.
func applyDefaults(cfg *Config) {
	def := defaults()
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = def.HTTPAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = def.MetricsAddr
	}
	if cfg.NATSURL == "" {
		cfg.NATSURL = def.NATSURL
	}
	if cfg.Neo4jURI == "" {
		cfg.Neo4jURI = def.Neo4jURI
	}
	if cfg.Neo4jUser == "" {
		cfg.Neo4jUser = def.Neo4jUser
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = def.Embedder.BaseURL
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = def.Embedder.Model
	}
	if cfg.Embedder.Dims == 0 {
		cfg.Embedder.Dims = def.Embedder.Dims
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = def.Embedder.TimeoutSecs
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = def.Chunker.Size
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = def.Chunker.Overlap
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = def.Store.Type
	}
	if cfg.Store.QdrantAddr == "" {
		cfg.Store.QdrantAddr = def.Store.QdrantAddr
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = def.Store.Collection
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = def.Retriever.TopK
	}
	if cfg.Retriever.MinSimilarity == 0 {
		cfg.Retriever.MinSimilarity = def.Retriever.MinSimilarity
	}
	if cfg.Retriever.TimeoutSecs == 0 {
		cfg.Retriever.TimeoutSecs = def.Retriever.TimeoutSecs
	}
	if cfg.Workers == 0 {
		cfg.Workers = def.Workers
	}
}

// applyEnv overrides connection endpoints from the environment.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.HTTPAddr, "HTTP_ADDR")
	set(&cfg.MetricsAddr, "METRICS_ADDR")
	set(&cfg.NATSURL, "NATS_URL")
	set(&cfg.Neo4jURI, "NEO4J_URI")
	set(&cfg.Neo4jUser, "NEO4J_USER")
	set(&cfg.Neo4jPass, "NEO4J_PASS")
	set(&cfg.Embedder.BaseURL, "OLLAMA_URL")
	set(&cfg.Embedder.Model, "OLLAMA_MODEL")
	set(&cfg.Store.Type, "STORE_TYPE")
	set(&cfg.Store.QdrantAddr, "QDRANT_ADDR")
	set(&cfg.Store.Collection, "QDRANT_COLLECTION")
	set(&cfg.Store.SnapshotPath, "STORE_SNAPSHOT")
}

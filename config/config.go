package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the résumé retriever.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Validation ValidationConfig `yaml:"validation"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "bolt", "sqlite", "memory"
	Path   string `yaml:"path"`   // empty means .rag/index.db (or index.sqlite)
}

// CorpusConfig lists the documents ingest reads.
type CorpusConfig struct {
	Root      string           `yaml:"root"`
	Documents []CorpusDocument `yaml:"documents"`
}

type CorpusDocument struct {
	Slug   string `yaml:"slug"`
	Title  string `yaml:"title"`
	Type   string `yaml:"type"`
	Weight int    `yaml:"weight"`
	Path   string `yaml:"path"` // relative to root, may be a glob
}

// ChunkConfig holds chunking configuration. Lengths are in characters.
type ChunkConfig struct {
	TargetChars  int `yaml:"target_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`    // "openai", "ollama", "mock"
	Model             string        `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv         string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL           string        `yaml:"base_url"`
	Dimension         int           `yaml:"dimension"` // 0 means derive from model
	BatchSize         int           `yaml:"batch_size"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	RetryJitter       time.Duration `yaml:"retry_jitter"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unthrottled
	QueryCacheSize    int           `yaml:"query_cache_size"`    // 0 = no cache
	QueryCacheTTL     time.Duration `yaml:"query_cache_ttl"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	CandidatesPerDoc   int  `yaml:"candidates_per_doc"`
	SeedGap            int  `yaml:"seed_gap"`
	SeedsPerDoc        int  `yaml:"seeds_per_doc"`
	WindowRadius       int  `yaml:"window_radius"`
	TopCandidates      int  `yaml:"top_candidates"`
	MaxContextChars    int  `yaml:"max_context_chars"`
	SeparatorChars     int  `yaml:"separator_chars"`
	Concurrency        int  `yaml:"concurrency"`
	LenientIdentifiers bool `yaml:"lenient_identifiers"` // drop bad identifiers instead of rejecting
}

// RateLimitConfig holds the per-client fixed window.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Window          time.Duration `yaml:"window"`
	MaxRequests     int           `yaml:"max_requests"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// ValidationConfig bounds accepted queries and identifiers.
type ValidationConfig struct {
	MinQueryLength     int      `yaml:"min_query_length"`
	MaxQueryLength     int      `yaml:"max_query_length"`
	MaxSlugsPerRequest int      `yaml:"max_slugs_per_request"`
	AllowedSlugs       []string `yaml:"allowed_slugs"`
}

// PromptConfig feeds the hand-off templates.
type PromptConfig struct {
	Subject string `yaml:"subject"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "bolt",
		},
		Corpus: CorpusConfig{
			Root: "content",
			Documents: []CorpusDocument{
				{Slug: "resume", Title: "Resume", Type: "resume", Weight: 3, Path: "resume.pdf"},
				{Slug: "about", Title: "About", Type: "about", Weight: 1, Path: "about.txt"},
			},
		},
		Chunk: ChunkConfig{
			TargetChars:  800,
			OverlapChars: 120,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			APIKeyEnv:      "OPENAI_API_KEY",
			BatchSize:      64,
			MaxRetries:     2,
			RetryBaseDelay: 300 * time.Millisecond,
			RetryJitter:    200 * time.Millisecond,
			QueryCacheTTL:  10 * time.Minute,
		},
		Retrieve: RetrieveConfig{
			CandidatesPerDoc: 40,
			SeedGap:          4,
			SeedsPerDoc:      1,
			WindowRadius:     2,
			TopCandidates:    6,
			MaxContextChars:  4500,
			SeparatorChars:   2,
			Concurrency:      4,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			Window:          60 * time.Second,
			MaxRequests:     10,
			CleanupInterval: 5 * time.Minute,
		},
		Validation: ValidationConfig{
			MinQueryLength:     1,
			MaxQueryLength:     1000,
			MaxSlugsPerRequest: 10,
			AllowedSlugs:       []string{"resume", "about"},
		},
		Prompt: PromptConfig{
			Subject: "the candidate",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for rag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "rag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".rag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overrides settings from the environment. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("RAG_EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := getenv("RAG_EMBED_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAG_EMBED_BATCH_SIZE: %w", err)
		}
		c.Embedding.BatchSize = n
	}
	if v := getenv("RAG_EMBED_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAG_EMBED_MAX_RETRIES: %w", err)
		}
		c.Embedding.MaxRetries = n
	}
	if v := getenv("RAG_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := getenv("RAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate reports every impossible setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Store.Driver {
	case "bolt", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	switch c.Embedding.Provider {
	case "openai", "ollama", "mock":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider))
	}

	check(c.Chunk.TargetChars > 0, "chunk.target_chars must be positive, got %d", c.Chunk.TargetChars)
	check(c.Chunk.OverlapChars >= 0, "chunk.overlap_chars must not be negative, got %d", c.Chunk.OverlapChars)
	check(c.Embedding.BatchSize > 0, "embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	check(c.Embedding.MaxRetries >= 0, "embedding.max_retries must not be negative, got %d", c.Embedding.MaxRetries)
	check(c.Embedding.RetryBaseDelay >= 0, "embedding.retry_base_delay must not be negative")
	check(c.Embedding.RetryJitter >= 0, "embedding.retry_jitter must not be negative")
	check(c.Embedding.QueryCacheSize >= 0, "embedding.query_cache_size must not be negative")
	check(c.Retrieve.CandidatesPerDoc > 0, "retrieve.candidates_per_doc must be positive, got %d", c.Retrieve.CandidatesPerDoc)
	check(c.Retrieve.SeedsPerDoc > 0, "retrieve.seeds_per_doc must be positive, got %d", c.Retrieve.SeedsPerDoc)
	check(c.Retrieve.SeedGap >= 0, "retrieve.seed_gap must not be negative")
	check(c.Retrieve.WindowRadius >= 0, "retrieve.window_radius must not be negative")
	check(c.Retrieve.TopCandidates >= 0, "retrieve.top_candidates must not be negative")
	check(c.Retrieve.MaxContextChars > 0, "retrieve.max_context_chars must be positive, got %d", c.Retrieve.MaxContextChars)
	check(c.Retrieve.SeparatorChars >= 0, "retrieve.separator_chars must not be negative")
	check(c.Retrieve.Concurrency > 0, "retrieve.concurrency must be positive, got %d", c.Retrieve.Concurrency)
	if c.RateLimit.Enabled {
		check(c.RateLimit.Window > 0, "rate_limit.window must be positive")
		check(c.RateLimit.MaxRequests > 0, "rate_limit.max_requests must be positive")
		check(c.RateLimit.CleanupInterval > 0, "rate_limit.cleanup_interval must be positive")
	}
	check(c.Validation.MinQueryLength >= 0, "validation.min_query_length must not be negative")
	check(c.Validation.MaxQueryLength >= c.Validation.MinQueryLength,
		"validation.max_query_length must be at least min_query_length")
	check(c.Validation.MaxSlugsPerRequest > 0, "validation.max_slugs_per_request must be positive")

	for i, d := range c.Corpus.Documents {
		check(d.Slug != "" && d.Title != "" && d.Path != "",
			"corpus.documents[%d]: slug, title and path are required", i)
	}

	return errors.Join(errs...)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StorePath resolves the store file for a project directory.
func (c *Config) StorePath(dir string) string {
	if c.Store.Path != "" {
		if filepath.IsAbs(c.Store.Path) {
			return c.Store.Path
		}
		return filepath.Join(dir, c.Store.Path)
	}
	if c.Store.Driver == "sqlite" {
		return filepath.Join(dir, ".rag", "index.sqlite")
	}
	return IndexDBPath(dir)
}

// CorpusRoot resolves the corpus root for a project directory.
func (c *Config) CorpusRoot(dir string) string {
	if filepath.IsAbs(c.Corpus.Root) {
		return c.Corpus.Root
	}
	return filepath.Join(dir, c.Corpus.Root)
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".rag", "index.db")
}

// EnsureRAGDir ensures the .rag directory exists.
func EnsureRAGDir(dir string) error {
	ragDir := filepath.Join(dir, ".rag")
	return os.MkdirAll(ragDir, 0755)
}

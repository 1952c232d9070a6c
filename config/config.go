package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/core"
	"gopkg.in/yaml.v3"
)

// Vector index backends.
const (
	IndexChromem  = "chromem"
	IndexPgvector = "pgvector"
)

// Duration is a time.Duration written as a string ("30s", "2m") in YAML.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

// PostgresConfig holds connection details for the pgvector index.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	Driver      string `yaml:"driver,omitempty"`
	Debug       bool   `yaml:"debug,omitempty"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	Type     string          `yaml:"type"`
	Path     string          `yaml:"path,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// ChunkingConfig configures how documents are split into chunks.
// Overlap is a pointer so that an explicit 0 is kept rather than defaulted.
type ChunkingConfig struct {
	MaxSize int  `yaml:"max_size"`
	Overlap *int `yaml:"overlap,omitempty"`
}

// OverlapSize returns the configured overlap, 0 when unset.
func (c ChunkingConfig) OverlapSize() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

// Int returns a pointer to v, for optional integer settings.
func Int(v int) *int {
	return &v
}

// IngestionConfig tunes the ingestion pipeline.
type IngestionConfig struct {
	EmbedBatchSize int `yaml:"embed_batch_size"`
	Workers        int `yaml:"workers"`
}

// AnswerConfig tunes the answering pipeline.
type AnswerConfig struct {
	TopK int `yaml:"top_k"`
}

// ReindexConfig tunes reindex runs.
type ReindexConfig struct {
	BatchSize  int      `yaml:"batch_size"`
	MaxRetries int      `yaml:"max_retries"`
	RetryDelay Duration `yaml:"retry_delay"`
}

// AIConfig selects the embedding and generation services.
type AIConfig struct {
	Provider        string  `yaml:"provider"`
	EmbeddingHost   string  `yaml:"embedding_host"`
	GenerationHost  string  `yaml:"generation_host"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	GenerationModel string  `yaml:"generation_model"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	Temperature     float64 `yaml:"temperature"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// Config is the root application configuration.
type Config struct {
	DataDir        string          `yaml:"data_dir"`
	InMemory       bool            `yaml:"in_memory,omitempty"`
	Collection     string          `yaml:"collection"`
	ServiceTimeout Duration        `yaml:"service_timeout"`
	Index          IndexConfig     `yaml:"index"`
	Chunking       ChunkingConfig  `yaml:"chunking"`
	Ingestion      IngestionConfig `yaml:"ingestion"`
	Answer         AnswerConfig    `yaml:"answer"`
	Reindex        ReindexConfig   `yaml:"reindex"`
	AI             AIConfig        `yaml:"ai"`
	Server         ServerConfig    `yaml:"server"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
	if c.ServiceTimeout == 0 {
		c.ServiceTimeout = Duration(60 * time.Second)
	}
	if c.Index.Type == "" {
		c.Index.Type = IndexChromem
	}
	if c.Chunking.MaxSize == 0 {
		c.Chunking.MaxSize = 1000
	}
	if c.Chunking.Overlap == nil {
		c.Chunking.Overlap = Int(0)
		if c.Chunking.MaxSize > 200 {
			c.Chunking.Overlap = Int(200)
		}
	}
	if c.Ingestion.EmbedBatchSize == 0 {
		c.Ingestion.EmbedBatchSize = 32
	}
	if c.Answer.TopK == 0 {
		c.Answer.TopK = 5
	}
	if c.Reindex.BatchSize == 0 {
		c.Reindex.BatchSize = 100
	}
	if c.Reindex.MaxRetries == 0 {
		c.Reindex.MaxRetries = 3
	}
	if c.Reindex.RetryDelay == 0 {
		c.Reindex.RetryDelay = Duration(time.Second)
	}

	defaults := ai.DefaultConfig()
	if c.AI.Provider == "" {
		c.AI.Provider = defaults.Provider
	}
	if c.AI.EmbeddingHost == "" {
		c.AI.EmbeddingHost = defaults.EmbeddingHost
	}
	if c.AI.GenerationHost == "" {
		c.AI.GenerationHost = c.AI.EmbeddingHost
	}
	if c.AI.EmbeddingModel == "" {
		c.AI.EmbeddingModel = defaults.EmbeddingModel
	}
	if c.AI.GenerationModel == "" {
		c.AI.GenerationModel = defaults.GenerationModel
	}
	if c.AI.APIKeyEnv == "" {
		c.AI.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 32 << 20
	}
}

// Validate checks the values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	if err := core.ValidateChunkParams(c.Chunking.MaxSize, c.Chunking.OverlapSize()); err != nil {
		return err
	}
	switch c.Index.Type {
	case IndexChromem:
	case IndexPgvector:
		if c.Index.Postgres == nil || c.Index.Postgres.DSN == "" {
			return fmt.Errorf("%w: index.postgres.dsn is required for the pgvector index", core.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown index type %q", core.ErrInvalidConfig, c.Index.Type)
	}
	if c.Answer.TopK < 1 {
		return fmt.Errorf("%w: answer.top_k must be positive", core.ErrInvalidConfig)
	}
	if c.ServiceTimeout <= 0 {
		return fmt.Errorf("%w: service_timeout must be positive", core.ErrInvalidConfig)
	}
	return c.AIConfig().Validate()
}

// AIConfig converts the ai section, reading the API key from the environment.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(c.AI.Provider),
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithAPIKey(os.Getenv(c.AI.APIKeyEnv)),
		ai.WithTemperature(c.AI.Temperature),
	)
}

// CatalogPath is the directory of the badger catalog.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog")
}

// IndexPath is the directory of the chromem index.
func (c *Config) IndexPath() string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(c.DataDir, "vectors")
}

// Load reads a config from path. If the file does not exist, returns defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", core.ErrInvalidConfig, path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

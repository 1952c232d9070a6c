package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/clauseguard/ai"
	"github.com/poiesic/clauseguard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1000, cfg.Chunking.MaxSize)
	assert.Equal(t, 200, cfg.Chunking.OverlapSize())
	assert.Equal(t, 5, cfg.Answer.TopK)
	assert.Equal(t, IndexChromem, cfg.Index.Type)
	assert.Equal(t, time.Minute, cfg.ServiceTimeout.Duration())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clauseguard.yaml")
	yml := `
data_dir: /var/lib/clauseguard
collection: standards
service_timeout: 15s
index:
  type: pgvector
  postgres:
    dsn: postgres://rag@localhost:5432/rag?sslmode=disable
    driver: pq
chunking:
  max_size: 400
  overlap: 50
answer:
  top_k: 3
reindex:
  retry_delay: 250ms
ai:
  provider: ollama
  embedding_host: http://ollama:11434
  embedding_model: nomic-embed-text
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "standards", cfg.Collection)
	assert.Equal(t, 15*time.Second, cfg.ServiceTimeout.Duration())
	assert.Equal(t, IndexPgvector, cfg.Index.Type)
	assert.Equal(t, "pq", cfg.Index.Postgres.Driver)
	assert.Equal(t, 400, cfg.Chunking.MaxSize)
	assert.Equal(t, 50, cfg.Chunking.OverlapSize())
	assert.Equal(t, 3, cfg.Answer.TopK)
	assert.Equal(t, 250*time.Millisecond, cfg.Reindex.RetryDelay.Duration())
	assert.Equal(t, "http://ollama:11434", cfg.AI.GenerationHost, "generation host defaults to the embedding host")
	assert.Equal(t, filepath.Join("/var/lib/clauseguard", "catalog"), cfg.CatalogPath())
	assert.NoError(t, cfg.Validate())

	aiCfg := cfg.AIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, ai.ProviderOllama, aiCfg.Provider)
	assert.Equal(t, "nomic-embed-text", aiCfg.EmbeddingModel)
}

func TestLoad_ChunkOverlap(t *testing.T) {
	tests := []struct {
		name    string
		yml     string
		overlap int
	}{
		{name: "explicit zero is kept", yml: "chunking:\n  max_size: 500\n  overlap: 0\n", overlap: 0},
		{name: "unset uses default", yml: "chunking:\n  max_size: 500\n", overlap: 200},
		{name: "unset with small chunks", yml: "chunking:\n  max_size: 150\n", overlap: 0},
		{name: "explicit value", yml: "chunking:\n  max_size: 500\n  overlap: 25\n", overlap: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "clauseguard.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yml), 0o600))

			cfg, err := Load(path)
			require.NoError(t, err)
			require.NotNil(t, cfg.Chunking.Overlap)
			assert.Equal(t, tt.overlap, *cfg.Chunking.Overlap)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestSave_KeepsZeroOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clauseguard.yaml")
	cfg := Default()
	cfg.Chunking.Overlap = Int(0)
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Chunking.OverlapSize())
	assert.Equal(t, cfg.Chunking.MaxSize, loaded.Chunking.MaxSize)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service_timeout: soon\n"), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "overlap too large", modify: func(c *Config) { c.Chunking.Overlap = Int(c.Chunking.MaxSize) }},
		{name: "unknown index", modify: func(c *Config) { c.Index.Type = "faiss" }},
		{name: "pgvector without dsn", modify: func(c *Config) { c.Index.Type = IndexPgvector }},
		{name: "zero top k", modify: func(c *Config) { c.Answer.TopK = -1 }},
		{name: "unknown provider", modify: func(c *Config) { c.AI.Provider = "bard" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)
		})
	}
}

func TestAIConfig_ReadsKeyFromEnvironment(t *testing.T) {
	t.Setenv("CLAUSEGUARD_TEST_KEY", "sk-test")
	cfg := Default()
	cfg.AI.APIKeyEnv = "CLAUSEGUARD_TEST_KEY"

	assert.Equal(t, "sk-test", cfg.AIConfig().APIKey)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Collection = "terms"
	cfg.ServiceTimeout = Duration(90 * time.Second)

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "service_timeout: 1m30s")
}

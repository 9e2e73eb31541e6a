package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/kbase/pkg/llm"
	"github.com/xhad/kbase/pkg/store"
)

var providerEnv = []string{
	"USE_GEMINI", "USE_OLLAMA", "GEMINI_API_KEY", "OPENAI_API_KEY",
	"OLLAMA_BASE_URL", "CHROMA_PERSIST_DIR", "KBASE_STORE_PATH",
	"DATABASE_URL", "KBASE_DATA_DIR",
}

// clearEnv blanks the variables LoadConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range providerEnv {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configData := `
provider: ollama

ollama:
  base_url: "http://ollama:11434"
  chat_model: "mistral"

llm:
  temperature: 0
  max_tokens: 1000
  rate_limit_cooldown: 5s

store:
  driver: postgres
  database_url: "postgres://localhost:5432/test"
  collection: "docs"
  vector_dim: 768

processor:
  chunk_size: 500
  chunk_overlap: 100

retrieval:
  top_k: 3

sources:
  data_dir: "/srv/docs"
  notion:
    api_key: "secret"
    page_ids: ["a", "b"]
  web:
    url: "https://example.com/docs"
    max_depth: 1
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.Provider)
	assert.Equal(t, "http://ollama:11434", config.Ollama.BaseURL)
	require.NotNil(t, config.LLM.Temperature)
	assert.Zero(t, *config.LLM.Temperature)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 5*time.Second, config.LLM.RateLimitCooldown)
	assert.Equal(t, store.DriverPostgres, config.Store.Driver)
	assert.Equal(t, "docs", config.Store.Collection)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 3, config.Retrieval.TopK)
	assert.Equal(t, "/srv/docs", config.Sources.DataDir)
	assert.Equal(t, []string{"a", "b"}, config.Sources.Notion.PageIDs)
	assert.Equal(t, 2.0, config.Sources.Web.RateLimit)
	assert.Empty(t, config.Validate())

	chat := config.ChatConfig()
	assert.Equal(t, llm.ProviderOllama, chat.Provider)
	assert.Equal(t, "mistral", chat.Model)
	assert.Zero(t, chat.Temperature)
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Empty(t, config.Provider)
	assert.Equal(t, store.DriverSQLite, config.Store.Driver)
	assert.Equal(t, "knowledge_base", config.Store.Collection)
	assert.Equal(t, 800, config.Processor.ChunkSize)
	require.NotNil(t, config.Processor.ChunkOverlap)
	assert.Equal(t, 150, *config.Processor.ChunkOverlap)
	assert.Equal(t, 5, config.Retrieval.TopK)
	assert.Equal(t, 50*time.Second, config.LLM.RateLimitCooldown)
	assert.Equal(t, llm.DefaultTemperature, *config.LLM.Temperature)
	assert.Equal(t, "data", config.Sources.DataDir)
	assert.Empty(t, config.Validate())
	assert.Equal(t, llm.Backend{}, config.Backend())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestProviderFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want llm.Provider
	}{
		{"nothing", nil, llm.ProviderNone},
		{"gemini", map[string]string{"USE_GEMINI": "true", "GEMINI_API_KEY": "g"}, llm.ProviderGemini},
		{"gemini without key", map[string]string{"USE_GEMINI": "true"}, llm.ProviderNone},
		{"gemini over ollama", map[string]string{"USE_GEMINI": "1", "GEMINI_API_KEY": "g", "USE_OLLAMA": "true"}, llm.ProviderGemini},
		{"ollama over openai", map[string]string{"USE_OLLAMA": "true", "OPENAI_API_KEY": "o"}, llm.ProviderOllama},
		{"openai", map[string]string{"OPENAI_API_KEY": "o"}, llm.ProviderOpenAI},
		{"flag not true", map[string]string{"USE_OLLAMA": "no"}, llm.ProviderNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := LoadConfig("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, config.Backend().Provider)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KBASE_STORE_PATH", "/tmp/store")
	t.Setenv("KBASE_DATA_DIR", "/tmp/data")
	t.Setenv("DATABASE_URL", "postgres://db/kb")

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/store", config.Store.Path)
	assert.Equal(t, "/tmp/data", config.Sources.DataDir)
	assert.Equal(t, "postgres://db/kb", config.Store.DatabaseURL)
}

func intPtr(v int) *int { return &v }

func TestLoadConfig_ExplicitZeroOverlap(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configData := `
processor:
  chunk_size: 100
  chunk_overlap: 0
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 100, config.Processor.ChunkSize)
	require.NotNil(t, config.Processor.ChunkOverlap)
	assert.Zero(t, *config.Processor.ChunkOverlap)
	assert.Empty(t, config.Validate())
}

func TestLoadConfig_OverlapNotSmallerThanChunkSize(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("processor:\n  chunk_size: 100\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	require.NotNil(t, config.Processor.ChunkOverlap)
	assert.Equal(t, 150, *config.Processor.ChunkOverlap)
	errs := config.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "processor.chunk_overlap", errs[0].Field)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		var c Config
		applyDefaults(&c)
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"valid config", func(*Config) {}, nil},
		{"unknown provider", func(c *Config) { c.Provider = "bard" }, []string{"provider"}},
		{"gemini without key", func(c *Config) { c.Provider = "gemini" }, []string{"gemini.api_key"}},
		{"bad temperature", func(c *Config) { t := 2.5; c.LLM.Temperature = &t }, []string{"llm.temperature"}},
		{"postgres without url", func(c *Config) { c.Store.Driver = store.DriverPostgres }, []string{"store.database_url", "store.vector_dim"}},
		{"unknown driver", func(c *Config) { c.Store.Driver = "chroma" }, []string{"store.driver"}},
		{"bad collection", func(c *Config) { c.Store.Collection = "x; drop" }, []string{"store.collection"}},
		{"zero chunk size", func(c *Config) { c.Processor.ChunkSize = 0 }, []string{"processor.chunk_size"}},
		{"zero overlap", func(c *Config) { c.Processor.ChunkOverlap = intPtr(0) }, nil},
		{"negative overlap", func(c *Config) { c.Processor.ChunkOverlap = intPtr(-1) }, []string{"processor.chunk_overlap"}},
		{"overlap equal to chunk size", func(c *Config) {
			c.Processor.ChunkSize = 100
			c.Processor.ChunkOverlap = intPtr(100)
		}, []string{"processor.chunk_overlap"}},
		{"overlap above chunk size", func(c *Config) {
			c.Processor.ChunkSize = 100
			c.Processor.ChunkOverlap = intPtr(150)
		}, []string{"processor.chunk_overlap"}},
		{"bad top k", func(c *Config) { c.Retrieval.TopK = -1 }, []string{"retrieval.top_k"}},
		{"bad web url", func(c *Config) { c.Sources.Web.URL = "not a url" }, []string{"sources.web.url"}},
		{"negative request timeout", func(c *Config) { c.Server.RequestTimeout = -time.Second }, []string{"server.request_timeout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)

			var fields []string
			for _, e := range c.Validate() {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

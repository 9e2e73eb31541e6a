package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xhad/kbase/pkg/llm"
	"github.com/xhad/kbase/pkg/store"
)

type Config struct {
	// Provider is one of gemini, ollama, openai. Empty leaves the gateways
	// unconfigured.
	Provider string `yaml:"provider"`

	Gemini struct {
		APIKey     string `yaml:"api_key"`
		EmbedModel string `yaml:"embed_model"`
		ChatModel  string `yaml:"chat_model"`
	} `yaml:"gemini"`

	OpenAI struct {
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		EmbedModel string `yaml:"embed_model"`
		ChatModel  string `yaml:"chat_model"`
	} `yaml:"openai"`

	Ollama struct {
		BaseURL    string `yaml:"base_url"`
		EmbedModel string `yaml:"embed_model"`
		ChatModel  string `yaml:"chat_model"`
	} `yaml:"ollama"`

	LLM struct {
		Temperature       *float64      `yaml:"temperature"`
		MaxTokens         int           `yaml:"max_tokens"`
		EmbedBatchSize    int           `yaml:"embed_batch_size"`
		RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
		CountTokens       bool          `yaml:"count_tokens"`
	} `yaml:"llm"`

	Store struct {
		Driver      string `yaml:"driver"`
		Path        string `yaml:"path"`
		DatabaseURL string `yaml:"database_url"`
		Collection  string `yaml:"collection"`
		VectorDim   int    `yaml:"vector_dim"`
	} `yaml:"store"`

	Processor struct {
		ChunkSize int `yaml:"chunk_size"`
		// ChunkOverlap: nil means unset, 0 disables overlap.
		ChunkOverlap *int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Retrieval struct {
		TopK int `yaml:"top_k"`
	} `yaml:"retrieval"`

	Sources struct {
		DataDir string `yaml:"data_dir"`

		GitHub struct {
			Repo  string `yaml:"repo"`
			Token string `yaml:"token"`
		} `yaml:"github"`

		Notion struct {
			APIKey     string   `yaml:"api_key"`
			DatabaseID string   `yaml:"database_id"`
			PageIDs    []string `yaml:"page_ids"`
		} `yaml:"notion"`

		GDrive struct {
			CredentialsPath string `yaml:"credentials_path"`
			FolderID        string `yaml:"folder_id"`
		} `yaml:"gdrive"`

		Web struct {
			URL       string  `yaml:"url"`
			MaxDepth  int     `yaml:"max_depth"`
			RateLimit float64 `yaml:"rate_limit"`
		} `yaml:"web"`
	} `yaml:"sources"`

	Server struct {
		Addr           string        `yaml:"addr"`
		CORSOrigins    []string      `yaml:"cors_origins"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"server"`
}

// LoadConfig reads the YAML file at path, or the first default location that
// exists, then applies .env, environment overrides and defaults. No file at
// all yields a config built from the environment alone.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	if path == "" {
		path = findConfig()
	}

	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func findConfig() string {
	locations := []string{"config.yaml", "config.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "kbase", "config.yaml"))
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func applyDefaults(config *Config) {
	if config.Ollama.BaseURL == "" {
		config.Ollama.BaseURL = llm.DefaultOllamaURL
	}

	if config.LLM.Temperature == nil {
		t := llm.DefaultTemperature
		config.LLM.Temperature = &t
	}
	if config.LLM.RateLimitCooldown == 0 {
		config.LLM.RateLimitCooldown = 50 * time.Second
	}

	if config.Store.Driver == "" {
		config.Store.Driver = store.DriverSQLite
	}
	if config.Store.Path == "" {
		config.Store.Path = "chroma_db"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "knowledge_base"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 800
	}
	if config.Processor.ChunkOverlap == nil {
		overlap := 150
		config.Processor.ChunkOverlap = &overlap
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}

	if config.Sources.DataDir == "" {
		config.Sources.DataDir = "data"
	}
	if config.Sources.Web.MaxDepth == 0 {
		config.Sources.Web.MaxDepth = 2
	}
	if config.Sources.Web.RateLimit == 0 {
		config.Sources.Web.RateLimit = 2.0
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8000"
	}
	if len(config.Server.CORSOrigins) == 0 {
		config.Server.CORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
}

func mergeWithEnv(config *Config) {
	setString(&config.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&config.Gemini.EmbedModel, "GEMINI_EMBED_MODEL")
	setString(&config.Gemini.ChatModel, "GEMINI_CHAT_MODEL")
	setString(&config.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&config.OpenAI.EmbedModel, "OPENAI_EMBEDDING_MODEL")
	setString(&config.OpenAI.ChatModel, "OPENAI_CHAT_MODEL")
	setString(&config.Ollama.BaseURL, "OLLAMA_BASE_URL")
	setString(&config.Ollama.EmbedModel, "OLLAMA_EMBED_MODEL")
	setString(&config.Ollama.ChatModel, "OLLAMA_CHAT_MODEL")
	setString(&config.Store.Path, "CHROMA_PERSIST_DIR")
	setString(&config.Store.Path, "KBASE_STORE_PATH")
	setString(&config.Store.DatabaseURL, "DATABASE_URL")
	setString(&config.Sources.DataDir, "KBASE_DATA_DIR")

	// USE_GEMINI wins over USE_OLLAMA, which wins over a bare OpenAI key.
	switch {
	case envBool("USE_GEMINI") && config.Gemini.APIKey != "":
		config.Provider = string(llm.ProviderGemini)
	case envBool("USE_OLLAMA"):
		config.Provider = string(llm.ProviderOllama)
	case config.Provider == "" && os.Getenv("OPENAI_API_KEY") != "":
		config.Provider = string(llm.ProviderOpenAI)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

// Backend returns the model backend selected by Provider.
func (c *Config) Backend() llm.Backend {
	p := llm.Provider(c.Provider)
	switch p {
	case llm.ProviderGemini:
		return llm.Backend{Provider: p, APIKey: c.Gemini.APIKey}
	case llm.ProviderOpenAI:
		return llm.Backend{Provider: p, APIKey: c.OpenAI.APIKey, BaseURL: c.OpenAI.BaseURL}
	case llm.ProviderOllama:
		return llm.Backend{Provider: p, BaseURL: c.Ollama.BaseURL}
	}
	return llm.Backend{}
}

func (c *Config) EmbedderConfig() llm.EmbedderConfig {
	cfg := llm.EmbedderConfig{Backend: c.Backend(), BatchSize: c.LLM.EmbedBatchSize}
	switch cfg.Provider {
	case llm.ProviderGemini:
		cfg.Model = c.Gemini.EmbedModel
	case llm.ProviderOpenAI:
		cfg.Model = c.OpenAI.EmbedModel
	case llm.ProviderOllama:
		cfg.Model = c.Ollama.EmbedModel
	}
	return cfg
}

func (c *Config) ChatConfig() llm.ChatConfig {
	cfg := llm.ChatConfig{Backend: c.Backend(), MaxTokens: c.LLM.MaxTokens}
	if c.LLM.Temperature != nil {
		cfg.Temperature = *c.LLM.Temperature
	}
	switch cfg.Provider {
	case llm.ProviderGemini:
		cfg.Model = c.Gemini.ChatModel
	case llm.ProviderOpenAI:
		cfg.Model = c.OpenAI.ChatModel
	case llm.ProviderOllama:
		cfg.Model = c.Ollama.ChatModel
	}
	return cfg
}

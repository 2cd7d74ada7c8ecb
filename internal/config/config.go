package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds settings shared by the OpenAI-compatible embedder and completer.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	// Dimensions is only used by the embedder; 0 keeps the model default.
	Dimensions int `yaml:"dimensions,omitempty"`
}

// OllamaConfig holds settings for a local Ollama embedder.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// CompletionConfig selects the completion service. Type "none" answers
// every query with the not-configured message.
type CompletionConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size      int `yaml:"size"`
	MinLength int `yaml:"min_length"`
}

// IndexConfig names the snapshot files and the build inputs.
type IndexConfig struct {
	Documents      []string `yaml:"documents"`
	IntentsFile    string   `yaml:"intents_file"`
	ChunkSnapshot  string   `yaml:"chunk_snapshot"`
	SafetySnapshot string   `yaml:"safety_snapshot"`
	Concurrency    int      `yaml:"concurrency"`
}

type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

type SafetyConfig struct {
	SemanticThreshold float64 `yaml:"semantic_threshold"`
	Debug             bool    `yaml:"debug"`
}

// TimeoutsConfig bounds each outbound call.
type TimeoutsConfig struct {
	EmbedSecs    int `yaml:"embed_secs"`
	CompleteSecs int `yaml:"complete_secs"`
}

func (t TimeoutsConfig) Embed() time.Duration    { return time.Duration(t.EmbedSecs) * time.Second }
func (t TimeoutsConfig) Complete() time.Duration { return time.Duration(t.CompleteSecs) * time.Second }

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig contains connection details for the redis interaction store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// InteractionsConfig selects where answered queries are logged.
type InteractionsConfig struct {
	Type  string       `yaml:"type"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder     EmbedderConfig     `yaml:"embedder"`
	Completion   CompletionConfig   `yaml:"completion"`
	Chunker      ChunkerConfig      `yaml:"chunker"`
	Index        IndexConfig        `yaml:"index"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Safety       SafetyConfig       `yaml:"safety"`
	Timeouts     TimeoutsConfig     `yaml:"timeouts"`
	Server       ServerConfig       `yaml:"server"`
	Interactions InteractionsConfig `yaml:"interactions"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/saferag/config.yaml.
// If neither exists, it writes defaults to ~/.config/saferag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "saferag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:     EmbedderConfig{Type: "openai", OpenAI: &OpenAIConfig{}},
		Completion:   CompletionConfig{Type: "openai", OpenAI: &OpenAIConfig{}},
		Interactions: InteractionsConfig{Type: "memory"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "nomic-embed-text"
		}
	}
	if cfg.Completion.Type == "" {
		cfg.Completion.Type = "openai"
	}
	if cfg.Completion.Type == "openai" {
		if cfg.Completion.OpenAI == nil {
			cfg.Completion.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Completion.OpenAI, "gpt-4o-mini")
	}

	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 500
	}
	if cfg.Chunker.MinLength == 0 {
		cfg.Chunker.MinLength = 50
	}

	if len(cfg.Index.Documents) == 0 {
		cfg.Index.Documents = []string{"data/articles.json"}
	}
	if cfg.Index.IntentsFile == "" {
		cfg.Index.IntentsFile = "data/unsafe_intents.json"
	}
	if cfg.Index.ChunkSnapshot == "" {
		cfg.Index.ChunkSnapshot = "data/embeddings.json"
	}
	if cfg.Index.SafetySnapshot == "" {
		cfg.Index.SafetySnapshot = "data/safety_embeddings.json"
	}
	if cfg.Index.Concurrency == 0 {
		cfg.Index.Concurrency = 4
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.MinScore == 0 {
		cfg.Retrieval.MinScore = 0.22
	}
	if cfg.Safety.SemanticThreshold == 0 {
		cfg.Safety.SemanticThreshold = 0.75
	}
	if cfg.Timeouts.EmbedSecs == 0 {
		cfg.Timeouts.EmbedSecs = 15
	}
	if cfg.Timeouts.CompleteSecs == 0 {
		cfg.Timeouts.CompleteSecs = 60
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Interactions.Type == "" {
		cfg.Interactions.Type = "memory"
	}
	if cfg.Interactions.Type == "redis" {
		if cfg.Interactions.Redis == nil {
			cfg.Interactions.Redis = &RedisConfig{}
		}
		if cfg.Interactions.Redis.Addr == "" {
			cfg.Interactions.Redis.Addr = "localhost:6379"
		}
	}
}

func openAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
}

// Package config loads briefsmith configuration from .briefsmith/config.yaml
// with environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"briefsmith/internal/logging"
)

// Config holds all briefsmith configuration.
type Config struct {
	// Corpus and index locations, relative to the workspace unless absolute.
	Corpus CorpusConfig `yaml:"corpus"`
	Index  IndexConfig  `yaml:"index"`

	// External capabilities.
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`

	// Logging.
	Logging logging.Settings `yaml:"logging"`
}

// CorpusConfig configures document loading and chunking.
type CorpusConfig struct {
	Dir          string `yaml:"dir"`           // Default: data/docs
	ChunkSize    int    `yaml:"chunk_size"`    // Window size in characters
	ChunkOverlap int    `yaml:"chunk_overlap"` // Overlap in characters
}

// IndexConfig configures the persisted vector index.
type IndexConfig struct {
	Dir string `yaml:"dir"` // Default: data/index
	// WatchCorpus enables the fsnotify watcher that marks the cached
	// index handle stale when corpus files change.
	WatchCorpus bool `yaml:"watch_corpus"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // openai, genai, ollama

	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"` // Default: text-embedding-3-small

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"` // Default: gemini-embedding-001

	OllamaEndpoint string `yaml:"ollama_endpoint"` // Default: http://localhost:11434
	OllamaModel    string `yaml:"ollama_model"`    // Default: embeddinggemma
}

// GenerationConfig configures the text-generation client.
type GenerationConfig struct {
	Provider string `yaml:"provider"` // openai, genai

	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"` // Default: gpt-4o-mini

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"` // Default: gemini-2.0-flash
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Corpus: CorpusConfig{
			Dir:          filepath.Join("data", "docs"),
			ChunkSize:    800,
			ChunkOverlap: 120,
		},
		Index: IndexConfig{
			Dir: filepath.Join("data", "index"),
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			OpenAIModel:    "text-embedding-3-small",
			GenAIModel:     "gemini-embedding-001",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			OpenAIModel: "gpt-4o-mini",
			GenAIModel:  "gemini-2.0-flash",
		},
		Logging: logging.Settings{
			Level: "info",
		},
	}
}

// Load reads .briefsmith/config.yaml under the workspace, falling back to
// defaults when the file is absent, then applies environment overrides.
// A missing config file is not an error; a malformed one is.
func Load(workspace string) (Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(workspace, ".briefsmith", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
// OPENAI_API_KEY / GEMINI_API_KEY cover both embedding and generation so a
// single exported key is enough for the common case.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.OpenAIAPIKey = v
		cfg.Generation.OpenAIAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Embedding.GenAIAPIKey = v
		cfg.Generation.GenAIAPIKey = v
	}
	if v := os.Getenv("BRIEFSMITH_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("BRIEFSMITH_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("BRIEFSMITH_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("BRIEFSMITH_GENERATION_PROVIDER"); v != "" {
		cfg.Generation.Provider = v
	}
	if v := os.Getenv("BRIEFSMITH_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.DebugMode = b
		}
	}
}

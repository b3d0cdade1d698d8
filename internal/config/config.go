// Package config loads tbrag settings from defaults, a TOML file, a .env file
// and TBRAG_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Auth       AuthConfig
	Storage    StorageConfig
	Blob       BlobConfig
	Embedding  EmbeddingConfig
	Generation GenerationConfig
	Vector     VectorConfig
	Retrieval  RetrievalConfig
	Ingest     IngestConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// RateLimitPerMinute bounds /api/query requests per client address.
	RateLimitPerMinute int
	// CORSOrigins is a comma-separated list of allowed browser origins.
	CORSOrigins string
}

type AuthConfig struct {
	URL     string
	Timeout string
}

type StorageConfig struct {
	DataDir string
}

// BlobConfig locates the generated-chapter store. An empty Dir places it
// under the data directory.
type BlobConfig struct {
	Dir string
}

type EmbeddingConfig struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Dimension         int
	RequestsPerSecond float64
}

type GenerationConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  string
}

// VectorConfig selects the similarity index. Backend is "qdrant" or "sqlite".
type VectorConfig struct {
	Backend    string
	URL        string
	APIKey     string
	Collection string
}

type RetrievalConfig struct {
	TopK int
}

type IngestConfig struct {
	DocsDir     string
	ChunkSize   int
	Overlap     int
	Concurrency int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			RateLimitPerMinute: 10,
			CORSOrigins:        "http://localhost:3000",
		},
		Auth: AuthConfig{
			URL:     "http://localhost:3001",
			Timeout: "5s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Embedding: EmbeddingConfig{
			Provider:          "openai",
			Model:             "text-embedding-ada-002",
			Dimension:         1536,
			RequestsPerSecond: 5,
		},
		Generation: GenerationConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  "120s",
		},
		Vector: VectorConfig{
			Backend:    "qdrant",
			URL:        "http://localhost:6333",
			Collection: "textbook_chunks",
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Ingest: IngestConfig{
			DocsDir:     "./website/docs",
			ChunkSize:   800,
			Overlap:     200,
			Concurrency: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// providerKeyEnv lists the conventional API key variables consulted when the
// TBRAG_* variable for a provider key is unset.
var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Load reads the TOML file at $XDG_CONFIG_HOME/tbrag/config.toml, then .env
// in the working directory, then TBRAG_* environment variables.
// API keys are read from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), ".env")
}

func loadFromPath(path string, envFiles ...string) (Config, error) {
	return loadWith(newFileBackend(path), envFiles...)
}

func loadWith(b ConfigBackend, envFiles ...string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	for _, f := range envFiles {
		// godotenv never overrides variables already present in the process.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	applyEnvOverrides(&cfg)
	applyProviderKeys(&cfg)

	if cfg.Blob.Dir == "" {
		cfg.Blob.Dir = filepath.Join(cfg.Storage.DataDir, "blobs")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyProviderKeys(cfg *Config) {
	if cfg.Embedding.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.Embedding.Provider]; ok {
			cfg.Embedding.APIKey = os.Getenv(env)
		}
	}
	if cfg.Generation.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.Generation.Provider]; ok {
			cfg.Generation.APIKey = os.Getenv(env)
		}
	}
}

func (c Config) validate() error {
	var problems []string

	if c.Embedding.Provider != "ollama" && c.Embedding.APIKey == "" {
		problems = append(problems, fmt.Sprintf(
			"embedding API key for provider %q (set TBRAG_EMBEDDING_API_KEY or %s)",
			c.Embedding.Provider, providerKeyEnv[c.Embedding.Provider]))
	}
	if c.Generation.Provider != "ollama" && c.Generation.APIKey == "" {
		problems = append(problems, fmt.Sprintf(
			"generation API key for provider %q (set TBRAG_GENERATION_API_KEY or %s)",
			c.Generation.Provider, providerKeyEnv[c.Generation.Provider]))
	}
	if len(problems) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(problems, "; "))
	}

	switch c.Vector.Backend {
	case "qdrant":
		if c.Vector.URL == "" {
			return fmt.Errorf("invalid config: vector.url is required for the qdrant backend")
		}
	case "sqlite":
	default:
		return fmt.Errorf("invalid config: unknown vector.backend %q", c.Vector.Backend)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("invalid config: embedding.dimension must be positive")
	}
	if _, err := c.GenerationTimeout(); err != nil {
		return fmt.Errorf("invalid config: generation.timeout: %w", err)
	}
	if _, err := c.AuthTimeout(); err != nil {
		return fmt.Errorf("invalid config: auth.timeout: %w", err)
	}
	return nil
}

// GenerationTimeout parses Generation.Timeout.
func (c Config) GenerationTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Generation.Timeout)
}

// AuthTimeout parses Auth.Timeout.
func (c Config) AuthTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Auth.Timeout)
}

// AllowedOrigins splits Server.CORSOrigins.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tbrag")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tbrag")
}

func configFilePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tbrag", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tbrag", "config.toml")
}

// Package config provides configuration loading and structs for the notevec server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Chunking strategies.
const (
	StrategyCharacter = "character"
	StrategyParagraph = "paragraph"
)

// Environment variables that override file settings.
const (
	EnvServiceURL = "NOTEVEC_SERVICE_URL"
	EnvModelName  = "NOTEVEC_MODEL_NAME"
	EnvVaultDir   = "NOTEVEC_VAULT_DIR"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Vault     VaultConfig     `yaml:"vault"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the persisted index and the metadata database.
type StorageConfig struct {
	IndexPath    string `yaml:"index_path"`
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	ServiceURL  string `yaml:"service_url"`
	ModelName   string `yaml:"model_name"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	CacheSize   int    `yaml:"cache_size"`
}

// SearchConfig holds query settings.
type SearchConfig struct {
	Threshold      float64 `yaml:"threshold"`
	MaxResults     int     `yaml:"max_results"`
	MinQueryLength int     `yaml:"min_query_length"`
	// DebounceMs is the input debounce for interactive front ends.
	DebounceMs int `yaml:"debounce_ms"`
}

// ChunkingConfig holds document chunking settings.
// ChunkSize is a pointer because 0 is meaningful (whole document, no chunking).
type ChunkingConfig struct {
	ChunkSize    *int   `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Strategy     string `yaml:"strategy"`
}

// Size returns the chunk size; defaults to DefaultChunkSize when unset.
func (c *ChunkingConfig) Size() int {
	if c.ChunkSize != nil {
		return *c.ChunkSize
	}
	return DefaultChunkSize
}

// VaultConfig holds the notes directory and change-event settings.
type VaultConfig struct {
	Directory                string   `yaml:"directory"`
	Extensions               []string `yaml:"extensions"`
	Recursive                *bool    `yaml:"recursive"`
	FileProcessingDebounceMs int      `yaml:"file_processing_debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (v *VaultConfig) RecursiveOrDefault() bool {
	if v.Recursive != nil {
		return *v.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Vault.Directory = expandPath(cfg.Vault.Directory, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides service, model and vault settings from the environment.
// Call after godotenv has loaded any .env file.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvServiceURL)); v != "" {
		cfg.Embedding.ServiceURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModelName)); v != "" {
		cfg.Embedding.ModelName = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvVaultDir)); v != "" {
		if abs, err := filepath.Abs(v); err == nil {
			v = abs
		}
		cfg.Vault.Directory = v
	}
}

// Validate reports settings the core cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		errs = append(errs, fmt.Errorf("search.threshold must be within [0,1], got %g", c.Search.Threshold))
	}
	if c.Search.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults))
	}
	if c.Chunking.Size() < 0 {
		errs = append(errs, fmt.Errorf("chunking.chunk_size must not be negative, got %d", c.Chunking.Size()))
	}
	if c.Chunking.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunking.chunk_overlap must not be negative, got %d", c.Chunking.ChunkOverlap))
	}
	switch c.Chunking.Strategy {
	case StrategyCharacter, StrategyParagraph:
	default:
		errs = append(errs, fmt.Errorf("chunking.strategy must be %q or %q, got %q", StrategyCharacter, StrategyParagraph, c.Chunking.Strategy))
	}
	if strings.TrimSpace(c.Embedding.ServiceURL) == "" {
		errs = append(errs, errors.New("embedding.service_url is required"))
	}
	if strings.TrimSpace(c.Embedding.ModelName) == "" {
		errs = append(errs, errors.New("embedding.model_name is required"))
	}
	return errors.Join(errs...)
}

// Warnings reports settings that work only through a fallback.
func (c *Config) Warnings() []string {
	var out []string
	size := c.Chunking.Size()
	if c.Chunking.Strategy == StrategyCharacter && size > 0 && c.Chunking.ChunkOverlap >= size {
		out = append(out, fmt.Sprintf("chunking.chunk_overlap (%d) >= chunk_size (%d); chunks will not overlap", c.Chunking.ChunkOverlap, size))
	}
	return out
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

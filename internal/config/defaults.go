package config

// DefaultChunkSize is used when chunking.chunk_size is absent from the config.
const DefaultChunkSize = 500

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "./data/index.json"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/meta.db"
	}
	if cfg.Embedding.ServiceURL == "" {
		cfg.Embedding.ServiceURL = "http://localhost:11434"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "nomic-embed-text"
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 5000
	}
	// A threshold of 0 is valid (no cutoff) and is left alone.
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 10
	}
	if cfg.Search.MinQueryLength == 0 {
		cfg.Search.MinQueryLength = 3
	}
	if cfg.Search.DebounceMs == 0 {
		cfg.Search.DebounceMs = 300
	}
	if cfg.Chunking.ChunkSize == nil {
		size := DefaultChunkSize
		cfg.Chunking.ChunkSize = &size
	}
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = StrategyCharacter
	}
	if cfg.Vault.Directory == "" {
		cfg.Vault.Directory = "./vault"
	}
	if cfg.Vault.Extensions == nil {
		cfg.Vault.Extensions = []string{".md", ".txt"}
	}
	if cfg.Vault.Recursive == nil {
		t := true
		cfg.Vault.Recursive = &t
	}
	if cfg.Vault.FileProcessingDebounceMs == 0 {
		cfg.Vault.FileProcessingDebounceMs = 1000
	}
}

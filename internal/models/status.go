package models

import "time"

// ServiceStatus is the cached readiness of the embedding service.
type ServiceStatus struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// StatusConfig is the subset of configuration reported by status.
type StatusConfig struct {
	ServiceURL     string  `json:"service_url"`
	ModelName      string  `json:"model_name"`
	Threshold      float64 `json:"threshold"`
	MaxResults     int     `json:"max_results"`
	DebounceMs     int     `json:"debounce_ms"`
	ChunkSize      int     `json:"chunk_size"`
	ChunkOverlap   int     `json:"chunk_overlap"`
	ChunkStrategy  string  `json:"chunk_strategy"`
	VaultDirectory string  `json:"vault_directory"`
	IndexPath      string  `json:"index_path"`
	DatabasePath   string  `json:"database_path"`
}

// Status is the shape of GET /api/v1/status and of `notevec status`.
type Status struct {
	Documents        int            `json:"documents"`
	Chunks           int            `json:"chunks"`
	Dimensions       []int          `json:"dimensions"`
	IndexerState     string         `json:"indexer_state"`
	Progress         *Progress      `json:"indexer_status,omitempty"`
	LastRun          *RunSummary    `json:"last_run,omitempty"`
	LastSavedAt      *time.Time     `json:"last_saved_at,omitempty"`
	Index            *IndexMetadata `json:"index,omitempty"`
	EmbeddingService *ServiceStatus `json:"embedding_service,omitempty"`
	DiskUsageBytes   *int64         `json:"disk_usage_bytes,omitempty"`
	Config           *StatusConfig  `json:"config,omitempty"`
}

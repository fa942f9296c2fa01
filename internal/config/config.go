// Package config manages engram's runtime configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named or defaulted in the core specification.
// Field order is grouped by concern rather than alignment-optimized, since
// the struct is small relative to the teacher's.
type Config struct {
	// Store
	DBPath   string `json:"db_path" yaml:"db_path"`
	MaxConns int    `json:"max_conns" yaml:"max_conns"`

	// Embedding provider
	EmbeddingProvider string `json:"embedding_provider" yaml:"embedding_provider"` // "openai" or "local"
	EmbeddingModel    string `json:"embedding_model" yaml:"embedding_model"`
	EmbeddingAPIKey   string `json:"embedding_api_key" yaml:"embedding_api_key"`
	EmbeddingBaseURL  string `json:"embedding_base_url" yaml:"embedding_base_url"`
	EmbeddingDims     int    `json:"embedding_dimensions" yaml:"embedding_dimensions"`

	// Vector search (C6)
	VectorMaxCandidates int     `json:"vector_max_candidates" yaml:"vector_max_candidates"`
	VectorThreshold     float64 `json:"vector_threshold" yaml:"vector_threshold"`

	// Lexical search (C7)
	FTSDefaultLimit int `json:"fts_default_limit" yaml:"fts_default_limit"`
	FTSMaxTerms     int `json:"fts_max_terms" yaml:"fts_max_terms"`
	FTSMaxQueryLen  int `json:"fts_max_query_len" yaml:"fts_max_query_len"`

	// Scoring (C8)
	RecencyHalfLifeHours       float64 `json:"recency_half_life_hours" yaml:"recency_half_life_hours"`
	AccessRecencyHalfLifeHours float64 `json:"access_recency_half_life_hours" yaml:"access_recency_half_life_hours"`
	HybridBoost                float64 `json:"hybrid_boost" yaml:"hybrid_boost"`

	// Observation writer (C4)
	DedupWindowMS int `json:"dedup_window_ms" yaml:"dedup_window_ms"`

	// Consolidation (C10)
	ConsolidationMinGroupSize int `json:"consolidation_min_group_size" yaml:"consolidation_min_group_size"`
	StaleCheckBatchSize       int `json:"stale_check_batch_size" yaml:"stale_check_batch_size"`

	// Retention (C11); any value <= 0 disables deletion for that class.
	RetentionObsDays       int `json:"retention_obs_days" yaml:"retention_obs_days"`
	RetentionSummaryDays   int `json:"retention_summary_days" yaml:"retention_summary_days"`
	RetentionPromptDays    int `json:"retention_prompt_days" yaml:"retention_prompt_days"`
	RetentionKnowledgeDays int `json:"retention_knowledge_days" yaml:"retention_knowledge_days"`

	// Maintenance scheduling
	MaintenanceEnabled       bool `json:"maintenance_enabled" yaml:"maintenance_enabled"`
	MaintenanceIntervalHours int  `json:"maintenance_interval_hours" yaml:"maintenance_interval_hours"`

	// Context assembler (C12)
	DefaultTokenBudget int `json:"default_token_budget" yaml:"default_token_budget"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns engram's data directory (~/.engram).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".engram")
}

// DBPath returns the default database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "engram.db")
}

// SettingsPath returns the JSON settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// SettingsPathYAML returns the YAML settings file path, checked if the
// JSON one is absent.
func SettingsPathYAML() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory with owner-only permissions.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0700)
}

// Default returns the specification's default configuration.
func Default() *Config {
	return &Config{
		DBPath:   DBPath(),
		MaxConns: 4,

		EmbeddingProvider: "local",
		EmbeddingModel:    "text-embedding-3-small",
		EmbeddingBaseURL:  "https://api.openai.com/v1",
		EmbeddingDims:     384,

		VectorMaxCandidates: 2000,
		VectorThreshold:     0.3,

		FTSDefaultLimit: 50,
		FTSMaxTerms:     100,
		FTSMaxQueryLen:  10000,

		RecencyHalfLifeHours:       168,
		AccessRecencyHalfLifeHours: 48,
		HybridBoost:                1.15,

		DedupWindowMS: 30000,

		ConsolidationMinGroupSize: 3,
		StaleCheckBatchSize:       500,

		RetentionObsDays:       0,
		RetentionSummaryDays:   0,
		RetentionPromptDays:    0,
		RetentionKnowledgeDays: 0,

		MaintenanceEnabled:       true,
		MaintenanceIntervalHours: 6,

		DefaultTokenBudget: 8000,
	}
}

// Load reads the settings file (JSON, or YAML if the JSON file is absent),
// merging found values over the defaults. Environment variables prefixed
// ENGRAM_ override whichever file value was loaded.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(SettingsPath()); err == nil {
		var overrides map[string]interface{}
		if jsonErr := json.Unmarshal(data, &overrides); jsonErr == nil {
			applyOverrides(cfg, overrides)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	} else if data, yerr := os.ReadFile(SettingsPathYAML()); yerr == nil {
		var overrides map[string]interface{}
		if yamlErr := yaml.Unmarshal(data, &overrides); yamlErr == nil {
			applyOverrides(cfg, overrides)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyOverrides(cfg *Config, overrides map[string]interface{}) {
	if v, ok := overrides["db_path"].(string); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := overrides["embedding_provider"].(string); ok && v != "" {
		cfg.EmbeddingProvider = v
	}
	if v, ok := overrides["embedding_model"].(string); ok && v != "" {
		cfg.EmbeddingModel = v
	}
	if v, ok := overrides["embedding_api_key"].(string); ok && v != "" {
		cfg.EmbeddingAPIKey = v
	}
	if v, ok := overrides["vector_max_candidates"].(float64); ok && v > 0 {
		cfg.VectorMaxCandidates = int(v)
	}
	if v, ok := overrides["vector_threshold"].(float64); ok {
		cfg.VectorThreshold = v
	}
	if v, ok := overrides["retention_obs_days"].(float64); ok {
		cfg.RetentionObsDays = int(v)
	}
	if v, ok := overrides["retention_summary_days"].(float64); ok {
		cfg.RetentionSummaryDays = int(v)
	}
	if v, ok := overrides["retention_prompt_days"].(float64); ok {
		cfg.RetentionPromptDays = int(v)
	}
	if v, ok := overrides["retention_knowledge_days"].(float64); ok {
		cfg.RetentionKnowledgeDays = int(v)
	}
	if v, ok := overrides["maintenance_enabled"].(bool); ok {
		cfg.MaintenanceEnabled = v
	}
	if v, ok := overrides["maintenance_interval_hours"].(float64); ok && v > 0 {
		cfg.MaintenanceIntervalHours = int(v)
	}
	if v, ok := overrides["default_token_budget"].(float64); ok && v > 0 {
		cfg.DefaultTokenBudget = int(v)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ENGRAM_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ENGRAM_EMBEDDING_PROVIDER"); v != "" {
		cfg.EmbeddingProvider = v
	}
	if v := os.Getenv("ENGRAM_EMBEDDING_API_KEY"); v != "" {
		cfg.EmbeddingAPIKey = v
	}
}

// Get returns the process-wide configuration, loading it on first call.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

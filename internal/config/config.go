// Package config loads mnemora's configuration from an optional YAML file
// overlaid with MNEMORA_-prefixed environment variables, following the same
// layered approach and helper shape as the reference memory-engine config
// loader this package is modeled on.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable knob for the core. Field groups mirror the
// components in spec §2.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Graph     GraphConfig     `yaml:"graph"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	LLM       LLMConfig       `yaml:"llm"`
	Security  SecurityConfig  `yaml:"security"`
}

// StoreConfig configures the Memory Store (§4.A).
type StoreConfig struct {
	RootDir string `yaml:"root_dir"` // default: ./data/memories
}

// CacheConfig configures the embedding cache (§4.C).
type CacheConfig struct {
	DBPath          string `yaml:"db_path"` // default: ./data/mnemora.db
	LRUCapacity     int    `yaml:"lru_capacity"`
	CleanupDays     int    `yaml:"cleanup_days"`
	SemanticBuckets int    `yaml:"semantic_buckets"`
}

// RetrievalConfig configures hybrid retrieval and the search cache (§4.D).
type RetrievalConfig struct {
	CacheTTLHours   int `yaml:"cache_ttl_hours"`
	CacheMinResults int `yaml:"cache_min_results"`
	CacheMaxResults int `yaml:"cache_max_results"`
	CacheCapacity   int `yaml:"cache_capacity"`
}

// GraphConfig configures the relationship graph and PageRank (§4.E).
type GraphConfig struct {
	Damping       float64 `yaml:"damping"`
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
}

// LifecycleConfig configures GC, reinforcement, and related thresholds
// (§4.H, §4.I).
type LifecycleConfig struct {
	GiniThreshold       float64 `yaml:"gini_threshold"`
	NeglectDays         int     `yaml:"neglect_days"`
	FlashbulbMultiplier float64 `yaml:"flashbulb_multiplier"`
}

// LLMConfig configures the Embedder/LLM collaborators and the circuit
// breakers guarding them (§5, §6).
type LLMConfig struct {
	Provider           string  `yaml:"provider"` // "ollama", "heuristic" (default when unavailable)
	OllamaURL          string  `yaml:"ollama_url"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	EmbeddingDims      int     `yaml:"embedding_dims"`
	CompletionModel    string  `yaml:"completion_model"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs"`
	BreakerMaxFailures uint32  `yaml:"breaker_max_failures"`
	BreakerTimeoutSecs int     `yaml:"breaker_timeout_secs"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

// SecurityConfig holds deployment-mode flags.
type SecurityConfig struct {
	Mode string `yaml:"mode"` // "development", "production"
}

// Load builds a Config from defaults, an optional YAML file at path (skipped
// when path is empty or missing), and MNEMORA_-prefixed environment
// variables, in that precedence order (env wins).
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			RootDir: "./data/memories",
		},
		Cache: CacheConfig{
			DBPath:          "./data/mnemora.db",
			LRUCapacity:     1000,
			CleanupDays:     90,
			SemanticBuckets: 16,
		},
		Retrieval: RetrievalConfig{
			CacheTTLHours:   24,
			CacheMinResults: 3,
			CacheMaxResults: 100,
			CacheCapacity:   500,
		},
		Graph: GraphConfig{
			Damping:       0.85,
			MaxIterations: 20,
			Tolerance:     1e-6,
		},
		Lifecycle: LifecycleConfig{
			GiniThreshold:       0.7,
			NeglectDays:         30,
			FlashbulbMultiplier: 2.0,
		},
		LLM: LLMConfig{
			Provider:           "heuristic",
			OllamaURL:          "http://localhost:11434",
			EmbeddingModel:     "nomic-embed-text",
			EmbeddingDims:      768,
			CompletionModel:    "qwen2.5:7b",
			RequestTimeoutSecs: 30,
			BreakerMaxFailures: 5,
			BreakerTimeoutSecs: 600,
			RateLimitPerSecond: 5,
			RateLimitBurst:     10,
		},
		Security: SecurityConfig{
			Mode: "development",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Store.RootDir = getEnv("MNEMORA_STORE_ROOT", cfg.Store.RootDir)
	cfg.Cache.DBPath = getEnv("MNEMORA_DB_PATH", cfg.Cache.DBPath)
	cfg.Cache.LRUCapacity = getEnvInt("MNEMORA_LRU_CAPACITY", cfg.Cache.LRUCapacity)
	cfg.Cache.CleanupDays = getEnvInt("MNEMORA_CACHE_CLEANUP_DAYS", cfg.Cache.CleanupDays)
	cfg.Cache.SemanticBuckets = getEnvInt("MNEMORA_SEMANTIC_BUCKETS", cfg.Cache.SemanticBuckets)
	cfg.Retrieval.CacheTTLHours = getEnvInt("MNEMORA_SEARCH_CACHE_TTL_HOURS", cfg.Retrieval.CacheTTLHours)
	cfg.Retrieval.CacheCapacity = getEnvInt("MNEMORA_SEARCH_CACHE_CAPACITY", cfg.Retrieval.CacheCapacity)
	cfg.Graph.Damping = getEnvFloat("MNEMORA_PAGERANK_DAMPING", cfg.Graph.Damping)
	cfg.Graph.MaxIterations = getEnvInt("MNEMORA_PAGERANK_MAX_ITERATIONS", cfg.Graph.MaxIterations)
	cfg.Graph.Tolerance = getEnvFloat("MNEMORA_PAGERANK_TOLERANCE", cfg.Graph.Tolerance)
	cfg.Lifecycle.GiniThreshold = getEnvFloat("MNEMORA_GINI_THRESHOLD", cfg.Lifecycle.GiniThreshold)
	cfg.Lifecycle.NeglectDays = getEnvInt("MNEMORA_NEGLECT_DAYS", cfg.Lifecycle.NeglectDays)
	cfg.LLM.Provider = getEnv("MNEMORA_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OllamaURL = getEnv("MNEMORA_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.EmbeddingModel = getEnv("MNEMORA_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.CompletionModel = getEnv("MNEMORA_COMPLETION_MODEL", cfg.LLM.CompletionModel)
	cfg.LLM.BreakerMaxFailures = uint32(getEnvInt("MNEMORA_BREAKER_MAX_FAILURES", int(cfg.LLM.BreakerMaxFailures)))
	cfg.LLM.BreakerTimeoutSecs = getEnvInt("MNEMORA_BREAKER_TIMEOUT_SECS", cfg.LLM.BreakerTimeoutSecs)
	cfg.Security.Mode = getEnv("MNEMORA_SECURITY_MODE", cfg.Security.Mode)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if iv, err := strconv.Atoi(v); err == nil {
			return iv
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if fv, err := strconv.ParseFloat(v, 64); err == nil {
			return fv
		}
	}
	return defaultValue
}

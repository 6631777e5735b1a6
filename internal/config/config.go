package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	AI            AIConfig         `json:"ai"`
	Cache         CacheConfig      `json:"cache"`
	Feature       FeatureConfig    `json:"feature"`
	Jobs          JobConfig        `json:"jobs"`
	CORSAllowlist []string         `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type AIConfig struct {
	Provider            string             `json:"provider"`
	Args                interface{}        `json:"args"`
	CompletionModel     string             `json:"completion_model"`
	EmbeddingModel      string             `json:"embedding_model"`
	Fallbacks           []FallbackAIConfig `json:"fallbacks"`
	TimeoutSeconds      int                `json:"timeout_seconds"`
	MaxInputChars       int                `json:"max_input_chars"`
	EmbedCacheSize      int                `json:"embed_cache_size"`
	EmbedCacheTTLMinute int                `json:"embed_cache_ttl_minutes"`
}

// FallbackAIConfig is a secondary provider tried when the primary one
// fails. Fallbacks are tried in the order configured. EmbeddingModel,
// when set, must name the same model as the primary: embeddings from
// different models are not comparable.
type FallbackAIConfig struct {
	Provider        string      `json:"provider"`
	Args            interface{} `json:"args"`
	CompletionModel string      `json:"completion_model"`
	EmbeddingModel  string      `json:"embedding_model"`
}

type CacheConfig struct {
	Response SimilarityCacheConfig `json:"response"`
	Route    SimilarityCacheConfig `json:"route"`
	Tool     ToolCacheConfig       `json:"tool"`
}

// SimilarityCacheConfig tunes one embedding-similarity cache tier.
// Threshold is the minimum cosine similarity for a hit; anything below
// probes through to live computation.
type SimilarityCacheConfig struct {
	Threshold  float64 `json:"threshold"`
	TTLHours   int     `json:"ttl_hours"`
	TimeoutMS  int     `json:"timeout_ms"`
	ProbeLimit int     `json:"probe_limit"`
}

func (c SimilarityCacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

func (c SimilarityCacheConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type ToolCacheConfig struct {
	DefaultTTLMinutes int            `json:"default_ttl_minutes"`
	TTLMinutesByTool  map[string]int `json:"ttl_minutes_by_tool"`
	TimeoutMS         int            `json:"timeout_ms"`
}

func (c ToolCacheConfig) TTLFor(tool string) time.Duration {
	if m, ok := c.TTLMinutesByTool[tool]; ok && m > 0 {
		return time.Duration(m) * time.Minute
	}
	return time.Duration(c.DefaultTTLMinutes) * time.Minute
}

func (c ToolCacheConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type FeatureConfig struct {
	TechnicalTTLMinutes int      `json:"technical_ttl_minutes"`
	RiskTTLMinutes      int      `json:"risk_ttl_minutes"`
	ValuationTTLMinutes int      `json:"valuation_ttl_minutes"`
	Symbols             []string `json:"symbols"`
}

type JobConfig struct {
	FeatureRefreshSpec string `json:"feature_refresh_spec"`
	CacheCleanupSpec   string `json:"cache_cleanup_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.CompletionModel == "" || cfg.AI.EmbeddingModel == "" {
		return nil, fmt.Errorf("ai.completion_model and ai.embedding_model are required")
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 30
	}
	if c.AI.EmbedCacheSize == 0 {
		c.AI.EmbedCacheSize = 10000
	}
	if c.AI.EmbedCacheTTLMinute == 0 {
		c.AI.EmbedCacheTTLMinute = 120
	}
	if c.Cache.Response.Threshold == 0 {
		c.Cache.Response.Threshold = 0.92
	}
	if c.Cache.Response.TTLHours == 0 {
		c.Cache.Response.TTLHours = 24
	}
	if c.Cache.Route.Threshold == 0 {
		c.Cache.Route.Threshold = 0.88
	}
	if c.Cache.Route.TTLHours == 0 {
		// routing decisions do not depend on live data
		c.Cache.Route.TTLHours = 7 * 24
	}
	if c.Cache.Response.ProbeLimit == 0 {
		c.Cache.Response.ProbeLimit = 5
	}
	if c.Cache.Route.ProbeLimit == 0 {
		c.Cache.Route.ProbeLimit = 5
	}
	if c.Cache.Response.TimeoutMS == 0 {
		c.Cache.Response.TimeoutMS = 1000
	}
	if c.Cache.Route.TimeoutMS == 0 {
		c.Cache.Route.TimeoutMS = 1000
	}
	if c.Cache.Tool.DefaultTTLMinutes == 0 {
		c.Cache.Tool.DefaultTTLMinutes = 60
	}
	if c.Cache.Tool.TimeoutMS == 0 {
		c.Cache.Tool.TimeoutMS = 500
	}
	if c.Feature.TechnicalTTLMinutes == 0 {
		c.Feature.TechnicalTTLMinutes = 60
	}
	if c.Feature.RiskTTLMinutes == 0 {
		c.Feature.RiskTTLMinutes = 24 * 60
	}
	if c.Feature.ValuationTTLMinutes == 0 {
		c.Feature.ValuationTTLMinutes = 7 * 24 * 60
	}
	if c.Jobs.FeatureRefreshSpec == "" {
		c.Jobs.FeatureRefreshSpec = "*/30 * * * *"
	}
	if c.Jobs.CacheCleanupSpec == "" {
		c.Jobs.CacheCleanupSpec = "15 * * * *"
	}
}

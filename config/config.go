package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig     ServerConfig     `json:"server"`
	LoggingConfig    LoggingConfig    `json:"logging"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	RedisConfig      RedisConfig      `json:"redis"`
	DetectionConfig  DetectionConfig  `json:"detection"`
	ExecutorConfig   ExecutorConfig   `json:"executor"`
	EnrichmentConfig EnrichmentConfig `json:"enrichment"`
	BridgeConfig     BridgeConfig     `json:"bridge"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for dedup and execution state
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DetectionConfig holds pattern detection tuning
type DetectionConfig struct {
	ConfidenceThreshold   float64 `json:"confidence_threshold"`
	MinAdvanceHours       float64 `json:"min_advance_hours"`
	EnrichmentConcurrency int     `json:"enrichment_concurrency"`
	EnrichmentTimeout     int     `json:"enrichment_timeout"` // Seconds
	CorrelationEnabled    bool    `json:"correlation_enabled"`
}

// ExecutorConfig holds multi-phase execution tuning
type ExecutorConfig struct {
	MaxPhasesPerCall int `json:"max_phases_per_call"`
}

// EnrichmentConfig holds the LLM enrichment provider configuration
type EnrichmentConfig struct {
	Enabled        bool   `json:"enabled"`
	Provider       string `json:"provider"` // "claude", "openai", or "deepseek"
	ClaudeAPIKey   string `json:"claude_api_key"`
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`
	Model          string `json:"model"`
	CacheTTL       int    `json:"cache_ttl"` // Seconds
}

// BridgeConfig holds trade target emission tuning
type BridgeConfig struct {
	MinConfidence float64 `json:"min_confidence"`
	MaxRisk       string  `json:"max_risk"` // "low", "medium", or "high"
	DedupWindow   int     `json:"dedup_window"` // Seconds
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", "true") == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "postgres")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", "early_listing_bot")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", "disable")

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "true") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Detection config
	cfg.DetectionConfig.ConfidenceThreshold = getEnvFloatOrDefault("DETECTION_CONFIDENCE_THRESHOLD", 70)
	cfg.DetectionConfig.MinAdvanceHours = getEnvFloatOrDefault("DETECTION_MIN_ADVANCE_HOURS", 3.5)
	cfg.DetectionConfig.EnrichmentConcurrency = getEnvIntOrDefault("DETECTION_ENRICHMENT_CONCURRENCY", 5)
	cfg.DetectionConfig.EnrichmentTimeout = getEnvIntOrDefault("DETECTION_ENRICHMENT_TIMEOUT", 10)
	cfg.DetectionConfig.CorrelationEnabled = getEnvOrDefault("DETECTION_CORRELATION_ENABLED", "true") == "true"

	// Executor config
	cfg.ExecutorConfig.MaxPhasesPerCall = getEnvIntOrDefault("EXECUTOR_MAX_PHASES_PER_CALL", 3)

	// Enrichment config
	cfg.EnrichmentConfig.Enabled = getEnvOrDefault("ENRICHMENT_ENABLED", "false") == "true"
	cfg.EnrichmentConfig.Provider = getEnvOrDefault("ENRICHMENT_PROVIDER", "claude")
	cfg.EnrichmentConfig.ClaudeAPIKey = getEnvOrDefault("ENRICHMENT_CLAUDE_API_KEY", cfg.EnrichmentConfig.ClaudeAPIKey)
	cfg.EnrichmentConfig.OpenAIAPIKey = getEnvOrDefault("ENRICHMENT_OPENAI_API_KEY", cfg.EnrichmentConfig.OpenAIAPIKey)
	cfg.EnrichmentConfig.DeepSeekAPIKey = getEnvOrDefault("ENRICHMENT_DEEPSEEK_API_KEY", cfg.EnrichmentConfig.DeepSeekAPIKey)
	cfg.EnrichmentConfig.Model = getEnvOrDefault("ENRICHMENT_MODEL", "claude-sonnet-4-20250514")
	cfg.EnrichmentConfig.CacheTTL = getEnvIntOrDefault("ENRICHMENT_CACHE_TTL", 900)

	// Bridge config
	cfg.BridgeConfig.MinConfidence = getEnvFloatOrDefault("BRIDGE_MIN_CONFIDENCE", 70)
	cfg.BridgeConfig.MaxRisk = getEnvOrDefault("BRIDGE_MAX_RISK", "medium")
	cfg.BridgeConfig.DedupWindow = getEnvIntOrDefault("BRIDGE_DEDUP_WINDOW", 1800)
}

// APIKey returns the key matching the configured enrichment provider.
func (c *EnrichmentConfig) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	default:
		return c.ClaudeAPIKey
	}
}

// CacheTTLDuration returns the cache TTL as a duration.
func (c *EnrichmentConfig) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// DedupWindowDuration returns the dedup window as a duration.
func (c *BridgeConfig) DedupWindowDuration() time.Duration {
	return time.Duration(c.DedupWindow) * time.Second
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		DatabaseConfig: DatabaseConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "early_listing_bot",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Enabled:  true,
			Address:  "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
		DetectionConfig: DetectionConfig{
			ConfidenceThreshold:   70,
			MinAdvanceHours:       3.5,
			EnrichmentConcurrency: 5,
			EnrichmentTimeout:     10,
			CorrelationEnabled:    true,
		},
		ExecutorConfig: ExecutorConfig{
			MaxPhasesPerCall: 3,
		},
		EnrichmentConfig: EnrichmentConfig{
			Enabled:  false,
			Provider: "claude",
			Model:    "claude-sonnet-4-20250514",
			CacheTTL: 900,
		},
		BridgeConfig: BridgeConfig{
			MinConfidence: 70,
			MaxRisk:       "medium",
			DedupWindow:   1800,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

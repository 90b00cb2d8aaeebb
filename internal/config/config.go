// Package config loads the orchestration kernel's configuration from the
// environment (via godotenv + os.Getenv, exactly as the teacher's
// cmd/server/main.go does) layered with an optional YAML config file for
// the options SPEC_FULL.md §1.3 says the teacher never needed: per-tier
// model ids and pricing, timeouts, and kernel-specific toggles.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// TierPricing holds the fractional-currency-unit rates used by telemetry's
// cost calculation (spec §4.9, §6.5).
type TierPricing struct {
	InputPerMTok      float64 `yaml:"input_per_mtok"`
	OutputPerMTok     float64 `yaml:"output_per_mtok"`
	CacheReadPerMTok  float64 `yaml:"cache_read_per_mtok"`
	CacheWritePerMTok float64 `yaml:"cache_write_per_mtok"`
}

// Config is the orchestrator's complete configuration surface (spec §6.5).
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	CORSOrigins string `yaml:"cors_origins"`

	AnthropicAPIKey string `yaml:"-"` // never read from the YAML file

	ModelFast       string `yaml:"model_fast"`
	ModelStructural string `yaml:"model_structural"`
	ModelAnalyst    string `yaml:"model_analyst"`

	PriceFast       TierPricing `yaml:"price_fast"`
	PriceStructural TierPricing `yaml:"price_structural"`
	PriceAnalyst    TierPricing `yaml:"price_analyst"`

	HistoryWindowTurns int `yaml:"history_window_turns"`

	TierTimeoutMsFast       int `yaml:"tier_timeout_ms_fast"`
	TierTimeoutMsStructural int `yaml:"tier_timeout_ms_structural"`
	TierTimeoutMsAnalyst    int `yaml:"tier_timeout_ms_analyst"`

	BatchFlushTimeoutMs     int `yaml:"batch_flush_timeout_ms"`
	ParseFailureStreakLimit int `yaml:"parse_failure_streak_limit"`

	UseMockLLM    bool   `yaml:"use_mock_llm"`
	MockProfile   string `yaml:"mock_profile"`
	MockGoldenDir string `yaml:"mock_golden_dir"`

	PromptVersion string `yaml:"prompt_version"`

	DatabaseURL string `yaml:"-"`
	JWKSURL     string `yaml:"-"`
}

// Load builds a Config from environment variables, then applies an
// optional YAML file layer (CONFIG_FILE env var) over the defaults for the
// options that make sense to keep out of the environment (pricing tables,
// timeouts) — mirroring the teacher's own getEnv-with-default pattern for
// everything else.
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		LogLevel:        getEnv("LOG_LEVEL", defaultLogLevel(env)),
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		ModelFast:       getEnv("MODEL_FAST", "claude-haiku-4-5-20251001"),
		ModelStructural: getEnv("MODEL_STRUCTURAL", "claude-sonnet-4-5-20250929"),
		ModelAnalyst:    getEnv("MODEL_ANALYST", "claude-opus-4-1-20250805"),

		PriceFast:       TierPricing{InputPerMTok: 1.00, OutputPerMTok: 5.00, CacheReadPerMTok: 0.10, CacheWritePerMTok: 1.25},
		PriceStructural: TierPricing{InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75},
		PriceAnalyst:    TierPricing{InputPerMTok: 15.00, OutputPerMTok: 75.00, CacheReadPerMTok: 1.50, CacheWritePerMTok: 18.75},

		HistoryWindowTurns: getEnvInt("HISTORY_WINDOW_TURNS", 9),

		TierTimeoutMsFast:       getEnvInt("TIER_TIMEOUT_MS_FAST", 30_000),
		TierTimeoutMsStructural: getEnvInt("TIER_TIMEOUT_MS_STRUCTURAL", 60_000),
		TierTimeoutMsAnalyst:    getEnvInt("TIER_TIMEOUT_MS_ANALYST", 90_000),

		BatchFlushTimeoutMs:     getEnvInt("BATCH_FLUSH_TIMEOUT_MS", 30_000),
		ParseFailureStreakLimit: getEnvInt("PARSE_FAILURE_STREAK_LIMIT", 3),

		UseMockLLM:    getEnv("USE_MOCK_LLM", "false") == "true",
		MockProfile:   getEnv("MOCK_PACING_PROFILE", "instant"),
		MockGoldenDir: getEnv("MOCK_GOLDEN_DIR", "testdata/golden"),

		PromptVersion: getEnv("PROMPT_VERSION", "v1"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWKSURL:     getEnv("JWKS_URL", ""),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyYAMLFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	return cfg, nil
}

func applyYAMLFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, cfg)
}

// Validate fails fast on configuration that would make the kernel unable
// to run a single turn, mirroring the teacher's ProviderRegistry.Validate()
// fail-fast-at-startup shape (SPEC_FULL.md §4).
func (c *Config) Validate() error {
	if !c.UseMockLLM && c.AnthropicAPIKey == "" {
		return fmt.Errorf("config: no LLM provider configured (set ANTHROPIC_API_KEY or USE_MOCK_LLM=true)")
	}
	if c.TierTimeoutMsFast <= 0 || c.TierTimeoutMsStructural <= 0 || c.TierTimeoutMsAnalyst <= 0 {
		return fmt.Errorf("config: tier timeouts must be positive")
	}
	if c.ParseFailureStreakLimit < 1 {
		return fmt.Errorf("config: parse_failure_streak_limit must be >= 1")
	}
	if c.HistoryWindowTurns < 0 {
		return fmt.Errorf("config: history_window_turns must be >= 0")
	}
	return nil
}

func defaultLogLevel(env string) string {
	if env == "prod" {
		return "info"
	}
	return "debug"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

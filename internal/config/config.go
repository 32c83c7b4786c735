package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is built once at
// startup and injected at construction; nothing reads process-wide mutable
// state after that.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	News       NewsConfig       `yaml:"news" mapstructure:"news"`
	Quote      QuoteConfig      `yaml:"quote" mapstructure:"quote"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Override   OverrideConfig   `yaml:"override" mapstructure:"override"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	HaikuModel          string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel         string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxTokens           int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	NoBatch             bool   `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int    `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NewsConfig configures the Google News RSS source.
type NewsConfig struct {
	BaseURL               string  `yaml:"base_url" mapstructure:"base_url"`
	MaxArticlesPerCompany int     `yaml:"max_articles_per_company" mapstructure:"max_articles_per_company"`
	TimeoutSecs           int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond     float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	UserAgent             string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// QuoteConfig configures the market-data client.
type QuoteConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	StaleAfterHrs int    `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
}

// PipelineConfig configures the classification pipeline.
type PipelineConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
	BatchSize              int `yaml:"batch_size" mapstructure:"batch_size"`
	TalkingPointSignals    int `yaml:"talking_point_signals" mapstructure:"talking_point_signals"`
}

// OverrideConfig configures the deterministic relevance override.
// Titles matching any keyword are forced to neutral regardless of what the
// model said; these are topics the model systematically over-classifies as
// IR-relevant.
type OverrideConfig struct {
	NeutralKeywords []string `yaml:"neutral_keywords" mapstructure:"neutral_keywords"`
}

// ScoringConfig holds urgency, market-cap, and IR-cycle thresholds.
type ScoringConfig struct {
	HotMinPain        float64 `yaml:"hot_min_pain" mapstructure:"hot_min_pain"`
	HotMaxAgeHours    float64 `yaml:"hot_max_age_hours" mapstructure:"hot_max_age_hours"`
	WarmMinPain       float64 `yaml:"warm_min_pain" mapstructure:"warm_min_pain"`
	WarmMaxAgeHours   float64 `yaml:"warm_max_age_hours" mapstructure:"warm_max_age_hours"`
	SmallCapMaxUSD    float64 `yaml:"small_cap_max_usd" mapstructure:"small_cap_max_usd"`
	MidCapMaxUSD      float64 `yaml:"mid_cap_max_usd" mapstructure:"mid_cap_max_usd"`
	QuietPeriodDays   int     `yaml:"quiet_period_days" mapstructure:"quiet_period_days"`
	EarningsWeekDays  int     `yaml:"earnings_week_days" mapstructure:"earnings_week_days"`
	OpenWindowMaxDays int     `yaml:"open_window_max_days" mapstructure:"open_window_max_days"`
	EarningsBoostDays int     `yaml:"earnings_boost_days" mapstructure:"earnings_boost_days"`
	MinTalkingPain    float64 `yaml:"min_talking_pain" mapstructure:"min_talking_pain"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures background health checks and alerting.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	DLQDepthThreshold     int     `yaml:"dlq_depth_threshold" mapstructure:"dlq_depth_threshold"`
	NeutralShareThreshold float64 `yaml:"neutral_share_threshold" mapstructure:"neutral_share_threshold"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// ResilienceConfig tunes the retry policy wrapped around external fetches
// and the circuit breaker guarding talking-point synthesis.
type ResilienceConfig struct {
	RetryMaxAttempts        int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs   int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs       int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RetryMultiplier         float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitterFraction     float64 `yaml:"retry_jitter_fraction" mapstructure:"retry_jitter_fraction"`
	BreakerFailureThreshold int     `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetTimeoutSecs int     `yaml:"breaker_reset_timeout_secs" mapstructure:"breaker_reset_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IRRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ir-radar.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("news.base_url", "https://news.google.com")
	v.SetDefault("news.max_articles_per_company", 20)
	v.SetDefault("news.timeout_secs", 30)
	v.SetDefault("news.requests_per_second", 1.0)
	v.SetDefault("news.user_agent", "ir-radar/1.0")
	v.SetDefault("quote.base_url", "https://stooq.com")
	v.SetDefault("quote.timeout_secs", 20)
	v.SetDefault("quote.stale_after_hours", 24)
	v.SetDefault("pipeline.max_concurrent_companies", 5)
	v.SetDefault("pipeline.batch_size", 8)
	v.SetDefault("pipeline.talking_point_signals", 3)
	v.SetDefault("override.neutral_keywords", []string{
		"eeoc", "discrimination", "harassment", "wrongful termination",
		"class action employment", "labor dispute", "osha",
	})
	v.SetDefault("scoring.hot_min_pain", 0.7)
	v.SetDefault("scoring.hot_max_age_hours", 48)
	v.SetDefault("scoring.warm_min_pain", 0.5)
	v.SetDefault("scoring.warm_max_age_hours", 168)
	v.SetDefault("scoring.small_cap_max_usd", 2_000_000_000)
	v.SetDefault("scoring.mid_cap_max_usd", 10_000_000_000)
	v.SetDefault("scoring.quiet_period_days", 14)
	v.SetDefault("scoring.earnings_week_days", 7)
	v.SetDefault("scoring.open_window_max_days", 45)
	v.SetDefault("scoring.earnings_boost_days", 14)
	v.SetDefault("scoring.min_talking_pain", 0.5)
	v.SetDefault("resilience.retry_max_attempts", 3)
	v.SetDefault("resilience.retry_initial_backoff_ms", 500)
	v.SetDefault("resilience.retry_max_backoff_ms", 30_000)
	v.SetDefault("resilience.retry_multiplier", 2.0)
	v.SetDefault("resilience.retry_jitter_fraction", 0.25)
	v.SetDefault("resilience.breaker_failure_threshold", 5)
	v.SetDefault("resilience.breaker_reset_timeout_secs", 30)
	v.SetDefault("monitoring.dlq_depth_threshold", 10)
	v.SetDefault("monitoring.neutral_share_threshold", 0.95)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

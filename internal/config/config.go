package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration. Precedence:
// defaults < config file < ROBOTBRAIN_* environment variables.
type Config struct {
	// Oracle (OpenAI-compatible chat completions endpoint).
	OracleBaseURL     string  `mapstructure:"oracle_base_url"`
	OracleModel       string  `mapstructure:"oracle_model"`
	OracleAPIKey      string  `mapstructure:"oracle_api_key"`
	OracleTimeoutS    int     `mapstructure:"oracle_timeout_s"`
	OracleTemperature float64 `mapstructure:"oracle_temperature"`
	OracleMaxTokens   int     `mapstructure:"oracle_max_tokens"`

	// Arbitration thresholds.
	BatteryCriticalPct float64 `mapstructure:"battery_critical_pct"`
	BatteryLowPct      float64 `mapstructure:"battery_low_pct"`

	// ReAct loop bounds.
	MaxIterations          int `mapstructure:"max_iterations"`
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`

	// Checkpointing. "memory" or a sqlite file path.
	CheckpointDSN string `mapstructure:"checkpoint_dsn"`

	// Host loop.
	ThreadID      string `mapstructure:"thread_id"`
	TickIntervalS int    `mapstructure:"tick_interval_s"`
	MaxTicks      int    `mapstructure:"max_ticks"`

	// Optional YAML skill catalog appended to the builtins.
	SkillCatalogPath string `mapstructure:"skill_catalog_path"`

	LogLevel string `mapstructure:"log_level"`
}

// Load resolves configuration. path may be empty, in which case only
// defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("oracle_base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("oracle_model", "qwen-plus")
	v.SetDefault("oracle_api_key", "")
	v.SetDefault("skill_catalog_path", "")
	v.SetDefault("oracle_timeout_s", 60)
	v.SetDefault("oracle_temperature", 0.7)
	v.SetDefault("oracle_max_tokens", 2048)
	v.SetDefault("battery_critical_pct", 5.0)
	v.SetDefault("battery_low_pct", 20.0)
	v.SetDefault("max_iterations", 20)
	v.SetDefault("max_consecutive_failures", 3)
	v.SetDefault("checkpoint_dsn", "memory")
	v.SetDefault("thread_id", "")
	v.SetDefault("tick_interval_s", 1)
	v.SetDefault("max_ticks", 0)
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("ROBOTBRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.BatteryCriticalPct >= c.BatteryLowPct {
		return fmt.Errorf("battery_critical_pct %.1f must be below battery_low_pct %.1f",
			c.BatteryCriticalPct, c.BatteryLowPct)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("max_consecutive_failures must be positive, got %d", c.MaxConsecutiveFailures)
	}
	return nil
}

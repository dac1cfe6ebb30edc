// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	RPCURL            string   `mapstructure:"rpc_url"`
	NetworkID         uint64   `mapstructure:"network_id"`
	ChainID           int64    `mapstructure:"chain_id"`
	RetentionLimit    int      `mapstructure:"retention_limit"`
	ResubmitInterval  int      `mapstructure:"resubmit_interval"`   // seconds
	BlockPollInterval int      `mapstructure:"block_poll_interval"` // milliseconds
	MaxRetries        int      `mapstructure:"max_retries"`
	PostgresURL       string   `mapstructure:"postgres_url"`
	PrivateKeys       []string `mapstructure:"private_keys"`
	LogFile           string   `mapstructure:"log_file"`
	DebugLogging      bool     `mapstructure:"debug_logging"`
}

const (
	DefaultRetentionLimit    = 40
	DefaultResubmitInterval  = 60
	DefaultBlockPollInterval = 4000
	DefaultMaxRetries        = 6
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"retention_limit":     DefaultRetentionLimit,
		"resubmit_interval":   DefaultResubmitInterval,
		"block_poll_interval": DefaultBlockPollInterval,
		"max_retries":         DefaultMaxRetries,
		"log_file":            "txpilot.log",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("missing rpc_url in configuration")
	}
	if err := validateRPCURL(cfg.RPCURL); err != nil {
		return err
	}
	if cfg.NetworkID == 0 {
		return errors.New("missing network_id in configuration")
	}
	if cfg.ChainID <= 0 {
		return errors.New("missing chain_id in configuration")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RetentionLimit <= 0 {
		return errors.New("invalid retention_limit")
	}
	if cfg.ResubmitInterval <= 0 {
		return errors.New("invalid resubmit_interval")
	}
	if cfg.BlockPollInterval <= 0 {
		return errors.New("invalid block_poll_interval")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("invalid max_retries count")
	}
	return nil
}

func validateRPCURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid rpc_url format")
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
		return nil
	default:
		return errors.New("rpc_url must use http(s) or ws(s)")
	}
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("TXPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envRPC := v.GetString("RPC_URL")
	if envRPC != "" {
		cfg.RPCURL = envRPC
	}

	envPostgres := v.GetString("POSTGRES_URL")
	if envPostgres != "" {
		cfg.PostgresURL = envPostgres
	}

	envKeys := v.GetString("PRIVATE_KEYS")
	if envKeys != "" {
		keys := strings.Split(envKeys, ",")
		var clean []string
		for _, k := range keys {
			if trimmed := strings.TrimSpace(k); trimmed != "" {
				clean = append(clean, trimmed)
			}
		}
		if len(clean) > 0 {
			cfg.PrivateKeys = clean
		}
	}
	return nil
}

// ResubmitEvery converts the configured cadence to a duration.
func (c *Config) ResubmitEvery() time.Duration {
	return time.Duration(c.ResubmitInterval) * time.Second
}

// BlockPollEvery converts the configured poll interval to a duration.
func (c *Config) BlockPollEvery() time.Duration {
	return time.Duration(c.BlockPollInterval) * time.Millisecond
}

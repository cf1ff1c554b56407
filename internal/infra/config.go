package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. Sensitive values may be
// overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Bybit struct {
			WSPrivateURL string `yaml:"ws_private_url"`
			WSTradeURL   string `yaml:"ws_trade_url"`
			RestURL      string `yaml:"rest_url"`
			APIKey       string `yaml:"api_key"`
			APISecret    string `yaml:"api_secret"`
			Symbol       string `yaml:"symbol"`
			Category     string `yaml:"category"`
			APIRate      int    `yaml:"api_rate"` // max commands per second
		} `yaml:"bybit"`
	} `yaml:"api"`

	Fees struct {
		Maker decimal.Decimal `yaml:"maker"` // e.g. 0.0002
		Taker decimal.Decimal `yaml:"taker"` // e.g. 0.00055
	} `yaml:"fees"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"` // empty = default user config dir
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Security: credentials come from the environment when present.
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	b := &c.API.Bybit

	if !strings.HasPrefix(b.WSPrivateURL, "ws://") && !strings.HasPrefix(b.WSPrivateURL, "wss://") {
		return fmt.Errorf("invalid private WS URL: %s", b.WSPrivateURL)
	}
	if !strings.HasPrefix(b.WSTradeURL, "ws://") && !strings.HasPrefix(b.WSTradeURL, "wss://") {
		return fmt.Errorf("invalid trade WS URL: %s", b.WSTradeURL)
	}
	if !strings.HasPrefix(b.RestURL, "http://") && !strings.HasPrefix(b.RestURL, "https://") {
		return fmt.Errorf("invalid REST URL: %s", b.RestURL)
	}
	if b.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if b.Category == "" {
		return fmt.Errorf("category is required")
	}
	if b.APIRate <= 0 {
		b.APIRate = 10 // exchange default ceiling
	}
	if c.Fees.Maker.IsNegative() || c.Fees.Taker.IsNegative() {
		return fmt.Errorf("fee rates must be non-negative")
	}

	return nil
}

// overrideWithEnv overwrites credential fields from environment variables.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("BYBIT_API_KEY"); key != "" {
		cfg.API.Bybit.APIKey = key
	}
	if secret := os.Getenv("BYBIT_API_SECRET"); secret != "" {
		cfg.API.Bybit.APISecret = secret
	}
}

// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thana249/tradingview-executor/internal/pricing"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"` // "live" or "paper"
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Order groups the sizing knobs applied to every placement.
type Order struct {
	Notional  float64 `yaml:"notional"`   // base-asset budget per signal
	BookDepth int     `yaml:"book_depth"` // levels requested per fetch
}

// Exchange describes one venue: its taker fee, settlement currency, and the
// set of assets signals are allowed to trade there.
type Exchange struct {
	Fee       float64  `yaml:"fee"`
	BaseAsset string   `yaml:"base_asset"`
	Universe  []string `yaml:"universe"`
}

// InUniverse reports whether the asset is configured as tradeable.
func (e Exchange) InUniverse(asset string) bool {
	for _, a := range e.Universe {
		if strings.EqualFold(a, asset) {
			return true
		}
	}
	return false
}

// Config collects every configuration leaf. Loaded once at startup and
// read-only afterwards; credentials never live here, only in process env.
type Config struct {
	App              App                 `yaml:"app"`
	Order            Order               `yaml:"order"`
	OrderbookWeights []float64           `yaml:"orderbook_weights"`
	Exchanges        map[string]Exchange `yaml:"exchanges"`
}

// Load reads a YAML file from disk, applies defaults, and validates.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.ListenAddr == "" {
		c.App.ListenAddr = ":8000"
	}
	if len(c.OrderbookWeights) == 0 {
		c.OrderbookWeights = append([]float64(nil), pricing.DefaultWeights...)
	}
	if c.Order.BookDepth <= 0 {
		c.Order.BookDepth = 20
	}

	// Exchange names are referenced by upper-cased webhook values.
	normalized := make(map[string]Exchange, len(c.Exchanges))
	for name, ex := range c.Exchanges {
		normalized[strings.ToUpper(name)] = ex
	}
	c.Exchanges = normalized
}

// Validate rejects configs the dispatcher cannot run with.
func (c *Config) Validate() error {
	if err := pricing.ValidateWeights(c.OrderbookWeights); err != nil {
		return fmt.Errorf("orderbook_weights: %w", err)
	}
	if c.Order.Notional <= 0 {
		return fmt.Errorf("order.notional must be positive")
	}
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("no exchanges configured")
	}
	for name, ex := range c.Exchanges {
		if ex.BaseAsset == "" {
			return fmt.Errorf("exchange %s: base_asset is required", name)
		}
		if ex.Fee < 0 || ex.Fee >= 1 {
			return fmt.Errorf("exchange %s: fee %.4f out of range [0,1)", name, ex.Fee)
		}
		if len(ex.Universe) == 0 {
			return fmt.Errorf("exchange %s: universe is empty", name)
		}
	}
	return nil
}

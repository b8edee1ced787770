package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tradeassist/api"
	"tradeassist/logger"
)

// Environment overrides
const (
	EnvAPIURL      = "TRADEASSIST_API_URL"
	EnvLogLevel    = "TRADEASSIST_LOG_LEVEL"
	EnvLogFile     = "TRADEASSIST_LOG_FILE"
	EnvMetricsAddr = "TRADEASSIST_METRICS_ADDR"
	EnvLiveFilters = "TRADEASSIST_LIVE_FILTERS"
)

// Config is the client configuration file
type Config struct {
	API         APIConfig      `yaml:"api"`
	Exchange    ExchangeConfig `yaml:"exchange"`
	Trading     TradingConfig  `yaml:"trading"`
	Refresh     RefreshConfig  `yaml:"refresh"`
	Log         LogConfig      `yaml:"log"`
	Session     SessionConfig  `yaml:"session"`
	MetricsAddr string         `yaml:"metrics_addr"`
}

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryCount     int    `yaml:"retry_count"`
}

type ExchangeConfig struct {
	BaseURL     string `yaml:"base_url"`
	LiveFilters bool   `yaml:"live_filters"`
}

// TradingConfig holds amounts as strings so they stay exact in YAML
type TradingConfig struct {
	QuoteAsset      string            `yaml:"quote_asset"`
	DefaultStepSize string            `yaml:"default_step_size"`
	StepSizes       map[string]string `yaml:"step_sizes"`
	SeedFraction    string            `yaml:"seed_fraction"`
}

type RefreshConfig struct {
	PricesSeconds    int `yaml:"prices_seconds"`
	PortfolioSeconds int `yaml:"portfolio_seconds"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type SessionConfig struct {
	File     string `yaml:"file"`
	TTLHours int    `yaml:"ttl_hours"`
}

// Dir is ~/.tradeassist
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".tradeassist")
}

// Default returns the built-in configuration
func Default() *Config {
	dir := Dir()
	return &Config{
		API: APIConfig{
			BaseURL:        api.DefaultBaseURL,
			TimeoutSeconds: 30,
			RetryCount:     2,
		},
		Exchange: ExchangeConfig{
			BaseURL: api.DefaultExchangeURL,
		},
		Trading: TradingConfig{
			QuoteAsset:      "USDT",
			DefaultStepSize: "0.0001",
			StepSizes:       map[string]string{},
			SeedFraction:    "0.25",
		},
		Refresh: RefreshConfig{
			PricesSeconds:    20,
			PortfolioSeconds: 60,
		},
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join(dir, "tradeassist.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Session: SessionConfig{
			File:     filepath.Join(dir, "session.json"),
			TTLHours: 30 * 24,
		},
	}
}

// Manager loads and saves the config file
type Manager struct {
	path string
}

// NewManager creates a manager for path. Empty means ~/.tradeassist/config.yaml.
func NewManager(path string) *Manager {
	if path == "" {
		path = filepath.Join(Dir(), "config.yaml")
	}
	return &Manager{path: path}
}

// Path of the config file
func (m *Manager) Path() string { return m.path }

// Load reads the file, writing defaults first if it does not exist, then
// applies environment overrides and validates.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.LoadFile()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the file without environment overrides
func (m *Manager) LoadFile() (*Config, error) {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		cfg := Default()
		if err := m.Save(cfg); err != nil {
			return nil, errors.Wrap(err, "failed to create default config")
		}
		return cfg, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", m.path)
	}
	if cfg.Trading.StepSizes == nil {
		cfg.Trading.StepSizes = map[string]string{}
	}
	return cfg, nil
}

// Save writes cfg as YAML
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// LoadEnv loads .env files into the environment. Missing files are fine;
// variables already set win.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env", filepath.Join(Dir(), ".env")}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logger.Warnf("ignoring %s: %v", f, err)
		}
	}
}

// ApplyEnv overlays TRADEASSIST_* variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFile); ok {
		c.Log.File = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv(EnvLiveFilters); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Exchange.LiveFilters = b
		}
	}
}

// Validate rejects settings the client cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url cannot be empty")
	}
	if c.API.TimeoutSeconds <= 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	if c.API.RetryCount < 0 {
		return errors.New("api.retry_count cannot be negative")
	}
	if c.Refresh.PricesSeconds <= 0 || c.Refresh.PortfolioSeconds <= 0 {
		return errors.New("refresh intervals must be positive")
	}
	if strings.TrimSpace(c.Trading.QuoteAsset) == "" {
		return errors.New("trading.quote_asset cannot be empty")
	}
	if _, err := c.DefaultStep(); err != nil {
		return err
	}
	if _, err := c.StepSizeOverrides(); err != nil {
		return err
	}
	if _, err := c.SeedFraction(); err != nil {
		return err
	}
	return nil
}

// DefaultStep is the step for symbols without an entry
func (c *Config) DefaultStep() (decimal.Decimal, error) {
	step, err := decimal.NewFromString(strings.TrimSpace(c.Trading.DefaultStepSize))
	if err != nil || !step.IsPositive() {
		return decimal.Zero, errors.Errorf("trading.default_step_size %q must be a positive decimal", c.Trading.DefaultStepSize)
	}
	return step, nil
}

// StepSizeOverrides parses trading.step_sizes
func (c *Config) StepSizeOverrides() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.Trading.StepSizes))
	for sym, raw := range c.Trading.StepSizes {
		step, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || !step.IsPositive() {
			return nil, errors.Errorf("trading.step_sizes[%s] %q must be a positive decimal", sym, raw)
		}
		out[strings.ToUpper(strings.TrimSpace(sym))] = step
	}
	return out, nil
}

// SeedFraction is the share of the ceiling a sizing session opens at
func (c *Config) SeedFraction() (decimal.Decimal, error) {
	f, err := decimal.NewFromString(strings.TrimSpace(c.Trading.SeedFraction))
	if err != nil || f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, errors.Errorf("trading.seed_fraction %q must be between 0 and 1", c.Trading.SeedFraction)
	}
	return f, nil
}

// QuoteAsset upper-cased
func (c *Config) QuoteAsset() string {
	return strings.ToUpper(strings.TrimSpace(c.Trading.QuoteAsset))
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) PriceInterval() time.Duration {
	return time.Duration(c.Refresh.PricesSeconds) * time.Second
}

func (c *Config) PortfolioInterval() time.Duration {
	return time.Duration(c.Refresh.PortfolioSeconds) * time.Second
}

// SessionTTL of a stored login
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

// Client is the backend client config
func (c *Config) Client() api.Config {
	return api.Config{
		BaseURL:    c.API.BaseURL,
		Timeout:    c.APITimeout(),
		RetryCount: c.API.RetryCount,
	}
}

// Logger builds the logger config. console is off for the TUI.
func (c *Config) Logger(console bool) logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		OutputFile: c.Log.File,
		MaxSize:    c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAgeDays,
		Console:    console,
	}
}

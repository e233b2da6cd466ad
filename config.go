package chatgate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPreamble is the pinned system instruction used when the config does
// not override it.
const DefaultPreamble = "You are a helpful, professional assistant. Give structured, " +
	"concise answers with concrete examples where they help, and mention important " +
	"caveats. Keep formatting simple so replies render well on mobile devices."

// Defaults applied by Validate.
const (
	DefaultFreeLimit     = 20
	DefaultWindow        = 24 * time.Hour
	DefaultHistoryWindow = 10
)

// Config is the top-level service configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// Quota policy.
	FreeLimit *int     `yaml:"free_limit"`
	Window    Duration `yaml:"window"`

	// Transcript handling.
	HistoryWindow int    `yaml:"history_window"`
	Preamble      string `yaml:"preamble"`
	EncryptionKey string `yaml:"encryption_key"`

	DefaultModelProvider   string `yaml:"default_model_provider"`
	DefaultPaymentProvider string `yaml:"default_payment_provider"`

	// ConfirmSecret guards the payment confirmation endpoint.
	ConfirmSecret string `yaml:"confirm_secret"`

	Store    StoreConfig      `yaml:"store"`
	Models   []ModelAccount   `yaml:"models"`
	Payments []PaymentAccount `yaml:"payments"`

	// Fixed charge presented by the entitlement gateway.
	ChargeAmountCents int64  `yaml:"charge_amount_cents"`
	ChargeCurrency    string `yaml:"charge_currency"`
}

// StoreConfig selects the usage store backend.
type StoreConfig struct {
	// Driver is one of "memory", "sqlite", "postgres", "redis".
	Driver string `yaml:"driver"`
	// DSN is the sqlite path, postgres connection string, or redis address.
	DSN string `yaml:"dsn"`
}

// ModelAccount configures a single model provider adapter.
type ModelAccount struct {
	// Provider is one of "ollama", "openai", "gemini", "huggingface".
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// PaymentAccount configures a single payment provider adapter.
type PaymentAccount struct {
	// Provider is one of "stripe", "paypal", "nowpayments".
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	ClientID string `yaml:"client_id"`
	Secret   string `yaml:"secret"`
	BaseURL  string `yaml:"base_url"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("chatgate: parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("chatgate: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("chatgate: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks required fields, applies defaults, and verifies that the
// configured default providers are actually declared.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.FreeLimit == nil {
		limit := DefaultFreeLimit
		c.FreeLimit = &limit
	}
	if *c.FreeLimit < 0 {
		return fmt.Errorf("chatgate: config: free_limit must not be negative")
	}
	if c.Window <= 0 {
		c.Window = Duration(DefaultWindow)
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.Preamble == "" {
		c.Preamble = DefaultPreamble
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("chatgate: config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("chatgate: config: store.dsn is required for driver %q", c.Store.Driver)
	}
	if c.ChargeAmountCents <= 0 {
		c.ChargeAmountCents = 1000
	}
	if c.ChargeCurrency == "" {
		c.ChargeCurrency = "usd"
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("chatgate: config: at least one model provider is required")
	}
	modelIDs := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("chatgate: config: models[%d]: provider is required", i)
		}
		if modelIDs[m.Provider] {
			return fmt.Errorf("chatgate: config: duplicate model provider %q", m.Provider)
		}
		modelIDs[m.Provider] = true
	}
	if c.DefaultModelProvider == "" {
		c.DefaultModelProvider = c.Models[0].Provider
	}
	if !modelIDs[c.DefaultModelProvider] {
		return fmt.Errorf("chatgate: config: default_model_provider %q is not declared", c.DefaultModelProvider)
	}

	if len(c.Payments) > 0 {
		payIDs := make(map[string]bool, len(c.Payments))
		for i, p := range c.Payments {
			if p.Provider == "" {
				return fmt.Errorf("chatgate: config: payments[%d]: provider is required", i)
			}
			if payIDs[p.Provider] {
				return fmt.Errorf("chatgate: config: duplicate payment provider %q", p.Provider)
			}
			payIDs[p.Provider] = true
		}
		if c.DefaultPaymentProvider == "" {
			c.DefaultPaymentProvider = c.Payments[0].Provider
		}
		if !payIDs[c.DefaultPaymentProvider] {
			return fmt.Errorf("chatgate: config: default_payment_provider %q is not declared", c.DefaultPaymentProvider)
		}
	}

	return nil
}

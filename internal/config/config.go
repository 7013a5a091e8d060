// Package config holds the persistent nextmove configuration.
// Config lives at ~/.nextmove/config.json; API keys are overlaid from the
// environment so the file never has to contain secrets.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config is the persistent application configuration.
type Config struct {
	Engine  EngineConfig  `json:"engine"`
	Sources SourcesConfig `json:"sources"`
	Advisor AdvisorConfig `json:"advisor"`
}

// EngineConfig holds the fixed scoring constants. These are product
// constants, not tuned parameters; the defaults are the documented values.
type EngineConfig struct {
	OmegaRef           float64   `json:"omega_ref"`           // reference coherence
	OmegaCrit          float64   `json:"omega_crit"`          // growth/braking threshold
	StabilityThreshold float64   `json:"stability_threshold"` // low-risk cut
	CautionThreshold   float64   `json:"caution_threshold"`   // moderate-risk cut
	Weights            []float64 `json:"weights"`             // intensity, science, consistency, market, advisory
	VarianceDivisor    float64   `json:"variance_divisor"`
	DecaySlope         float64   `json:"decay_slope"`  // a in exp(-(a*variance+b))
	DecayOffset        float64   `json:"decay_offset"` // b in exp(-(a*variance+b))
}

// SourcesConfig holds endpoints and timeouts for the external data sources.
type SourcesConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"` // per-adapter fetch timeout

	Market       MarketConfig   `json:"market"`
	Literature   EndpointConfig `json:"literature"`
	Encyclopedia EndpointConfig `json:"encyclopedia"`
}

// MarketConfig configures the market quote source.
type MarketConfig struct {
	Endpoint string `json:"endpoint,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// EndpointConfig configures a keyless HTTP source.
type EndpointConfig struct {
	Endpoint string `json:"endpoint,omitempty"`
}

// AdvisorConfig holds generative advisory settings.
type AdvisorConfig struct {
	Enabled        bool   `json:"enabled"`
	Preferred      string `json:"preferred,omitempty"` // "claude", "openai", "gemini", "ollama"
	MaxTokens      int    `json:"max_tokens"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			OmegaRef:           0.85,
			OmegaCrit:          0.368,
			StabilityThreshold: 0.70,
			CautionThreshold:   0.50,
			Weights:            []float64{0.25, 0.20, 0.15, 0.20, 0.20},
			VarianceDivisor:    4.0,
			DecaySlope:         0.4,
			DecayOffset:        0.3,
		},
		Sources: SourcesConfig{
			TimeoutSeconds: 5,
			Market: MarketConfig{
				Symbol: "SPY",
			},
		},
		Advisor: AdvisorConfig{
			Enabled:        true,
			MaxTokens:      256,
			TimeoutSeconds: 20,
		},
	}
}

// SourceTimeout returns the per-adapter fetch timeout as a duration.
func (c *Config) SourceTimeout() time.Duration {
	secs := c.Sources.TimeoutSeconds
	if secs <= 0 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}

// AdvisorTimeout returns the advisory call timeout as a duration.
func (c *Config) AdvisorTimeout() time.Duration {
	secs := c.Advisor.TimeoutSeconds
	if secs <= 0 {
		secs = 20
	}
	return time.Duration(secs) * time.Second
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nextmove", "config.json")
}

// Load reads config from disk, or returns defaults if there is none.
// A corrupt file degrades to defaults rather than failing startup.
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		cfg = DefaultConfig()
	}
	cfg.AutoPopulateFromEnv()

	return cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Restrictive permissions in case an API key was saved
	return os.WriteFile(path, data, 0600)
}

// AutoPopulateFromEnv fills endpoint and key settings from the environment.
// Environment values win over the file so a shell export is enough to test
// against a different backend.
func (c *Config) AutoPopulateFromEnv() {
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		c.Sources.Market.APIKey = key
	}
	if v := os.Getenv("NEXTMOVE_MARKET_ENDPOINT"); v != "" {
		c.Sources.Market.Endpoint = v
	}
	if v := os.Getenv("NEXTMOVE_MARKET_SYMBOL"); v != "" {
		c.Sources.Market.Symbol = v
	}
	if v := os.Getenv("NEXTMOVE_LITERATURE_ENDPOINT"); v != "" {
		c.Sources.Literature.Endpoint = v
	}
	if v := os.Getenv("NEXTMOVE_ENCYCLOPEDIA_ENDPOINT"); v != "" {
		c.Sources.Encyclopedia.Endpoint = v
	}
	if v := os.Getenv("NEXTMOVE_ADVISOR"); v != "" {
		c.Advisor.Preferred = v
	}
}

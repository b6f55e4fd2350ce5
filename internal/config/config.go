package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// ServerConfig holds the downstream listening surface settings.
type ServerConfig struct {
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowedOrigins"`
	Development    bool     `json:"development"`
}

// BinanceConfig holds the upstream endpoints. The defaults point at the
// production futures cluster; tests override both with local servers.
type BinanceConfig struct {
	BaseURL   string `json:"baseUrl"`
	WSBaseURL string `json:"wsBaseUrl"`
}

// LimitsConfig carries the tuning constants. All durations are milliseconds.
type LimitsConfig struct {
	MinBackoffMs        int64 `json:"minBackoffMs"`
	MaxBackoffMs        int64 `json:"maxBackoffMs"`
	RateLimitIntervalMs int64 `json:"rateLimitIntervalMs"`
	CacheTTLMs          int64 `json:"cacheTtlMs"`
	MaxBuffer           int   `json:"maxBuffer"`
	MaxReconnectDelayMs int64 `json:"maxReconnectDelayMs"`
	SendQueueSize       int   `json:"sendQueueSize"`
	BookGraceMs         int64 `json:"bookGraceMs"`
}

// NATSConfig configures the optional JetStream event tap. When the section is
// absent from the config file the tap is disabled.
type NATSConfig struct {
	URIs    string `json:"uris"`
	Stream  string `json:"stream"`
	Subject string `json:"subject"`
}

// Config represents the main configuration structure
type Config struct {
	Server  ServerConfig  `json:"server"`
	Binance BinanceConfig `json:"binance"`
	Limits  LimitsConfig  `json:"limits"`
	NATS    *NATSConfig   `json:"nats,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8787,
			AllowedOrigins: []string{"*"},
			Development:    true,
		},
		Binance: BinanceConfig{
			BaseURL:   "https://fapi.binance.com",
			WSBaseURL: "wss://fstream.binance.com",
		},
		Limits: LimitsConfig{
			MinBackoffMs:        2000,
			MaxBackoffMs:        30000,
			RateLimitIntervalMs: 500,
			CacheTTLMs:          5000,
			MaxBuffer:           2000,
			MaxReconnectDelayMs: 30000,
			SendQueueSize:       1000,
			BookGraceMs:         60000,
		},
	}
}

// LoadConfig loads configuration from a JSON file. Fields left out of the
// file keep their defaults.
func LoadConfig(filePath string) (*Config, error) {
	if filePath == "" {
		return nil, fmt.Errorf("config file path cannot be empty")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filePath, err)
	}

	return config, nil
}

// Validate validates the main configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if err := c.Binance.Validate(); err != nil {
		return err
	}

	if err := c.Limits.Validate(); err != nil {
		return err
	}

	if c.NATS != nil {
		return c.NATS.Validate()
	}
	return nil
}

// Validate validates the upstream endpoint configuration
func (b *BinanceConfig) Validate() error {
	if b.BaseURL == "" {
		return fmt.Errorf("binance.baseUrl cannot be empty")
	}
	if b.WSBaseURL == "" {
		return fmt.Errorf("binance.wsBaseUrl cannot be empty")
	}
	for name, raw := range map[string]string{"binance.baseUrl": b.BaseURL, "binance.wsBaseUrl": b.WSBaseURL} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if u.Hostname() == "" {
			return fmt.Errorf("invalid %s: hostname cannot be empty", name)
		}
	}
	return nil
}

// Validate validates the tuning constants
func (l *LimitsConfig) Validate() error {
	if l.MinBackoffMs <= 0 {
		return fmt.Errorf("limits.minBackoffMs must be positive")
	}
	if l.MaxBackoffMs < l.MinBackoffMs {
		return fmt.Errorf("limits.maxBackoffMs must be >= limits.minBackoffMs")
	}
	if l.RateLimitIntervalMs <= 0 {
		return fmt.Errorf("limits.rateLimitIntervalMs must be positive")
	}
	if l.CacheTTLMs <= 0 {
		return fmt.Errorf("limits.cacheTtlMs must be positive")
	}
	if l.MaxBuffer <= 0 {
		return fmt.Errorf("limits.maxBuffer must be positive")
	}
	if l.MaxReconnectDelayMs <= 0 {
		return fmt.Errorf("limits.maxReconnectDelayMs must be positive")
	}
	if l.SendQueueSize <= 0 {
		return fmt.Errorf("limits.sendQueueSize must be positive")
	}
	if l.BookGraceMs < 0 {
		return fmt.Errorf("limits.bookGraceMs cannot be negative")
	}
	return nil
}

// Validate validates the NATS configuration
func (n *NATSConfig) Validate() error {
	if n.URIs == "" {
		return fmt.Errorf("nats.uris cannot be empty")
	}
	if n.Stream == "" {
		return fmt.Errorf("nats.stream cannot be empty")
	}
	if n.Subject == "" {
		return fmt.Errorf("nats.subject cannot be empty")
	}

	for i, uri := range n.GetNATSURIs() {
		parsedURL, err := url.Parse(uri)
		if err != nil {
			return fmt.Errorf("invalid NATS URI at index %d: %w", i, err)
		}
		if parsedURL.Scheme != "nats" {
			return fmt.Errorf("invalid NATS URI scheme at index %d: expected 'nats', got '%s'", i, parsedURL.Scheme)
		}
		if parsedURL.Hostname() == "" {
			return fmt.Errorf("invalid NATS URI at index %d: hostname cannot be empty", i)
		}
	}
	return nil
}

// GetNATSURIs returns a slice of individual NATS URIs
func (n *NATSConfig) GetNATSURIs() []string {
	uris := strings.Split(n.URIs, ",")
	var cleanURIs []string
	for _, uri := range uris {
		uri = strings.TrimSpace(uri)
		if uri != "" {
			cleanURIs = append(cleanURIs, uri)
		}
	}
	return cleanURIs
}

// Duration helpers so callers never multiply milliseconds by hand.

func (l *LimitsConfig) MinBackoff() time.Duration {
	return time.Duration(l.MinBackoffMs) * time.Millisecond
}

func (l *LimitsConfig) MaxBackoff() time.Duration {
	return time.Duration(l.MaxBackoffMs) * time.Millisecond
}

func (l *LimitsConfig) RateLimitInterval() time.Duration {
	return time.Duration(l.RateLimitIntervalMs) * time.Millisecond
}

func (l *LimitsConfig) CacheTTL() time.Duration {
	return time.Duration(l.CacheTTLMs) * time.Millisecond
}

func (l *LimitsConfig) MaxReconnectDelay() time.Duration {
	return time.Duration(l.MaxReconnectDelayMs) * time.Millisecond
}

func (l *LimitsConfig) BookGrace() time.Duration {
	return time.Duration(l.BookGraceMs) * time.Millisecond
}

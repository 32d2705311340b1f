package httpapi

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":9090"
	defaultAllowedOrigin  = "http://localhost:8000"
	defaultAuthIssuer     = "backoffice"
	defaultRequestTimeout = 10 * time.Second
)

// Config aggregates runtime settings for the admin API.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	AuthSigningKey string
	AuthIssuer     string
	RequestTimeout time.Duration
}

// Validate fills defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.AuthIssuer = defaultIfEmpty(cfg.AuthIssuer, defaultAuthIssuer)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if len(cfg.AuthSigningKey) == 0 {
		return fmt.Errorf("auth signing key is required")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

// Package config loads the agent's runtime configuration from the
// environment. A .env file is loaded if present but not required.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for optional settings.
const (
	DefaultModel          = "claude-sonnet-4-5"
	DefaultMaxTokens      = 4096
	DefaultRequestTimeout = 5 * time.Minute
	DefaultEvidenceLog    = "evidence.log"
)

// Config holds everything the agent process needs to run.
type Config struct {
	// AnthropicAPIKey authenticates completion calls. Required.
	AnthropicAPIKey string
	// Model is the completion model identifier.
	Model string
	// MaxTokens caps each completion.
	MaxTokens int

	// ComplyEndpoint is the compliance platform's GraphQL URL. Required.
	ComplyEndpoint string
	// ComplyAPIKey is the bearer token for the compliance platform. Required.
	ComplyAPIKey string
	// OrganizationID scopes every session and correlation run. Required.
	OrganizationID string

	// EvidenceLogPath points at the JSONL evidence log read by the
	// correlation engine.
	EvidenceLogPath string

	// RequestTimeout bounds outbound HTTP calls.
	RequestTimeout time.Duration
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	maxTokens, err := envOrDefaultInt("COMPLY_AGENT_MAX_TOKENS", DefaultMaxTokens)
	if err != nil {
		return nil, err
	}
	timeout, err := envOrDefaultDuration("COMPLY_AGENT_REQUEST_TIMEOUT", DefaultRequestTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AnthropicAPIKey: strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		Model:           envOrDefault("COMPLY_AGENT_MODEL", DefaultModel),
		MaxTokens:       maxTokens,
		ComplyEndpoint:  strings.TrimSpace(os.Getenv("COMPLY_API_ENDPOINT")),
		ComplyAPIKey:    strings.TrimSpace(os.Getenv("COMPLY_API_KEY")),
		OrganizationID:  strings.TrimSpace(os.Getenv("COMPLY_ORGANIZATION_ID")),
		EvidenceLogPath: envOrDefault("COMPLY_EVIDENCE_LOG", DefaultEvidenceLog),
		RequestTimeout:  timeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.AnthropicAPIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if c.ComplyEndpoint == "" {
		missing = append(missing, "COMPLY_API_ENDPOINT")
	}
	if c.ComplyAPIKey == "" {
		missing = append(missing, "COMPLY_API_KEY")
	}
	if c.OrganizationID == "" {
		missing = append(missing, "COMPLY_ORGANIZATION_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	endpoint, err := url.Parse(c.ComplyEndpoint)
	if err != nil {
		return fmt.Errorf("COMPLY_API_ENDPOINT must be a valid URL: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return fmt.Errorf("COMPLY_API_ENDPOINT must use http or https scheme")
	}
	if endpoint.Host == "" {
		return fmt.Errorf("COMPLY_API_ENDPOINT must include a host")
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("COMPLY_AGENT_MAX_TOKENS must be greater than 0, got %d", c.MaxTokens)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("COMPLY_AGENT_REQUEST_TIMEOUT must be greater than 0, got %s", c.RequestTimeout)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}

func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

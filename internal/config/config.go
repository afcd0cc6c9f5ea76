package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	APIURL     string        `envconfig:"SIGNLEARNER_API_URL" default:"http://localhost:8000"`
	APITimeout time.Duration `envconfig:"SIGNLEARNER_API_TIMEOUT" default:"0s"`

	DefaultAge        int    `envconfig:"SIGNLEARNER_DEFAULT_AGE" default:"25"`
	DefaultExperience string `envconfig:"SIGNLEARNER_DEFAULT_EXPERIENCE" default:"beginner"`
	DefaultMode       string `envconfig:"SIGNLEARNER_DEFAULT_MODE" default:"full"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	apiURL := strings.TrimSpace(c.APIURL)
	if apiURL == "" {
		return fmt.Errorf("SIGNLEARNER_API_URL is required")
	}
	parsed, err := url.Parse(apiURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("SIGNLEARNER_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if c.APITimeout < 0 {
		return fmt.Errorf("SIGNLEARNER_API_TIMEOUT must be >= 0")
	}
	if c.DefaultAge < 1 {
		return fmt.Errorf("SIGNLEARNER_DEFAULT_AGE must be >= 1")
	}
	switch strings.ToLower(strings.TrimSpace(c.DefaultExperience)) {
	case "beginner", "intermediate", "advanced":
	default:
		return fmt.Errorf("SIGNLEARNER_DEFAULT_EXPERIENCE must be one of beginner, intermediate, advanced")
	}
	switch strings.ToLower(strings.TrimSpace(c.DefaultMode)) {
	case "full", "quick", "ultrafast", "ultra-fast", "ultra_fast":
	default:
		return fmt.Errorf("SIGNLEARNER_DEFAULT_MODE must be one of full, quick, ultraFast")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}

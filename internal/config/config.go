// Package config loads server configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/perchhq/perch/internal/domain/publish"
	"github.com/perchhq/perch/internal/domain/visibility"
)

// Config defines server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Content ContentConfig `yaml:"content"`
	Publish PublishConfig `yaml:"publish"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"PERCH_SERVER_HOST"`
	Port int    `yaml:"port" env:"PERCH_SERVER_PORT"`
}

// Addr is the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DBConfig struct {
	Path string `yaml:"path" env:"PERCH_DB_PATH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"PERCH_LOG_LEVEL"`
}

// StorageConfig selects the object store backend. With an empty bucket the
// server runs on the in-memory store, which only makes sense for tests and
// local development.
type StorageConfig struct {
	Bucket          string `yaml:"bucket" env:"PERCH_STORAGE_BUCKET"`
	Region          string `yaml:"region" env:"PERCH_STORAGE_REGION"`
	Endpoint        string `yaml:"endpoint" env:"PERCH_STORAGE_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"PERCH_STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"PERCH_STORAGE_SECRET_ACCESS_KEY"`
}

type AuthConfig struct {
	// Secret signs capability tokens. Required.
	Secret string `yaml:"secret" env:"PERCH_AUTH_SECRET"`

	// AllowedUsers is the management API allow-list, in visibility grammar.
	// It is re-checked on every authenticated request, so revocation takes
	// effect immediately.
	AllowedUsers string `yaml:"allowed_users" env:"PERCH_ALLOWED_USERS"`

	// Edge proxy assertion validation (Cloudflare Access mode). All three
	// must be set to enable the method.
	EdgeProxyIssuer   string `yaml:"edge_proxy_issuer" env:"PERCH_EDGE_PROXY_ISSUER"`
	EdgeProxyAudience string `yaml:"edge_proxy_audience" env:"PERCH_EDGE_PROXY_AUDIENCE"`
	EdgeProxyJWKSURL  string `yaml:"edge_proxy_jwks_url" env:"PERCH_EDGE_PROXY_JWKS_URL"`
}

// EdgeProxyEnabled reports whether edge proxy assertions may be validated.
func (a AuthConfig) EdgeProxyEnabled() bool {
	return a.EdgeProxyIssuer != "" && a.EdgeProxyAudience != "" && a.EdgeProxyJWKSURL != ""
}

// AllowList parses the configured allow-list.
func (a AuthConfig) AllowList() (visibility.Group, error) {
	return visibility.Parse(a.AllowedUsers)
}

type ContentConfig struct {
	// Host is the public content origin, used to validate return URLs.
	Host string `yaml:"host" env:"PERCH_CONTENT_HOST"`

	// VisibilityCeiling caps how open any project may be.
	VisibilityCeiling string `yaml:"visibility_ceiling" env:"PERCH_VISIBILITY_CEILING"`

	SharingEnabled bool          `yaml:"sharing_enabled" env:"PERCH_SHARING_ENABLED"`
	CacheTTL       time.Duration `yaml:"cache_ttl" env:"PERCH_CACHE_TTL"`
}

type PublishConfig struct {
	MaxArchiveBytes   int64 `yaml:"max_archive_bytes" env:"PERCH_MAX_ARCHIVE_BYTES"`
	MaxExtractedBytes int64 `yaml:"max_extracted_bytes" env:"PERCH_MAX_EXTRACTED_BYTES"`
	MaxFiles          int   `yaml:"max_files" env:"PERCH_MAX_FILES"`
}

// Limits converts the publish section to archive limits.
func (p PublishConfig) Limits() publish.Limits {
	return publish.Limits{
		MaxArchiveBytes:   p.MaxArchiveBytes,
		MaxExtractedBytes: p.MaxExtractedBytes,
		MaxFiles:          p.MaxFiles,
	}
}

// Ceiling parses the configured visibility ceiling.
func (c ContentConfig) Ceiling() (visibility.Group, error) {
	return visibility.Parse(c.VisibilityCeiling)
}

// Load reads configuration: defaults, then the YAML file named by
// PERCH_CONFIG_PATH if set, then environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "perch.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			AllowedUsers: "public",
		},
		Content: ContentConfig{
			VisibilityCeiling: "private",
			SharingEnabled:    true,
			CacheTTL:          time.Minute,
		},
		Publish: PublishConfig{
			MaxArchiveBytes:   publish.DefaultLimits.MaxArchiveBytes,
			MaxExtractedBytes: publish.DefaultLimits.MaxExtractedBytes,
			MaxFiles:          publish.DefaultLimits.MaxFiles,
		},
	}

	if path := os.Getenv("PERCH_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Auth.Secret == "" {
		return Config{}, fmt.Errorf("auth secret is required (PERCH_AUTH_SECRET)")
	}
	if _, err := cfg.Content.Ceiling(); err != nil {
		return Config{}, fmt.Errorf("invalid visibility ceiling: %w", err)
	}
	if _, err := cfg.Auth.AllowList(); err != nil {
		return Config{}, fmt.Errorf("invalid allow-list: %w", err)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

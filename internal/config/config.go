// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (CONFLUENCE_RAG_* prefix, runtime override)
//  2. Config file (config.yaml in the working directory)
//  3. Default values
//
// Security: credentials are never logged; MarshalJSON masks them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingConfluenceURL indicates the Confluence base URL is not set.
	ErrMissingConfluenceURL = errors.New("missing confluence base url")

	// ErrInvalidConfluenceURL indicates the Confluence base URL cannot be parsed.
	ErrInvalidConfluenceURL = errors.New("invalid confluence base url")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")
)

// DefaultEmbedderModel is the default Gemini embedder model.
// It supports truncation to 768 dimensions, matching the pgvector schema
// (see knowledge.VectorDimension).
const DefaultEmbedderModel = "gemini-embedding-001"

// Confluence holds the outbound content-source settings.
type Confluence struct {
	BaseURL  string `mapstructure:"base_url" json:"base_url"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`

	// SpaceKeys is a comma-separated allowlist of space keys.
	// Empty means all spaces.
	SpaceKeys string `mapstructure:"space_keys" json:"space_keys"`
}

// SpaceKeyList splits the comma-separated allowlist into trimmed keys.
// Returns nil when the allowlist is empty.
func (c Confluence) SpaceKeyList() []string {
	if strings.TrimSpace(c.SpaceKeys) == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(c.SpaceKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON.
type Config struct {
	Confluence Confluence `mapstructure:"confluence" json:"confluence"`

	// AI model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// PostgreSQL connection
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// SyncOnStartup triggers a full ingestion run when the process starts.
	SyncOnStartup bool `mapstructure:"sync_on_startup" json:"sync_on_startup"`
}

// Load reads configuration from defaults, config file, and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("CONFLUENCE_RAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine: defaults + env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("confluence.base_url", "")
	v.SetDefault("confluence.username", "")
	v.SetDefault("confluence.password", "")
	v.SetDefault("confluence.space_keys", "")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "rag")
	v.SetDefault("postgres_password", "rag_dev_password")
	v.SetDefault("postgres_db_name", "rag")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("sync_on_startup", false)
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Confluence.BaseURL == "" {
		return ErrMissingConfluenceURL
	}
	if u, err := url.Parse(c.Confluence.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidConfluenceURL, c.Confluence.BaseURL)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	if c.EmbedderModel == "" {
		return ErrInvalidEmbedderModel
	}
	return nil
}

// PostgresURL returns the connection string in URL form (golang-migrate).
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser), url.QueryEscape(c.PostgresPassword),
		c.PostgresHost, c.PostgresPort, c.PostgresDBName, c.PostgresSSLMode)
}

// MarshalJSON masks credentials so the config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "********"
	}
	if masked.Confluence.Password != "" {
		masked.Confluence.Password = "********"
	}
	return json.Marshal(masked)
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/epd-normalizer/pkg/translation"
)

// DefaultConfigFile is read when no explicit path is given and the file exists.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for epd-normalizer.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Ingestion run settings
	Ingest IngestConfig `yaml:"ingest"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"epd"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"epd"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	// StatementTimeout bounds every statement of an ingestion session. 0 disables it.
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"PGSTATEMENT_TIMEOUT" env-default:"5m"`
}

// IngestConfig holds the ingestion run settings.
type IngestConfig struct {
	// DataDir contains the data_stock_<name>_uuid_<uuid>_... folders.
	DataDir string `yaml:"data_dir" env:"EPD_DATA_DIR" env-default:"./data"`

	// TranslationsFile is the german_term,english_term dictionary.
	TranslationsFile string `yaml:"translations_file" env:"EPD_TRANSLATIONS_FILE" env-default:"./data/translations.csv"`
	// TranslationsEncoding is utf-8, windows-1252 or iso-8859-1.
	TranslationsEncoding string `yaml:"translations_encoding" env:"EPD_TRANSLATIONS_ENCODING" env-default:"utf-8"`

	// UntranslatedFile receives every classification term without a translation.
	UntranslatedFile string `yaml:"untranslated_file" env:"EPD_UNTRANSLATED_FILE" env-default:"./logs/translations_not_found.txt"`

	// Workers is the number of documents stored concurrently. 1 keeps the run sequential.
	// Defaults to 1 in Load; no env-default tag, since cleanenv would also
	// apply it over an explicit 0 and hide the invalid value.
	Workers int `yaml:"workers" env:"EPD_WORKERS"`
	// MaxFiles limits the documents read per folder. 0 means no limit.
	MaxFiles int `yaml:"max_files" env:"EPD_MAX_FILES" env-default:"0"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"` // console or json
	// File, when set, receives a copy of every log line.
	File string `yaml:"file" env:"LOG_FILE" env-default:""`
}

// MetricsConfig controls the run metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives the run metrics in Prometheus text format
	// (node_exporter textfile collector).
	Textfile string `yaml:"textfile" env:"METRICS_TEXTFILE" env-default:""`
}

// Load reads configuration from path with environment variable overrides.
// An empty path reads DefaultConfigFile if it exists, otherwise only the environment.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
		Ingest:  IngestConfig{Workers: 1},
	}

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks values that cleanenv cannot express as tags.
func (c *Config) validate() error {
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.MaxFiles < 0 {
		return fmt.Errorf("ingest.max_files must not be negative, got %d", c.Ingest.MaxFiles)
	}
	if !translation.IsSupportedEncoding(c.Ingest.TranslationsEncoding) {
		return fmt.Errorf("unsupported translations_encoding %q", c.Ingest.TranslationsEncoding)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return errors.New("log.format must be console or json")
	}
	return nil
}

// URL returns the configuration as a postgres:// URL.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme:   "postgres",
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

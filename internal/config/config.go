// Package config loads claimcheck's runtime configuration: the service
// settings read through viper and the options of a catalog import run.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Catalog sources the service can load its catalog from.
const (
	CatalogSourceDB      = "db"
	CatalogSourceJSON    = "json"
	CatalogSourceParquet = "parquet"
)

// Config holds the settings of the claimcheck service.
type Config struct {
	Port        string        `mapstructure:"PORT"`
	DatabaseURL string        `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32         `mapstructure:"DB_MAX_CONNS"`
	DBTimeout   time.Duration `mapstructure:"DB_STATEMENT_TIMEOUT"`
	LogFormat   string        `mapstructure:"LOG_FORMAT"`
	LogLevel    string        `mapstructure:"LOG_LEVEL"`
	APIKeys     []string      `mapstructure:"API_KEYS"`

	RulesFile           string `mapstructure:"RULES_FILE"`
	CatalogSource       string `mapstructure:"CATALOG_SOURCE"`
	CatalogItemsFile    string `mapstructure:"CATALOG_ITEMS_FILE"`
	CatalogServicesFile string `mapstructure:"CATALOG_SERVICES_FILE"`
	CatalogParquetFile  string `mapstructure:"CATALOG_PARQUET_FILE"`

	InsurerBaseURL    string        `mapstructure:"INSURER_BASE_URL"`
	InsurerUsername   string        `mapstructure:"INSURER_USERNAME"`
	InsurerPassword   string        `mapstructure:"INSURER_PASSWORD"`
	InsurerRemoteUser string        `mapstructure:"INSURER_REMOTE_USER"`
	InsurerTimeout    time.Duration `mapstructure:"INSURER_TIMEOUT"`
	InsurerRetries    int           `mapstructure:"INSURER_RETRIES"`

	PatientCacheTTL      time.Duration `mapstructure:"PATIENT_CACHE_TTL"`
	PatientPruneInterval time.Duration `mapstructure:"PATIENT_PRUNE_INTERVAL"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var keys = []string{
	"PORT", "DATABASE_URL", "DB_MAX_CONNS", "DB_STATEMENT_TIMEOUT", "LOG_FORMAT", "LOG_LEVEL", "API_KEYS",
	"RULES_FILE", "CATALOG_SOURCE", "CATALOG_ITEMS_FILE", "CATALOG_SERVICES_FILE", "CATALOG_PARQUET_FILE",
	"INSURER_BASE_URL", "INSURER_USERNAME", "INSURER_PASSWORD", "INSURER_REMOTE_USER",
	"INSURER_TIMEOUT", "INSURER_RETRIES", "PATIENT_CACHE_TTL", "PATIENT_PRUNE_INTERVAL", "SHUTDOWN_TIMEOUT",
}

// flagKeys maps config keys to the CLI flags that may override them.
var flagKeys = map[string]string{
	"DATABASE_URL": "dsn",
	"LOG_FORMAT":   "log-format",
	"LOG_LEVEL":    "log-level",
	"PORT":         "port",
}

// Load reads configuration from the optional file at path (YAML, JSON or
// .env, by extension), environment variables and, when flags is non-nil,
// explicitly set command-line flags, then validates it. Precedence is
// flag, env, file, default.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RULES_FILE", "data/validation_rules.json")
	v.SetDefault("CATALOG_SOURCE", CatalogSourceDB)
	v.SetDefault("INSURER_TIMEOUT", "30s")
	v.SetDefault("INSURER_RETRIES", 3)
	v.SetDefault("PATIENT_CACHE_TTL", "24h")
	v.SetDefault("PATIENT_PRUNE_INTERVAL", "1h")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.APIKeys = splitKeys(cfg.APIKeys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitKeys flattens comma-separated entries and drops blanks.
func splitKeys(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, k := range strings.Split(entry, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

// Validate checks the service configuration.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RulesFile == "" {
		return fmt.Errorf("RULES_FILE is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	switch c.CatalogSource {
	case CatalogSourceDB:
	case CatalogSourceJSON:
		if c.CatalogItemsFile == "" && c.CatalogServicesFile == "" {
			return fmt.Errorf("CATALOG_SOURCE=json needs CATALOG_ITEMS_FILE or CATALOG_SERVICES_FILE")
		}
	case CatalogSourceParquet:
		if c.CatalogParquetFile == "" {
			return fmt.Errorf("CATALOG_SOURCE=parquet needs CATALOG_PARQUET_FILE")
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE must be db, json or parquet, got %q", c.CatalogSource)
	}
	if c.InsurerBaseURL != "" {
		u, err := url.Parse(c.InsurerBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("INSURER_BASE_URL %q is not an absolute URL", c.InsurerBaseURL)
		}
	}
	if c.InsurerRetries < 0 {
		return fmt.Errorf("INSURER_RETRIES must not be negative")
	}
	if c.PatientCacheTTL < 0 || c.PatientPruneInterval < 0 {
		return fmt.Errorf("PATIENT_CACHE_TTL and PATIENT_PRUNE_INTERVAL must not be negative")
	}
	return nil
}

// InsurerEnabled reports whether claims can be forwarded to the insurer.
func (c *Config) InsurerEnabled() bool {
	return c.InsurerBaseURL != ""
}

// ImportOptions holds the options of one catalog import run.
type ImportOptions struct {
	DSN         string
	FilePath    string
	Label       string
	LogFormat   string // "text" or "json"
	Activate    bool
	Force       bool
	KeepStaging bool
	DryRun      bool
}

// Validate checks required fields and returns an error if the options are invalid.
func (o *ImportOptions) Validate() error {
	if o.FilePath == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(o.FilePath); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	return nil
}

// ValidateWithDSN checks both file and DSN fields.
func (o *ImportOptions) ValidateWithDSN() error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config carries the process-level settings shared by the CLI and the HTTP
// server. Values come from a .env file and KPIFORGE_-prefixed environment
// variables; generation-level settings (measures, roster, tuning) live in
// the scenario, not here.
type Config struct {
	Port         string `mapstructure:"PORT"`
	Env          string `mapstructure:"ENV"`
	Seed         int64  `mapstructure:"SEED"`
	Weeks        int    `mapstructure:"WEEKS"`
	ScenarioPath string `mapstructure:"SCENARIO_PATH"`
	OutPath      string `mapstructure:"OUT_PATH"`
	Format       string `mapstructure:"FORMAT"`
	Compress     bool   `mapstructure:"COMPRESS"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	AuthToken    string `mapstructure:"AUTH_TOKEN"`
	S3Bucket     string `mapstructure:"S3_BUCKET"`
	S3Region     string `mapstructure:"S3_REGION"`
	S3Endpoint   string `mapstructure:"S3_ENDPOINT"`
	S3PathStyle  bool   `mapstructure:"S3_PATH_STYLE"`
	RegistryCap  int    `mapstructure:"REGISTRY_CAP"`
}

// Formats accepted by the generate command and the export endpoint.
var validFormats = map[string]bool{
	"csv":      true,
	"ndjson":   true,
	"parquet":  true,
	"sqlite":   true,
	"postgres": true,
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetEnvPrefix("KPIFORGE")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("SEED", 0)
	v.SetDefault("WEEKS", 52)
	v.SetDefault("OUT_PATH", "provider_kpi_data.csv")
	v.SetDefault("FORMAT", "csv")
	v.SetDefault("REGISTRY_CAP", 16)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("SEED")
	v.BindEnv("WEEKS")
	v.BindEnv("SCENARIO_PATH")
	v.BindEnv("OUT_PATH")
	v.BindEnv("FORMAT")
	v.BindEnv("COMPRESS")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("AUTH_TOKEN")
	v.BindEnv("S3_BUCKET")
	v.BindEnv("S3_REGION")
	v.BindEnv("S3_ENDPOINT")
	v.BindEnv("S3_PATH_STYLE")
	v.BindEnv("REGISTRY_CAP")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run with. Generation
// inputs (weeks, format) are checked here so a bad environment fails at
// startup rather than mid-command.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ENV must be \"development\" or \"production\", got %q", c.Env)
	}
	if c.Weeks < 1 {
		return fmt.Errorf("WEEKS must be at least 1, got %d", c.Weeks)
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("FORMAT must be one of csv, ndjson, parquet, sqlite, postgres, got %q", c.Format)
	}
	if c.Format == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when FORMAT is \"postgres\"")
	}
	if c.Compress && c.Format != "ndjson" {
		return fmt.Errorf("COMPRESS applies only to the ndjson format, got %q", c.Format)
	}
	if c.RegistryCap < 1 {
		return fmt.Errorf("REGISTRY_CAP must be at least 1, got %d", c.RegistryCap)
	}
	if c.S3Endpoint != "" && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENDPOINT is set")
	}
	return nil
}

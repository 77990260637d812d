package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store backends the booking service can run against.
const (
	StoreBackendFHIR     = "fhir"
	StoreBackendPostgres = "postgres"
)

type Config struct {
	Port         string   `mapstructure:"PORT"`
	Env          string   `mapstructure:"ENV"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`
	StoreBackend string   `mapstructure:"STORE_BACKEND"`

	// External FHIR store (STORE_BACKEND=fhir).
	FHIRBaseURL        string `mapstructure:"FHIR_BASE_URL"`
	FHIRAuthToken      string `mapstructure:"FHIR_AUTH_TOKEN"`
	FHIRTimeoutSeconds int    `mapstructure:"FHIR_TIMEOUT_SECONDS"`

	// Service-owned Postgres store (STORE_BACKEND=postgres).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("STORE_BACKEND", StoreBackendFHIR)
	v.SetDefault("FHIR_TIMEOUT_SECONDS", 30)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "CORS_ORIGINS", "STORE_BACKEND",
		"FHIR_BASE_URL", "FHIR_AUTH_TOKEN", "FHIR_TIMEOUT_SECONDS",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	switch cfg.StoreBackend {
	case StoreBackendFHIR:
		if cfg.FHIRBaseURL == "" {
			return nil, fmt.Errorf("FHIR_BASE_URL is required when STORE_BACKEND=fhir")
		}
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

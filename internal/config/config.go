package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Identity provider (Keycloak-shaped).
	KeycloakBaseURL  string `mapstructure:"KEYCLOAK_BASE_URL"`
	KeycloakRealm    string `mapstructure:"KEYCLOAK_REALM"`
	KeycloakClientID string `mapstructure:"KEYCLOAK_CLIENT_ID"`

	// Service principal used for elevated calls to the identity provider.
	// The _FILE variants point at Docker secrets and win over the inline
	// values when set.
	ServiceUsername     string `mapstructure:"SERVICE_USERNAME"`
	ServicePassword     string `mapstructure:"SERVICE_PASSWORD"`
	ServiceUsernameFile string `mapstructure:"SERVICE_USERNAME_FILE"`
	ServicePasswordFile string `mapstructure:"SERVICE_PASSWORD_FILE"`

	// Remote stores keyed by identity id.
	ProfileBaseURL string `mapstructure:"PROFILE_BASE_URL"`
	FHIRPatientURL string `mapstructure:"FHIR_PATIENT_URL"`

	// Per-call ceiling for outbound requests; there is no shared budget
	// across the saga's sequential calls.
	UpstreamTimeoutSeconds int `mapstructure:"UPSTREAM_TIMEOUT_SECONDS"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("KEYCLOAK_REALM", "GravitateHealth")
	v.SetDefault("KEYCLOAK_CLIENT_ID", "GravitateHealth")
	v.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("KEYCLOAK_BASE_URL")
	v.BindEnv("KEYCLOAK_REALM")
	v.BindEnv("KEYCLOAK_CLIENT_ID")
	v.BindEnv("SERVICE_USERNAME")
	v.BindEnv("SERVICE_PASSWORD")
	v.BindEnv("SERVICE_USERNAME_FILE")
	v.BindEnv("SERVICE_PASSWORD_FILE")
	v.BindEnv("PROFILE_BASE_URL")
	v.BindEnv("FHIR_PATIENT_URL")
	v.BindEnv("UPSTREAM_TIMEOUT_SECONDS")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}

	if cfg.KeycloakBaseURL == "" {
		return nil, fmt.Errorf("KEYCLOAK_BASE_URL is required")
	}
	if cfg.ProfileBaseURL == "" {
		return nil, fmt.Errorf("PROFILE_BASE_URL is required")
	}
	if cfg.FHIRPatientURL == "" {
		return nil, fmt.Errorf("FHIR_PATIENT_URL is required")
	}

	return cfg, nil
}

// resolveSecrets replaces the inline service credentials with the contents of
// the _FILE paths when those are configured (Docker secret convention).
func (c *Config) resolveSecrets() error {
	if c.ServiceUsernameFile != "" {
		val, err := readSecretFile(c.ServiceUsernameFile)
		if err != nil {
			return fmt.Errorf("SERVICE_USERNAME_FILE: %w", err)
		}
		c.ServiceUsername = val
	}
	if c.ServicePasswordFile != "" {
		val, err := readSecretFile(c.ServicePasswordFile)
		if err != nil {
			return fmt.Errorf("SERVICE_PASSWORD_FILE: %w", err)
		}
		c.ServicePassword = val
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UpstreamTimeout returns the per-call outbound timeout as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	if c.UpstreamTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// Validate checks that the configuration can actually authenticate the
// service principal. Outside development a real principal must be configured.
func (c *Config) Validate() error {
	if c.IsDev() {
		return nil
	}
	if c.ServiceUsername == "" || c.ServicePassword == "" {
		return fmt.Errorf(
			"SERVICE_USERNAME and SERVICE_PASSWORD (or their _FILE variants) are required when ENV=%q", c.Env)
	}
	return nil
}

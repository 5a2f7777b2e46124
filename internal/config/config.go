package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Env         string `yaml:"env"`
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	CORSOrigins string `yaml:"cors_origins"`

	GitHubID     string `yaml:"-"`
	GitHubSecret string `yaml:"-"`
	AuthURL      string `yaml:"auth_url"`
	AuthSecret   string `yaml:"-"`

	EmailServer string `yaml:"-"`
	EmailFrom   string `yaml:"email_from"`

	AI AIConfig `yaml:"ai"`

	FCMServiceAccount string `yaml:"fcm_service_account"`

	Log LogConfig `yaml:"log"`
}

type AIConfig struct {
	APIKey  string        `yaml:"-"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load builds the configuration once at startup. Values come from the
// optional YAML file first and are then overridden by the environment.
// An empty path falls back to ./config.yaml when it exists.
func Load(path string) (*Config, error) {
	c := &Config{
		Env:  EnvDevelopment,
		Port: "8080",
		AI: AIConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "groq/compound",
			Timeout: 60 * time.Second,
		},
		Log: LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if data, err := os.ReadFile("config.yaml"); err == nil {
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	envOverride(&c.Env, "APP_ENV")
	envOverride(&c.Port, "PORT")
	envOverride(&c.DatabaseURL, "DATABASE_URL")
	envOverride(&c.CORSOrigins, "CORS_ORIGINS")
	envOverride(&c.GitHubID, "GITHUB_ID")
	envOverride(&c.GitHubSecret, "GITHUB_SECRET")
	envOverride(&c.AuthURL, "AUTH_URL")
	envOverride(&c.AuthSecret, "AUTH_SECRET")
	envOverride(&c.EmailServer, "EMAIL_SERVER")
	envOverride(&c.EmailFrom, "EMAIL_FROM")
	envOverride(&c.AI.APIKey, "GROQ_API_KEY")
	envOverride(&c.AI.BaseURL, "GROQ_BASE_URL")
	envOverride(&c.AI.Model, "GROQ_MODEL")
	envOverride(&c.FCMServiceAccount, "FCM_SERVICE_ACCOUNT")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")

	if v := os.Getenv("AI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("AI_TIMEOUT: %w", err)
		}
		c.AI.Timeout = d
	}

	return c, nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// JWTSecret returns the session signing key, falling back to a fixed
// development key when AUTH_SECRET is unset.
func (c *Config) JWTSecret() []byte {
	if c.AuthSecret == "" {
		return []byte(defaultJWTSecret)
	}
	return []byte(c.AuthSecret)
}

// InvalidVar names a variable that is present but unusable.
type InvalidVar struct {
	Name   string
	Reason string
}

type ValidationError struct {
	Missing []string
	Invalid []InvalidVar
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required environment variables: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		lines := make([]string, len(e.Invalid))
		for i, v := range e.Invalid {
			lines[i] = v.Name + ": " + v.Reason
		}
		parts = append(parts, "invalid environment variables:\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks every variable and reports all problems at once.
func (c *Config) Validate() error {
	ve := &ValidationError{}

	required := []struct {
		name  string
		value string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"GITHUB_ID", c.GitHubID},
		{"GITHUB_SECRET", c.GitHubSecret},
		{"GROQ_API_KEY", c.AI.APIKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			ve.Missing = append(ve.Missing, r.name)
			continue
		}
		switch r.name {
		case "DATABASE_URL":
			if reason := c.checkDatabaseURL(); reason != "" {
				ve.Invalid = append(ve.Invalid, InvalidVar{r.name, reason})
			}
		case "GROQ_API_KEY":
			if len(r.value) < 10 {
				ve.Invalid = append(ve.Invalid, InvalidVar{r.name, "API key appears to be too short"})
			}
		case "GITHUB_ID", "GITHUB_SECRET":
			if len(r.value) < 10 {
				ve.Invalid = append(ve.Invalid, InvalidVar{r.name, "Value appears to be too short"})
			}
		}
	}

	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		ve.Invalid = append(ve.Invalid, InvalidVar{"APP_ENV",
			fmt.Sprintf("Must be one of: development, production, test. Got: %s", c.Env)})
	}

	if c.EmailServer != "" && c.IsProduction() &&
		!strings.Contains(c.EmailServer, "://") && !strings.Contains(c.EmailServer, ":") {
		ve.Invalid = append(ve.Invalid, InvalidVar{"EMAIL_SERVER", "Should be a valid SMTP connection string or URL"})
	}
	if c.EmailFrom != "" && !strings.Contains(c.EmailFrom, "@") {
		ve.Invalid = append(ve.Invalid, InvalidVar{"EMAIL_FROM", "Should be a valid email address"})
	}
	if c.AuthURL != "" {
		if u, err := url.Parse(c.AuthURL); err != nil || u.Scheme == "" || u.Host == "" {
			ve.Invalid = append(ve.Invalid, InvalidVar{"AUTH_URL", "Must be a valid URL"})
		}
	}
	if c.AuthSecret != "" && len(c.AuthSecret) < 32 {
		ve.Invalid = append(ve.Invalid, InvalidVar{"AUTH_SECRET", "Should be at least 32 characters long for security"})
	}
	if c.AuthSecret == "" && c.IsProduction() {
		ve.Invalid = append(ve.Invalid, InvalidVar{"AUTH_SECRET", "Must be set in production"})
	}

	if len(ve.Missing) > 0 || len(ve.Invalid) > 0 {
		return ve
	}
	return nil
}

func (c *Config) checkDatabaseURL() string {
	v := c.DatabaseURL
	if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
		return ""
	}
	if c.IsProduction() {
		return "Must be a valid PostgreSQL connection string (starts with postgresql:// or postgres://)"
	}
	if strings.HasPrefix(v, "mysql://") || !strings.Contains(v, "://") {
		return ""
	}
	return "Must be a postgres://, mysql:// or sqlite file connection string"
}

// Summary is safe to log: secrets are masked and the database URL is
// reduced to its scheme and host.
func (c *Config) Summary() map[string]string {
	vars := []struct {
		name  string
		value string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"GITHUB_ID", c.GitHubID},
		{"GITHUB_SECRET", c.GitHubSecret},
		{"GROQ_API_KEY", c.AI.APIKey},
		{"EMAIL_SERVER", c.EmailServer},
		{"EMAIL_FROM", c.EmailFrom},
		{"AUTH_URL", c.AuthURL},
		{"AUTH_SECRET", c.AuthSecret},
	}

	summary := make(map[string]string, len(vars))
	for _, v := range vars {
		switch {
		case v.value == "":
			summary[v.name] = "(not set)"
		case strings.Contains(v.name, "SECRET") || strings.Contains(v.name, "KEY") || strings.Contains(v.name, "PASSWORD"):
			summary[v.name] = mask(v.value)
		case v.name == "DATABASE_URL":
			summary[v.name] = maskDatabaseURL(v.value)
		default:
			summary[v.name] = v.value
		}
	}
	return summary
}

func mask(v string) string {
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "..." + v[len(v)-4:]
}

func maskDatabaseURL(v string) string {
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	if u.Path != "" {
		return u.Scheme + "://" + u.Hostname() + "..."
	}
	return u.Scheme + "://" + u.Hostname()
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

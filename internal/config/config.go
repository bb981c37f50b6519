// Package config provides environment-variable-first configuration loading
// with optional YAML file and .env layers for the mail relay.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultDotEnvFile is read when no explicit .env path is given.
const DefaultDotEnvFile = ".env"

// defaultMaxBodyBytes is 25 MB in bytes.
const defaultMaxBodyBytes = 26214400

// Provider names accepted by MAIL_PROVIDER.
const (
	ProviderSMTP   = "smtp"
	ProviderSES    = "ses"
	ProviderStdout = "stdout"
)

// Config holds the complete application configuration. It is loaded once at
// startup and treated as read-only afterwards.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Security SecurityConfig `yaml:"security"`
	Provider string         `yaml:"provider"`
	SES      SESConfig      `yaml:"ses"`
	TLS      TLSConfig      `yaml:"tls"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig holds the API listener configuration.
type HTTPConfig struct {
	Listen       string `yaml:"listen"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// SMTPConfig holds the upstream relay configuration.
type SMTPConfig struct {
	Server    string `yaml:"server"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"from_email"`
	// UseTLS is nil when unset, which means enabled. It has no default so
	// mergo never overwrites an explicit false from YAML.
	UseTLS  *bool         `yaml:"use_tls"`
	Timeout time.Duration `yaml:"timeout"`
}

// SecurityConfig holds the access gate configuration.
type SecurityConfig struct {
	APIKey     string   `yaml:"api_key"`
	AllowedIPs []string `yaml:"allowed_ips"`
}

// SESConfig holds AWS SES v2 configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// TLSConfig holds the optional HTTPS settings of the API.
type TLSConfig struct {
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	SelfSigned bool   `yaml:"self_signed"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadDotEnv exports the variables of a .env file into the process
// environment without overriding variables that are already set. A missing
// default file is not an error; a missing explicit file is.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultDotEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := defaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer, fills
// unset fields with defaults, then overrides with environment variables.
// Returns an error if the specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := mergo.Merge(cfg, defaults()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	// Environment variables always override YAML values
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// TLSEnabled reports whether STARTTLS is requested on non-implicit-TLS ports.
func (s SMTPConfig) TLSEnabled() bool {
	return s.UseTLS == nil || *s.UseTLS
}

// SMTPConfigured returns true if the relay host, port and sender are set.
func (c *Config) SMTPConfigured() bool {
	return len(c.MissingSMTP()) == 0
}

// MissingSMTP lists the environment variables of unset required relay settings.
// Credentials are optional for relays that accept unauthenticated
// submission, but half a pair is reported.
func (c *Config) MissingSMTP() []string {
	var missing []string
	if c.SMTP.Server == "" {
		missing = append(missing, "SMTP_SERVER")
	}
	if c.SMTP.Port == 0 {
		missing = append(missing, "SMTP_PORT")
	}
	if c.SMTP.FromEmail == "" {
		missing = append(missing, "SMTP_FROM_EMAIL")
	}
	if c.SMTP.Username != "" && c.SMTP.Password == "" {
		missing = append(missing, "SMTP_PASSWORD")
	}
	if c.SMTP.Password != "" && c.SMTP.Username == "" {
		missing = append(missing, "SMTP_USER")
	}
	return missing
}

// SESConfigured returns true if the SES region and sender are set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// MissingSES lists the environment variables of unset required SES settings.
func (c *Config) MissingSES() []string {
	var missing []string
	if c.SES.Region == "" {
		missing = append(missing, "SES_REGION")
	}
	if c.SES.Sender == "" {
		missing = append(missing, "SES_SENDER")
	}
	return missing
}

// MissingForProvider lists the unset settings required by the active provider.
func (c *Config) MissingForProvider() []string {
	switch c.Provider {
	case ProviderSES:
		return c.MissingSES()
	case ProviderStdout:
		return nil
	default:
		return c.MissingSMTP()
	}
}

// AuthEnabled returns true if an API key is configured.
func (c *Config) AuthEnabled() bool {
	return c.Security.APIKey != ""
}

// Validate checks values that cannot be corrected by defaults.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderSMTP, ProviderSES, ProviderStdout:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid SMTP port %d", c.SMTP.Port)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid HTTP max body bytes %d", c.HTTP.MaxBodyBytes)
	}
	return nil
}

// defaults returns the default configuration.
func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Listen:       ":8000",
			MaxBodyBytes: defaultMaxBodyBytes,
		},
		SMTP: SMTPConfig{
			Port:    587,
			Timeout: 30 * time.Second,
		},
		Provider: ProviderSMTP,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values; malformed
// numbers, booleans and durations are reported together.
func (c *Config) applyEnvVars() error {
	var errs []error

	if v := os.Getenv("HTTP_LISTEN"); v != "" {
		c.HTTP.Listen = v
	}
	if v := os.Getenv("HTTP_MAX_BODY_BYTES"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.HTTP.MaxBodyBytes = size
		} else {
			errs = append(errs, fmt.Errorf("HTTP_MAX_BODY_BYTES: %w", err))
		}
	}

	if v := os.Getenv("SMTP_SERVER"); v != "" {
		c.SMTP.Server = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		} else {
			errs = append(errs, fmt.Errorf("SMTP_PORT: %w", err))
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_FROM_EMAIL"); v != "" {
		c.SMTP.FromEmail = v
	}
	if v := os.Getenv("SMTP_USE_TLS"); v != "" {
		if useTLS, err := strconv.ParseBool(v); err == nil {
			c.SMTP.UseTLS = &useTLS
		} else {
			errs = append(errs, fmt.Errorf("SMTP_USE_TLS: %w", err))
		}
	}
	if v := os.Getenv("SMTP_TIMEOUT"); v != "" {
		if timeout, err := parseDuration(v); err == nil {
			c.SMTP.Timeout = timeout
		} else {
			errs = append(errs, fmt.Errorf("SMTP_TIMEOUT: %w", err))
		}
	}

	if v := os.Getenv("API_KEY"); v != "" {
		c.Security.APIKey = v
	}
	if v := os.Getenv("ALLOWED_IPS"); v != "" {
		c.Security.AllowedIPs = splitList(v)
	}

	if v := os.Getenv("MAIL_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
	}

	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		c.TLS.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		c.TLS.KeyFile = v
	}
	if v := os.Getenv("TLS_SELF_SIGNED"); v != "" {
		if selfSigned, err := strconv.ParseBool(v); err == nil {
			c.TLS.SelfSigned = selfSigned
		} else {
			errs = append(errs, fmt.Errorf("TLS_SELF_SIGNED: %w", err))
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	return nil
}

// parseDuration accepts Go durations ("30s") and bare seconds ("30").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

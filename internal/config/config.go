package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is built once at startup and passed into the pipeline, fetcher and
// mailer. Nothing below internal/config reads the process environment.
type Config struct {
	SAMAPIKey  string `mapstructure:"sam_api_key"`
	APIVersion string `mapstructure:"api_version"` // "v2" (default) or "v1"

	Recipients string `mapstructure:"recipients"` // comma-separated

	MailTransport string `mapstructure:"mail_transport"` // "smtp" or "api"
	SMTPHost      string `mapstructure:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"`
	SMTPUser      string `mapstructure:"smtp_user"`
	SMTPPassword  string `mapstructure:"smtp_password"`
	FromAddress   string `mapstructure:"from_address"`
	MailAPIURL    string `mapstructure:"mail_api_url"`
	MailAPIToken  string `mapstructure:"mail_api_token"`

	AttachmentFormat string `mapstructure:"attachment_format"` // "csv" (default) or "xlsx"

	DatabaseURL string `mapstructure:"database_url"` // optional run history

	// Admin API (cmd/server only).
	Port              string `mapstructure:"port"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"` // bcrypt
	JWTSecret         string `mapstructure:"jwt_secret"`
	CORSOrigins       string `mapstructure:"cors_origins"`

	SearchesFile string `mapstructure:"searches_file"` // overrides embedded registry

	LogLevel       string        `mapstructure:"log_level"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// ConfigError reports a missing or invalid required value. It is returned
// before any network call is attempted.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// Load reads an optional config.yaml from the working directory and lets
// environment variables override every key (SAM_API_KEY, SMTP_HOST, ...).
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_version", "v2")
	v.SetDefault("mail_transport", "smtp")
	v.SetDefault("smtp_port", 465)
	v.SetDefault("attachment_format", "csv")
	v.SetDefault("port", "8081")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("max_retries", 3)

	// Viper only sees env vars for keys it knows about; register them all.
	for _, key := range []string{
		"sam_api_key", "recipients", "smtp_host", "smtp_user", "smtp_password",
		"from_address", "mail_api_url", "mail_api_token", "database_url",
		"admin_password_hash", "jwt_secret", "cors_origins", "searches_file",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks everything a report run needs. It must pass before the
// first HTTP request is issued.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SAMAPIKey) == "" {
		return &ConfigError{Field: "sam_api_key", Reason: "is required"}
	}
	if c.APIVersion != "v1" && c.APIVersion != "v2" {
		return &ConfigError{Field: "api_version", Reason: "must be v1 or v2"}
	}
	if len(c.RecipientList()) == 0 {
		return &ConfigError{Field: "recipients", Reason: "is required"}
	}
	if strings.TrimSpace(c.FromAddress) == "" {
		return &ConfigError{Field: "from_address", Reason: "is required"}
	}

	switch c.MailTransport {
	case "smtp":
		if c.SMTPHost == "" {
			return &ConfigError{Field: "smtp_host", Reason: "is required for smtp transport"}
		}
		if c.SMTPUser == "" || c.SMTPPassword == "" {
			return &ConfigError{Field: "smtp_user/smtp_password", Reason: "are required for smtp transport"}
		}
	case "api":
		if c.MailAPIURL == "" {
			return &ConfigError{Field: "mail_api_url", Reason: "is required for api transport"}
		}
		if c.MailAPIToken == "" {
			return &ConfigError{Field: "mail_api_token", Reason: "is required for api transport"}
		}
	default:
		return &ConfigError{Field: "mail_transport", Reason: "must be smtp or api"}
	}

	if c.AttachmentFormat != "csv" && c.AttachmentFormat != "xlsx" {
		return &ConfigError{Field: "attachment_format", Reason: "must be csv or xlsx"}
	}

	return nil
}

// RecipientList splits the comma-separated recipients value.
func (c *Config) RecipientList() []string {
	var out []string
	for _, r := range strings.Split(c.Recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		SAMAPIKey:        "key",
		APIVersion:       "v2",
		Recipients:       "a@example.com, b@example.com",
		MailTransport:    "smtp",
		SMTPHost:         "smtp.gmail.com",
		SMTPPort:         465,
		SMTPUser:         "sender@gmail.com",
		SMTPPassword:     "app-password",
		FromAddress:      "sender@gmail.com",
		AttachmentFormat: "csv",
		RequestTimeout:   60 * time.Second,
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateMissingValues(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"missing api key", func(c *Config) { c.SAMAPIKey = "" }, "sam_api_key"},
		{"missing recipients", func(c *Config) { c.Recipients = " , " }, "recipients"},
		{"missing from", func(c *Config) { c.FromAddress = "" }, "from_address"},
		{"missing smtp host", func(c *Config) { c.SMTPHost = "" }, "smtp_host"},
		{"bad api version", func(c *Config) { c.APIVersion = "v3" }, "api_version"},
		{"bad transport", func(c *Config) { c.MailTransport = "carrier-pigeon" }, "mail_transport"},
		{"bad format", func(c *Config) { c.AttachmentFormat = "pdf" }, "attachment_format"},
		{"api transport without url", func(c *Config) { c.MailTransport = "api" }, "mail_api_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestRecipientList(t *testing.T) {
	cfg := &Config{Recipients: " a@example.com ,b@example.com,, "}
	got := cfg.RecipientList()
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Errorf("RecipientList = %v", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks the aliases so a developer's shell does not leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_MODEL",
		"OPENAI_API_KEY", "OPENAI_MODEL", "AI_PROVIDER",
		"EMAIL_PROVIDER", "EMAIL_FROM", "EMAIL_TO", "EMAIL_PASSWORD", "SMTP_PASSWORD",
		"SMTP_HOST", "EMAIL_SMTP_HOST", "SMTP_USERNAME", "EMAIL_USERNAME", "SENDGRID_API_KEY",
		"MAX_OUTPUT_TOKENS", "GEMINI_MAX_TOKENS", "MAX_RETRIES",
		"PROMPT_TEMPLATE", "TEMPLATE_PROMPT_PATH", "BIBLE_DATABASE_PATH",
		"DEBUG", "TZ_NAME", "APP_TIMEZONE", "ADMIN_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, "app:\n  debug: false\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Timezone != "Asia/Ho_Chi_Minh" {
		t.Errorf("Expected default timezone Asia/Ho_Chi_Minh, got %s", cfg.App.Timezone)
	}
	if cfg.Schedule.Timezone != cfg.App.Timezone {
		t.Errorf("Expected schedule timezone to inherit %s, got %s", cfg.App.Timezone, cfg.Schedule.Timezone)
	}
	if cfg.Source.Timeout != 30*time.Second {
		t.Errorf("Expected source timeout 30s, got %v", cfg.Source.Timeout)
	}
	if !strings.Contains(cfg.Source.URL, "{date}") {
		t.Errorf("Expected default source URL to carry a date placeholder, got %s", cfg.Source.URL)
	}

	g := cfg.Generation
	if g.InitialBudget != 2048 || g.MaxRetries != 2 || g.MaxBudget != 16384 || g.ShrinkChars != 2500 {
		t.Errorf("Unexpected generation defaults: %+v", g)
	}
	if g.BudgetGrowth != 2.0 {
		t.Errorf("Expected budget growth 2.0, got %v", g.BudgetGrowth)
	}
	if g.AttemptTimeout != 60*time.Second {
		t.Errorf("Expected attempt timeout 60s, got %v", g.AttemptTimeout)
	}
	if cfg.Schedule.Cron != "0 6 * * *" {
		t.Errorf("Expected default cron '0 6 * * *', got %q", cfg.Schedule.Cron)
	}
	if cfg.Email.SMTP.Host != "smtp.gmail.com" || cfg.Email.SMTP.Port != 587 {
		t.Errorf("Unexpected SMTP defaults: %+v", cfg.Email.SMTP)
	}
}

func TestLoad_EnvironmentAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("EMAIL_FROM", "diary@example.com")
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com")
	t.Setenv("EMAIL_PASSWORD", "app-password")
	t.Setenv("MAX_RETRIES", "4")

	cfg, err := Load(writeConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AI.Gemini.APIKey != "google-key" {
		t.Errorf("Expected Gemini key from GOOGLE_API_KEY, got %q", cfg.AI.Gemini.APIKey)
	}
	if cfg.Generation.MaxRetries != 4 {
		t.Errorf("Expected max retries 4, got %d", cfg.Generation.MaxRetries)
	}
	if len(cfg.Email.To) != 2 || cfg.Email.To[0] != "a@example.com" || cfg.Email.To[1] != "b@example.com" {
		t.Errorf("Expected two trimmed recipients, got %q", cfg.Email.To)
	}
	if cfg.Email.SMTP.Username != "diary@example.com" {
		t.Errorf("Expected SMTP username to default to sender, got %q", cfg.Email.SMTP.Username)
	}
}

func TestLoad_FirstAliasWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "primary")
	t.Setenv("GOOGLE_API_KEY", "secondary")

	cfg, err := Load(writeConfig(t, "app:\n  debug: false\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AI.Gemini.APIKey != "primary" {
		t.Errorf("Expected GEMINI_API_KEY to take precedence, got %q", cfg.AI.Gemini.APIKey)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
app:
  debug: true
  timezone: UTC
source:
  url: https://example.com/readings
  timeout: 10s
generation:
  max_retries: 3
  shrink_chars: 1200
schedule:
  cron: "30 5 * * *"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.ConfigFile != path {
		t.Errorf("Expected config file %s, got %s", path, cfg.App.ConfigFile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug to force log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Source.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.Source.Timeout)
	}
	if cfg.Generation.MaxRetries != 3 || cfg.Generation.ShrinkChars != 1200 {
		t.Errorf("Unexpected generation config: %+v", cfg.Generation)
	}
	if cfg.Schedule.Cron != "30 5 * * *" {
		t.Errorf("Expected cron from file, got %q", cfg.Schedule.Cron)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Expected UTC location, got %v", cfg.Location())
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "app:\n  timezone: Mars/Olympus\n"))
	if err == nil {
		t.Fatal("Expected error for unknown timezone")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "source:\n  timeout: soon\n"))
	if err == nil {
		t.Fatal("Expected error for malformed duration")
	}
}

func TestValidateAI(t *testing.T) {
	base := func() *Config {
		return &Config{
			AI: AI{
				Provider: "gemini",
				Gemini:   Gemini{APIKey: "key", Model: "gemini-2.5-flash"},
				OpenAI:   OpenAI{Model: "gpt-4o-mini"},
			},
			Generation: Generation{InitialBudget: 2048, MaxRetries: 2, BudgetGrowth: 2, MaxBudget: 16384},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid gemini", func(c *Config) {}, ""},
		{"missing gemini key", func(c *Config) { c.AI.Gemini.APIKey = "" }, "Gemini API key is required"},
		{"openai without key", func(c *Config) { c.AI.Provider = "openai" }, "OpenAI API key is required"},
		{"valid openai", func(c *Config) { c.AI.Provider = "openai"; c.AI.OpenAI.APIKey = "sk" }, ""},
		{"unknown provider", func(c *Config) { c.AI.Provider = "claude" }, "Unknown AI provider"},
		{"zero budget", func(c *Config) { c.Generation.InitialBudget = 0 }, "initial_budget must be positive"},
		{"negative retries", func(c *Config) { c.Generation.MaxRetries = -1 }, "max_retries must not be negative"},
		{"shrinking growth", func(c *Config) { c.Generation.BudgetGrowth = 0.5 }, "budget_growth must be at least 1"},
		{"ceiling below start", func(c *Config) { c.Generation.MaxBudget = 1024 }, "max_budget must not be below"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.ValidateAI()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   Email
		wantErr string
	}{
		{
			name:  "gmail smtp",
			email: Email{Provider: "gmail", From: "a@example.com", To: []string{"b@example.com"}, Password: "pw", SMTP: SMTPConfig{Host: "smtp.gmail.com"}},
		},
		{
			name:    "missing password",
			email:   Email{Provider: "smtp", From: "a@example.com", To: []string{"b@example.com"}, SMTP: SMTPConfig{Host: "smtp.gmail.com"}},
			wantErr: "SMTP password is required",
		},
		{
			name:  "sendgrid",
			email: Email{Provider: "sendgrid", From: "a@example.com", To: []string{"b@example.com"}, SendGrid: SendGrid{APIKey: "SG.x"}},
		},
		{
			name:    "ses unsupported",
			email:   Email{Provider: "ses", From: "a@example.com", To: []string{"b@example.com"}},
			wantErr: "Unsupported email provider: ses",
		},
		{
			name:    "no recipients",
			email:   Email{Provider: "sendgrid", From: "a@example.com", SendGrid: SendGrid{APIKey: "SG.x"}},
			wantErr: "At least one recipient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Email: tt.email}
			err := cfg.ValidateEmail()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

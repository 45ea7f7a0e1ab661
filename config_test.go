package spool_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/spool"
)

func TestDefaultConfig(t *testing.T) {
	cfg := spool.DefaultConfig()

	if !cfg.RetryEnabled {
		t.Error("RetryEnabled = false, want true")
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if got := cfg.RetryDelay.Duration(); got != 5*time.Second {
		t.Errorf("RetryDelay = %v, want 5s", got)
	}
	if cfg.EmailNotificationsEnabled {
		t.Error("EmailNotificationsEnabled = true, want false")
	}
	if got := cfg.ConnectionTimeout.Duration(); got != 30*time.Second {
		t.Errorf("ConnectionTimeout = %v, want 30s", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := spool.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxRetries != spool.DefaultConfig().MaxRetries {
		t.Errorf("MaxRetries = %d, want default", cfg.MaxRetries)
	}
}

func TestLoadConfig_SecondsAndDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.yaml")
	content := `
retry_enabled: false
retry_count: 7
retry_delay: 12
connection_timeout: 1m30s
email_notifications_enabled: true
admin_emails: [ops@example.com]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := spool.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RetryEnabled {
		t.Error("RetryEnabled = true, want false")
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", cfg.MaxRetries)
	}
	if got := cfg.RetryDelay.Duration(); got != 12*time.Second {
		t.Errorf("RetryDelay = %v, want 12s", got)
	}
	if got := cfg.ConnectionTimeout.Duration(); got != 90*time.Second {
		t.Errorf("ConnectionTimeout = %v, want 1m30s", got)
	}
	if !cfg.EmailNotificationsEnabled {
		t.Error("EmailNotificationsEnabled = false, want true")
	}
	if len(cfg.AdminEmails) != 1 || cfg.AdminEmails[0] != "ops@example.com" {
		t.Errorf("AdminEmails = %v", cfg.AdminEmails)
	}
	// Unset keys keep their defaults.
	if cfg.ProcessSchedule != "@every 30s" {
		t.Errorf("ProcessSchedule = %q, want default", cfg.ProcessSchedule)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.yaml")
	if err := os.WriteFile(path, []byte("retry_delay: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := spool.LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("SPOOL_RETRY_COUNT", "9")
	t.Setenv("SPOOL_RETRY_DELAY", "2")
	t.Setenv("SPOOL_EMAIL_NOTIFICATIONS_ENABLED", "true")
	t.Setenv("SPOOL_ADMIN_EMAILS", "a@example.com, b@example.com")
	t.Setenv("SPOOL_CONNECTION_TIMEOUT", "not-a-number")

	cfg := spool.DefaultConfig()
	cfg.ApplyEnv()

	if cfg.MaxRetries != 9 {
		t.Errorf("MaxRetries = %d, want 9", cfg.MaxRetries)
	}
	if got := cfg.RetryDelay.Duration(); got != 2*time.Second {
		t.Errorf("RetryDelay = %v, want 2s", got)
	}
	if !cfg.EmailNotificationsEnabled {
		t.Error("EmailNotificationsEnabled = false, want true")
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "b@example.com" {
		t.Errorf("AdminEmails = %v", cfg.AdminEmails)
	}
	if got := cfg.ConnectionTimeout.Duration(); got != 30*time.Second {
		t.Errorf("ConnectionTimeout = %v, want unchanged 30s", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*spool.Config)
	}{
		{"zero connection timeout", func(c *spool.Config) { c.ConnectionTimeout = 0 }},
		{"negative retries", func(c *spool.Config) { c.MaxRetries = -1 }},
		{"negative retry delay", func(c *spool.Config) { c.RetryDelay = spool.Seconds(-time.Second) }},
		{"no delivery workers", func(c *spool.Config) { c.DeliveryConcurrency = 0 }},
		{"negative rate limit", func(c *spool.Config) { c.PrinterRateLimit = -1 }},
		{"empty schedule", func(c *spool.Config) { c.ProcessSchedule = " " }},
		{"invalid process schedule", func(c *spool.Config) { c.ProcessSchedule = "every thirty seconds" }},
		{"invalid monitor schedule", func(c *spool.Config) { c.MonitorSchedule = "61 * * * *" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := spool.DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := spool.NewValidationError("copies", "must be at least 1, got %d", 0)
	if !spool.IsValidation(err) {
		t.Error("IsValidation = false, want true")
	}
	if got := err.Error(); got != "spool: validation: copies: must be at least 1, got 0" {
		t.Errorf("Error() = %q", got)
	}
	if spool.IsValidation(spool.ErrJobNotFound) {
		t.Error("IsValidation(ErrJobNotFound) = true")
	}
	if !spool.IsNotFound(spool.ErrPrinterNotFound) {
		t.Error("IsNotFound(ErrPrinterNotFound) = false")
	}
}

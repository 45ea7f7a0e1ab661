package spool

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the broker-wide settings consumed by the engine, the retry
// policy, the queue processor and the notification hooks.
type Config struct {
	// RetryEnabled turns automatic retry of transient failures on or off.
	RetryEnabled bool `yaml:"retry_enabled"`

	// MaxRetries is the number of retries allowed before a job is
	// terminally failed.
	MaxRetries int `yaml:"retry_count"`

	// RetryDelay is the base delay of the exponential backoff.
	RetryDelay Seconds `yaml:"retry_delay"`

	// EnforceBackoff makes retries wait for their backoff delay instead of
	// being processed immediately.
	EnforceBackoff bool `yaml:"enforce_backoff"`

	// EmailNotificationsEnabled gates administrator failure notifications.
	EmailNotificationsEnabled bool `yaml:"email_notifications_enabled"`

	// AdminEmails receive failure notifications.
	AdminEmails []string `yaml:"admin_emails"`

	// ConnectionTimeout bounds every call into a print sink.
	ConnectionTimeout Seconds `yaml:"connection_timeout"`

	// ProcessSchedule is the cron expression for periodic queue processing.
	ProcessSchedule string `yaml:"process_schedule"`

	// MonitorSchedule is the cron expression for printer connectivity checks.
	// Empty disables the monitor.
	MonitorSchedule string `yaml:"monitor_schedule"`

	// DeliveryConcurrency is the number of concurrent sink deliveries.
	DeliveryConcurrency int `yaml:"delivery_concurrency"`

	// PrinterRateLimit caps deliveries per second to a single printer.
	// Zero means unlimited.
	PrinterRateLimit float64 `yaml:"printer_rate_limit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryEnabled:              true,
		MaxRetries:                3,
		RetryDelay:                Seconds(5 * time.Second),
		EmailNotificationsEnabled: false,
		ConnectionTimeout:         Seconds(30 * time.Second),
		ProcessSchedule:           "@every 30s",
		MonitorSchedule:           "@every 1m",
		DeliveryConcurrency:       4,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig. A missing
// file is not an error: the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("spool: read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("spool: parse config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from SPOOL_* environment variables. Unparseable
// values are ignored.
func (c *Config) ApplyEnv() {
	if v, ok := lookupBool("SPOOL_RETRY_ENABLED"); ok {
		c.RetryEnabled = v
	}
	if v := os.Getenv("SPOOL_RETRY_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("SPOOL_RETRY_DELAY"); v != "" {
		if d, err := parseSeconds(v); err == nil {
			c.RetryDelay = d
		}
	}
	if v, ok := lookupBool("SPOOL_ENFORCE_BACKOFF"); ok {
		c.EnforceBackoff = v
	}
	if v, ok := lookupBool("SPOOL_EMAIL_NOTIFICATIONS_ENABLED"); ok {
		c.EmailNotificationsEnabled = v
	}
	if v := os.Getenv("SPOOL_ADMIN_EMAILS"); v != "" {
		c.AdminEmails = splitList(v)
	}
	if v := os.Getenv("SPOOL_CONNECTION_TIMEOUT"); v != "" {
		if d, err := parseSeconds(v); err == nil {
			c.ConnectionTimeout = d
		}
	}
	if v := os.Getenv("SPOOL_PROCESS_SCHEDULE"); v != "" {
		c.ProcessSchedule = v
	}
	if v, ok := os.LookupEnv("SPOOL_MONITOR_SCHEDULE"); ok {
		c.MonitorSchedule = v
	}
	if v := os.Getenv("SPOOL_DELIVERY_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DeliveryConcurrency = n
		}
	}
	if v := os.Getenv("SPOOL_PRINTER_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.PrinterRateLimit = f
		}
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.ConnectionTimeout.Duration() <= 0 {
		return errors.New("spool: connection timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("spool: retry count must be non-negative")
	}
	if c.RetryDelay.Duration() < 0 {
		return errors.New("spool: retry delay must be non-negative")
	}
	if c.DeliveryConcurrency < 1 {
		return errors.New("spool: delivery concurrency must be at least 1")
	}
	if c.PrinterRateLimit < 0 {
		return errors.New("spool: printer rate limit must be non-negative")
	}
	if strings.TrimSpace(c.ProcessSchedule) == "" {
		return errors.New("spool: process schedule is required")
	}
	if _, err := cronlib.ParseStandard(c.ProcessSchedule); err != nil {
		return fmt.Errorf("spool: invalid process schedule %q: %w", c.ProcessSchedule, err)
	}
	if c.MonitorSchedule != "" {
		if _, err := cronlib.ParseStandard(c.MonitorSchedule); err != nil {
			return fmt.Errorf("spool: invalid monitor schedule %q: %w", c.MonitorSchedule, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Seconds
// ──────────────────────────────────────────────────

// Seconds is a duration that reads from YAML either as an integer number of
// seconds (retry_delay: 5) or as a Go duration string (retry_delay: 1m30s).
type Seconds time.Duration

// Duration returns s as a time.Duration.
func (s Seconds) Duration() time.Duration { return time.Duration(s) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	d, err := parseSeconds(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = d
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Seconds) MarshalYAML() (any, error) {
	d := time.Duration(s)
	if d%time.Second == 0 {
		return int64(d / time.Second), nil
	}
	return d.String(), nil
}

func parseSeconds(v string) (Seconds, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return Seconds(time.Duration(n) * time.Second), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return Seconds(d), nil
}

func lookupBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
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

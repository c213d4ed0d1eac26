// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"chaossim/internal/telemetry"
)

// Diagnose providers.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderRules  = "rules"
)

// Default endpoints per provider.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
	DefaultModel  = "llama-3.3-70b-versatile"
)

// Bounds of the autonomous remediation threshold.
const (
	MinThreshold = 0
	MaxThreshold = 100
)

// Baseline holds the gauge values a fresh or reset node starts from.
type Baseline struct {
	MemoryMB    float64 `yaml:"memory_mb"`
	LatencyMs   float64 `yaml:"latency_ms"`
	DiskPercent float64 `yaml:"disk_percent"`
}

// Telemetry converts the configured baseline to the engine type.
func (b Baseline) Telemetry() telemetry.Baseline {
	return telemetry.Baseline{MemoryMB: b.MemoryMB, LatencyMs: b.LatencyMs, DiskPercent: b.DiskPercent}
}

// Intervals are the periods of the engine's periodic tasks.
type Intervals struct {
	Simulation time.Duration `yaml:"simulation"`
	Logs       time.Duration `yaml:"logs"`
	Monitor    time.Duration `yaml:"monitor"`
}

// Scheduler tunes automatic diagnosis and remediation.
type Scheduler struct {
	CooldownDegraded    time.Duration `yaml:"cooldown_degraded"`
	CooldownHealthy     time.Duration `yaml:"cooldown_healthy"`
	AutonomousThreshold int           `yaml:"autonomous_threshold"`
	RemediationDelay    time.Duration `yaml:"remediation_delay"`
	NoticeTTL           time.Duration `yaml:"notice_ttl"`
}

// Retention bounds the in-memory histories.
type Retention struct {
	Logs         int `yaml:"logs"`
	Audit        int `yaml:"audit"`
	SnapshotLogs int `yaml:"snapshot_logs"`
}

// Diagnose configures the reasoning service client.
type Diagnose struct {
	Provider          string        `yaml:"provider"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RateLimitBackoff  time.Duration `yaml:"rate_limit_backoff"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	Temperature       float32       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	RequestsPerMinute float64       `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// APIKey reads the key from the configured environment variable.
func (d Diagnose) APIKey() string {
	if d.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(d.APIKeyEnv)
}

// Endpoint returns the base URL, falling back to the provider default.
func (d Diagnose) Endpoint() string {
	if d.BaseURL != "" {
		return d.BaseURL
	}
	if d.Provider == ProviderOpenAI {
		return OpenAIBaseURL
	}
	return GroqBaseURL
}

// Admin configures the operator HTTP API.
type Admin struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration of a console session.
type Config struct {
	NodeID    string    `yaml:"node_id"`
	Baseline  Baseline  `yaml:"baseline"`
	Intervals Intervals `yaml:"intervals"`
	Scheduler Scheduler `yaml:"scheduler"`
	Retention Retention `yaml:"retention"`
	Diagnose  Diagnose  `yaml:"diagnose"`
	Admin     Admin     `yaml:"admin"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	b := telemetry.DefaultBaseline
	return &Config{
		NodeID:   "node-1",
		Baseline: Baseline{MemoryMB: b.MemoryMB, LatencyMs: b.LatencyMs, DiskPercent: b.DiskPercent},
		Intervals: Intervals{
			Simulation: time.Second,
			Logs:       4 * time.Second,
			Monitor:    time.Second,
		},
		Scheduler: Scheduler{
			CooldownDegraded:    10 * time.Second,
			CooldownHealthy:     30 * time.Second,
			AutonomousThreshold: 80,
			RemediationDelay:    1500 * time.Millisecond,
			NoticeTTL:           10 * time.Second,
		},
		Retention: Retention{Logs: 50, Audit: 15, SnapshotLogs: 10},
		Diagnose: Diagnose{
			Provider:          ProviderGroq,
			Model:             DefaultModel,
			APIKeyEnv:         "GROQ_API_KEY",
			MaxAttempts:       3,
			RateLimitBackoff:  2 * time.Second,
			RetryBackoff:      time.Second,
			Temperature:       0.3,
			MaxTokens:         2000,
			RequestsPerMinute: 30,
			Timeout:           30 * time.Second,
		},
		Admin: Admin{Addr: ":8080"},
	}
}

// Load reads a YAML config, validates it against the CUE schema and fills
// absent keys with defaults. An empty configPath yields Default(). An empty
// schemaPath selects the embedded schema.
func Load(configPath, schemaPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}
	if err := ValidateWithCue(configPath, schemaPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.NodeID == "" {
		errs = append(errs, errors.New("node_id must not be empty"))
	}
	if c.Intervals.Simulation <= 0 || c.Intervals.Logs <= 0 || c.Intervals.Monitor <= 0 {
		errs = append(errs, errors.New("intervals must be positive"))
	}
	if c.Scheduler.AutonomousThreshold < MinThreshold || c.Scheduler.AutonomousThreshold > MaxThreshold {
		errs = append(errs, fmt.Errorf("autonomous_threshold %d out of range %d-%d", c.Scheduler.AutonomousThreshold, MinThreshold, MaxThreshold))
	}
	if c.Retention.Logs < 1 || c.Retention.Audit < 1 || c.Retention.SnapshotLogs < 1 {
		errs = append(errs, errors.New("retention sizes must be at least 1"))
	}
	if c.Diagnose.MaxAttempts < 1 {
		errs = append(errs, errors.New("diagnose.max_attempts must be at least 1"))
	}
	switch c.Diagnose.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderRules:
	default:
		errs = append(errs, fmt.Errorf("unknown diagnose provider %q", c.Diagnose.Provider))
	}
	return errors.Join(errs...)
}

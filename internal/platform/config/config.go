// Package config provides configuration loading and validation for the
// orchestrator. Configuration is loaded from YAML files with environment
// variable overrides using a layered system: defaults -> base.yaml ->
// {profile}.yaml -> env vars. All values are immutable for the process
// lifetime; there is no hot reload.
package config

import (
	"time"

	"github.com/aurora-nexus/portward/internal/domain/port"
)

// Config holds all configuration for the orchestrator.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Ledger     LedgerConfig     `koanf:"ledger"`
	Monitor    MonitorConfig    `koanf:"monitor"`
	Healer     HealerConfig     `koanf:"healer"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Store      StoreConfig      `koanf:"store"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings for the control API.
type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LedgerConfig holds the managed pool ranges and the ledger's sweep cadence.
// Pool ranges must be disjoint; each pool serves one service category.
type LedgerConfig struct {
	Pools            []port.Range  `koanf:"pools"`
	AllocationWait   time.Duration `koanf:"allocation_wait"`
	RecycleInterval  time.Duration `koanf:"recycle_interval"`
	LeakScanInterval time.Duration `koanf:"leak_scan_interval"`
	LeakScanWorkers  int           `koanf:"leak_scan_workers"`
}

// MonitorConfig holds health polling settings. PollIntervals overrides the
// default poll cadence per category. The probe timeout must stay shorter than
// the shortest poll interval so one probe never spans two polls.
type MonitorConfig struct {
	ProbeHost        string                   `koanf:"probe_host"`
	ProbeTimeout     time.Duration            `koanf:"probe_timeout"`
	PollInterval     time.Duration            `koanf:"poll_interval"`
	PollIntervals    map[string]time.Duration `koanf:"poll_intervals"`
	StartupGrace     time.Duration            `koanf:"startup_grace"`
	StartupFailures  int                      `koanf:"startup_failures"`
	DegradedFailures int                      `koanf:"degraded_failures"`
	FailingFailures  int                      `koanf:"failing_failures"`
	LatencyThreshold time.Duration            `koanf:"latency_threshold"`
	EventWindow      int                      `koanf:"event_window"`
	EventBuffer      int                      `koanf:"event_buffer"`
}

// HealerConfig holds the auto-healer's backoff policy and restart ceiling.
type HealerConfig struct {
	BackoffBase    time.Duration `koanf:"backoff_base"`
	BackoffCap     time.Duration `koanf:"backoff_cap"`
	RestartCeiling int           `koanf:"restart_ceiling"`
	RestartWindow  time.Duration `koanf:"restart_window"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
}

// SupervisorConfig holds settings for the outbound process supervisor client.
type SupervisorConfig struct {
	BaseURL        string               `koanf:"base_url"`
	Timeout        time.Duration        `koanf:"timeout"`
	Retry          RetryConfig          `koanf:"retry"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
	RateLimit      RateLimitConfig      `koanf:"rate_limit"`
}

// RetryConfig holds retry policy settings with exponential backoff.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
	Multiplier      float64       `koanf:"multiplier"`
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"`
	Timeout       time.Duration `koanf:"timeout"`
	HalfOpenLimit int           `koanf:"half_open_limit"`
}

// RateLimitConfig holds outbound rate limiting settings. A zero
// RequestsPerSecond disables rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	BurstSize         int     `koanf:"burst_size"`
}

// StoreConfig holds snapshot persistence settings. When disabled the
// orchestrator starts empty and nothing survives a restart.
type StoreConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Path          string        `koanf:"path"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Exporter    string `koanf:"exporter"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}

// PollIntervalFor returns the poll interval for a category, falling back to
// the default interval when no per-category override exists.
func (m *MonitorConfig) PollIntervalFor(category string) time.Duration {
	if iv, ok := m.PollIntervals[category]; ok {
		return iv
	}
	return m.PollInterval
}

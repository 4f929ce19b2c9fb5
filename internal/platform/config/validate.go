package config

import (
	"errors"
	"fmt"
)

// Validate checks every section and reports all problems joined together, so
// a bad config file surfaces its mistakes in one pass.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.validate(),
		c.Log.validate(),
		c.Ledger.validate(),
		c.Monitor.validate(),
		c.Healer.validate(),
		c.Supervisor.validate(),
		c.Store.validate(),
		c.Telemetry.validate(),
	)
}

func (s *ServerConfig) validate() error {
	var errs []error

	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port))
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server.read_timeout must be positive"))
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}

	return errors.Join(errs...)
}

func (l *LogConfig) validate() error {
	var errs []error

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", l.Level))
	}

	switch l.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: json, text; got %q", l.Format))
	}

	return errors.Join(errs...)
}

func (l *LedgerConfig) validate() error {
	var errs []error

	if len(l.Pools) == 0 {
		errs = append(errs, errors.New("ledger.pools must define at least one pool"))
	}

	seen := make(map[string]bool, len(l.Pools))
	for i, p := range l.Pools {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("ledger.pools[%d].name must not be empty", i))
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("ledger.pools[%d]: duplicate pool name %q", i, p.Name))
		}
		seen[p.Name] = true

		if p.Start < 1024 || p.End > 65535 || p.Start > p.End {
			errs = append(errs, fmt.Errorf("ledger.pools[%d] (%s): range %d-%d must lie within 1024-65535 with start <= end",
				i, p.Name, p.Start, p.End))
		}

		// Pools must be disjoint sub-ranges so contention stays within a pool.
		for _, other := range l.Pools[:i] {
			if p.Overlaps(other) {
				errs = append(errs, fmt.Errorf("ledger.pools: %q overlaps %q", p.Name, other.Name))
			}
		}
	}

	if l.AllocationWait < 0 {
		errs = append(errs, errors.New("ledger.allocation_wait must not be negative"))
	}
	if l.RecycleInterval <= 0 {
		errs = append(errs, errors.New("ledger.recycle_interval must be positive"))
	}
	if l.LeakScanInterval <= 0 {
		errs = append(errs, errors.New("ledger.leak_scan_interval must be positive"))
	}
	if l.LeakScanWorkers < 1 {
		errs = append(errs, fmt.Errorf("ledger.leak_scan_workers must be >= 1, got %d", l.LeakScanWorkers))
	}

	return errors.Join(errs...)
}

func (m *MonitorConfig) validate() error {
	var errs []error

	if m.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("monitor.probe_timeout must be positive"))
	}
	if m.PollInterval <= 0 {
		errs = append(errs, errors.New("monitor.poll_interval must be positive"))
	}
	if m.ProbeTimeout >= m.PollInterval {
		errs = append(errs, fmt.Errorf("monitor.probe_timeout (%s) must be shorter than monitor.poll_interval (%s)",
			m.ProbeTimeout, m.PollInterval))
	}
	for category, iv := range m.PollIntervals {
		if iv <= m.ProbeTimeout {
			errs = append(errs, fmt.Errorf("monitor.poll_intervals[%s] (%s) must exceed monitor.probe_timeout (%s)",
				category, iv, m.ProbeTimeout))
		}
	}
	if m.StartupGrace <= 0 {
		errs = append(errs, errors.New("monitor.startup_grace must be positive"))
	}
	if m.StartupFailures < 1 {
		errs = append(errs, fmt.Errorf("monitor.startup_failures must be >= 1, got %d", m.StartupFailures))
	}
	if m.DegradedFailures < 1 {
		errs = append(errs, fmt.Errorf("monitor.degraded_failures must be >= 1, got %d", m.DegradedFailures))
	}
	if m.FailingFailures < 1 {
		errs = append(errs, fmt.Errorf("monitor.failing_failures must be >= 1, got %d", m.FailingFailures))
	}
	if m.EventWindow < 1 {
		errs = append(errs, fmt.Errorf("monitor.event_window must be >= 1, got %d", m.EventWindow))
	}
	if m.EventBuffer < 1 {
		errs = append(errs, fmt.Errorf("monitor.event_buffer must be >= 1, got %d", m.EventBuffer))
	}

	return errors.Join(errs...)
}

func (h *HealerConfig) validate() error {
	var errs []error

	if h.BackoffBase <= 0 {
		errs = append(errs, errors.New("healer.backoff_base must be positive"))
	}
	if h.BackoffCap < h.BackoffBase {
		errs = append(errs, fmt.Errorf("healer.backoff_cap (%s) must be >= healer.backoff_base (%s)",
			h.BackoffCap, h.BackoffBase))
	}
	if h.RestartCeiling < 1 {
		errs = append(errs, fmt.Errorf("healer.restart_ceiling must be >= 1, got %d", h.RestartCeiling))
	}
	if h.RestartWindow <= 0 {
		errs = append(errs, errors.New("healer.restart_window must be positive"))
	}
	if h.AttemptTimeout <= 0 {
		errs = append(errs, errors.New("healer.attempt_timeout must be positive"))
	}

	return errors.Join(errs...)
}

func (s *SupervisorConfig) validate() error {
	var errs []error

	if s.BaseURL == "" {
		errs = append(errs, errors.New("supervisor.base_url must not be empty"))
	}
	if s.Timeout <= 0 {
		errs = append(errs, errors.New("supervisor.timeout must be positive"))
	}
	if s.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("supervisor.retry.max_attempts must be >= 1, got %d", s.Retry.MaxAttempts))
	}
	if s.Retry.Multiplier <= 0 {
		errs = append(errs, fmt.Errorf("supervisor.retry.multiplier must be positive, got %f", s.Retry.Multiplier))
	}
	if s.CircuitBreaker.MaxFailures < 1 {
		errs = append(errs, fmt.Errorf("supervisor.circuit_breaker.max_failures must be >= 1, got %d",
			s.CircuitBreaker.MaxFailures))
	}
	if s.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("supervisor.rate_limit.requests_per_second must not be negative"))
	}

	return errors.Join(errs...)
}

func (s *StoreConfig) validate() error {
	if !s.Enabled {
		return nil
	}

	var errs []error

	if s.Path == "" {
		errs = append(errs, errors.New("store.path must not be empty when store is enabled"))
	}
	if s.FlushInterval <= 0 {
		errs = append(errs, errors.New("store.flush_interval must be positive when store is enabled"))
	}

	return errors.Join(errs...)
}

func (t *TelemetryConfig) validate() error {
	if !t.Enabled {
		return nil
	}

	var errs []error

	switch t.Exporter {
	case "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter must be one of: stdout, otlp; got %q", t.Exporter))
	}

	if t.Exporter == "otlp" && t.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint must not be empty when exporter is otlp"))
	}

	return errors.Join(errs...)
}

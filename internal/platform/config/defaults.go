package config

const (
	defaultServerPort = 7070

	defaultStartupFailures  = 3
	defaultDegradedFailures = 3
	defaultFailingFailures  = 3
	defaultEventWindow      = 100
	defaultEventBuffer      = 256

	defaultRestartCeiling = 5

	defaultLeakScanWorkers = 8

	defaultRetryMaxAttempts = 3
	defaultRetryMultiplier  = 2.0

	defaultCircuitBreakerMaxFailures = 5
	defaultCircuitBreakerHalfOpen    = 1
)

// defaults returns the default configuration values.
// These are loaded first and can be overridden by base.yaml, profile YAML, and env vars.
func defaults() map[string]any {
	return map[string]any{
		"server.host":          "127.0.0.1",
		"server.port":          defaultServerPort,
		"server.read_timeout":  "5s",
		"server.write_timeout": "10s",
		"server.idle_timeout":  "120s",

		"log.level":  "info",
		"log.format": "json",

		"ledger.allocation_wait":    "5s",
		"ledger.recycle_interval":   "60s",
		"ledger.leak_scan_interval": "60s",
		"ledger.leak_scan_workers":  defaultLeakScanWorkers,

		"monitor.probe_host":        "127.0.0.1",
		"monitor.probe_timeout":     "2s",
		"monitor.poll_interval":     "10s",
		"monitor.startup_grace":     "30s",
		"monitor.startup_failures":  defaultStartupFailures,
		"monitor.degraded_failures": defaultDegradedFailures,
		"monitor.failing_failures":  defaultFailingFailures,
		"monitor.latency_threshold": "500ms",
		"monitor.event_window":      defaultEventWindow,
		"monitor.event_buffer":      defaultEventBuffer,

		"healer.backoff_base":    "1s",
		"healer.backoff_cap":     "60s",
		"healer.restart_ceiling": defaultRestartCeiling,
		"healer.restart_window":  "10m",
		"healer.attempt_timeout": "15s",

		"supervisor.base_url":                        "http://localhost:7071",
		"supervisor.timeout":                         "10s",
		"supervisor.retry.max_attempts":              defaultRetryMaxAttempts,
		"supervisor.retry.initial_interval":          "100ms",
		"supervisor.retry.max_interval":              "10s",
		"supervisor.retry.multiplier":                defaultRetryMultiplier,
		"supervisor.circuit_breaker.max_failures":    defaultCircuitBreakerMaxFailures,
		"supervisor.circuit_breaker.timeout":         "30s",
		"supervisor.circuit_breaker.half_open_limit": defaultCircuitBreakerHalfOpen,
		"supervisor.rate_limit.requests_per_second":  0.0,
		"supervisor.rate_limit.burst_size":           1,

		"store.enabled":        false,
		"store.path":           "data/portward.db",
		"store.flush_interval": "30s",

		"telemetry.enabled":  false,
		"telemetry.exporter": "stdout",
		"telemetry.endpoint": "",
	}
}

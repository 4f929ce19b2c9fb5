package config_test

import (
	"testing"
	"time"

	"github.com/aurora-nexus/portward/internal/domain/port"
	"github.com/aurora-nexus/portward/internal/platform/config"
)

func TestLoad_LocalProfile(t *testing.T) {
	t.Chdir("../../..")

	cfg, err := config.Load("local")
	if err != nil {
		t.Fatalf("Load(\"local\") error: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want \"debug\"", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want \"text\"", cfg.Log.Format)
	}
	if cfg.Store.Enabled {
		t.Error("Store.Enabled = true, want false for local")
	}
	if cfg.Monitor.PollInterval != 3*time.Second {
		t.Errorf("Monitor.PollInterval = %v, want 3s", cfg.Monitor.PollInterval)
	}
}

func TestLoad_ProdProfile(t *testing.T) {
	t.Chdir("../../..")

	cfg, err := config.Load("prod")
	if err != nil {
		t.Fatalf("Load(\"prod\") error: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want \"info\"", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want \"json\"", cfg.Log.Format)
	}
	if !cfg.Store.Enabled {
		t.Error("Store.Enabled = false, want true for prod")
	}
	if !cfg.Telemetry.Enabled {
		t.Error("Telemetry.Enabled = false, want true for prod")
	}
	if cfg.Telemetry.Exporter != "otlp" {
		t.Errorf("Telemetry.Exporter = %q, want \"otlp\"", cfg.Telemetry.Exporter)
	}
	if cfg.Telemetry.Endpoint == "" {
		t.Error("Telemetry.Endpoint is empty, want non-empty for prod")
	}
}

func TestLoad_BaseConfigInheritance(t *testing.T) {
	t.Chdir("../../..")

	cfg, err := config.Load("local")
	if err != nil {
		t.Fatalf("Load(\"local\") error: %v", err)
	}

	// These come from base.yaml, not overridden by local.yaml.
	if len(cfg.Ledger.Pools) != 3 {
		t.Fatalf("len(Ledger.Pools) = %d, want 3 (from base)", len(cfg.Ledger.Pools))
	}
	if cfg.Ledger.Pools[0].Name != "web" || cfg.Ledger.Pools[0].Start != 8000 || cfg.Ledger.Pools[0].End != 8099 {
		t.Errorf("Ledger.Pools[0] = %+v, want web 8000-8099 (from base)", cfg.Ledger.Pools[0])
	}
	if cfg.Supervisor.Retry.MaxAttempts != 3 {
		t.Errorf("Supervisor.Retry.MaxAttempts = %d, want 3 (from base)", cfg.Supervisor.Retry.MaxAttempts)
	}
	if cfg.Supervisor.CircuitBreaker.MaxFailures != 5 {
		t.Errorf("Supervisor.CircuitBreaker.MaxFailures = %d, want 5 (from base)",
			cfg.Supervisor.CircuitBreaker.MaxFailures)
	}
	if cfg.Healer.RestartCeiling != 5 {
		t.Errorf("Healer.RestartCeiling = %d, want 5 (from base)", cfg.Healer.RestartCeiling)
	}
}

func TestLoad_PerCategoryPollIntervals(t *testing.T) {
	t.Chdir("../../..")

	cfg, err := config.Load("local")
	if err != nil {
		t.Fatalf("Load(\"local\") error: %v", err)
	}

	if got := cfg.Monitor.PollIntervalFor("background"); got != 10*time.Second {
		t.Errorf("PollIntervalFor(\"background\") = %v, want 10s (local override)", got)
	}
	// Unknown category falls back to the default interval.
	if got := cfg.Monitor.PollIntervalFor("api"); got != cfg.Monitor.PollInterval {
		t.Errorf("PollIntervalFor(\"api\") = %v, want default %v", got, cfg.Monitor.PollInterval)
	}
}

func TestLoad_EnvOverrideSimpleKey(t *testing.T) {
	t.Chdir("../../..")
	t.Setenv("APP_SERVER_PORT", "9090")

	cfg, err := config.Load("local")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090 (env override)", cfg.Server.Port)
	}
}

func TestLoad_EnvOverrideSnakeCaseKey(t *testing.T) {
	t.Chdir("../../..")
	t.Setenv("APP_LEDGER_ALLOCATION_WAIT", "15s")

	cfg, err := config.Load("local")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	want := 15 * time.Second
	if cfg.Ledger.AllocationWait != want {
		t.Errorf("Ledger.AllocationWait = %v, want %v (env override)", cfg.Ledger.AllocationWait, want)
	}
}

func TestLoad_EnvOverrideDeeplyNestedKey(t *testing.T) {
	t.Chdir("../../..")
	t.Setenv("APP_SUPERVISOR_RETRY_MAX_ATTEMPTS", "7")

	cfg, err := config.Load("local")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Supervisor.Retry.MaxAttempts != 7 {
		t.Errorf("Supervisor.Retry.MaxAttempts = %d, want 7 (env override)", cfg.Supervisor.Retry.MaxAttempts)
	}
}

func TestLoad_MissingProfile(t *testing.T) {
	t.Chdir("../../..")

	_, err := config.Load("nonexistent")
	if err == nil {
		t.Fatal("Load(\"nonexistent\") returned nil error, want error")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.Server.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() returned nil, want error for port=0")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.Log.Level = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() returned nil, want error for invalid log level")
	}
}

func TestValidate_NoPools(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.Ledger.Pools = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() returned nil, want error for empty pool list")
	}
}

func TestValidate_OverlappingPools(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.Ledger.Pools = []port.Range{
		{Name: "web", Start: 8000, End: 8099},
		{Name: "api", Start: 8050, End: 8199},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() returned nil, want error for overlapping pools")
	}
}

func TestValidate_DuplicatePoolName(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.Ledger.Pools = []port.Range{
		{Name: "web", Start: 8000, End: 8099},
		{Name: "web", Start: 8100, End: 8199},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() returned nil, want error for duplicate pool name")
	}
}

func TestValidate_ProbeTimeoutExceedsPollInterval(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.Monitor.ProbeTimeout = 10 * time.Second
	cfg.Monitor.PollInterval = 5 * time.Second

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() returned nil, want error when probe timeout spans two polls")
	}
}

func TestValidate_BackoffCapBelowBase(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.Healer.BackoffBase = 10 * time.Second
	cfg.Healer.BackoffCap = time.Second

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() returned nil, want error for backoff cap below base")
	}
}

func TestValidate_StorePathRequiredWhenEnabled(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.Store.Enabled = true
	cfg.Store.Path = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() returned nil, want error for enabled store without path")
	}
}

func TestValidate_OtlpWithoutEndpoint(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "otlp"
	cfg.Telemetry.Endpoint = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() returned nil, want error for otlp without endpoint")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error for valid config: %v", err)
	}
}

// validBaseConfig returns a Config with all fields set to valid values.
func validBaseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         7070,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "json",
		},
		Ledger: config.LedgerConfig{
			Pools: []port.Range{
				{Name: "web", Start: 8000, End: 8099},
				{Name: "api", Start: 8100, End: 8199},
			},
			AllocationWait:   5 * time.Second,
			RecycleInterval:  time.Minute,
			LeakScanInterval: time.Minute,
			LeakScanWorkers:  8,
		},
		Monitor: config.MonitorConfig{
			ProbeHost:        "127.0.0.1",
			ProbeTimeout:     2 * time.Second,
			PollInterval:     10 * time.Second,
			StartupGrace:     30 * time.Second,
			StartupFailures:  3,
			DegradedFailures: 3,
			FailingFailures:  3,
			LatencyThreshold: 500 * time.Millisecond,
			EventWindow:      100,
			EventBuffer:      256,
		},
		Healer: config.HealerConfig{
			BackoffBase:    time.Second,
			BackoffCap:     time.Minute,
			RestartCeiling: 5,
			RestartWindow:  10 * time.Minute,
			AttemptTimeout: 15 * time.Second,
		},
		Supervisor: config.SupervisorConfig{
			BaseURL: "http://localhost:7071",
			Timeout: 10 * time.Second,
			Retry: config.RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     10 * time.Second,
				Multiplier:      2.0,
			},
			CircuitBreaker: config.CircuitBreakerConfig{
				MaxFailures:   5,
				Timeout:       30 * time.Second,
				HalfOpenLimit: 1,
			},
		},
		Telemetry: config.TelemetryConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}

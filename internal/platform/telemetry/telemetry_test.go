package telemetry_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/aurora-nexus/portward/internal/platform/telemetry"
)

// These tests mutate the global OTel providers, so none of them run in
// parallel.

func TestInitTracer(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		endpoint string
		wantErr  bool
	}{
		{"stdout", telemetry.ExporterStdout, "", false},
		{"otlp with endpoint", telemetry.ExporterOTLP, "http://localhost:4318", false},
		{"otlp without endpoint", telemetry.ExporterOTLP, "", true},
		// Unknown names fall back to the stdout exporter.
		{"unknown exporter", "bogus", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			tp, err := telemetry.InitTracer(ctx, "portward-test", tt.exporter, tt.endpoint)
			if tt.wantErr {
				if err == nil {
					t.Fatal("InitTracer error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("InitTracer error = %v", err)
			}
			// Shutdown flushes to the exporter and may fail without a
			// collector; only the call itself matters here.
			t.Cleanup(func() { _ = tp.Shutdown(ctx) })
		})
	}
}

func TestInitTracer_InstallsPropagators(t *testing.T) {
	ctx := context.Background()

	tp, err := telemetry.InitTracer(ctx, "portward-test", telemetry.ExporterStdout, "")
	if err != nil {
		t.Fatalf("InitTracer error = %v", err)
	}
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	if len(otel.GetTextMapPropagator().Fields()) == 0 {
		t.Error("global propagator has no fields, want traceparent and baggage carriers")
	}
}

func TestInitMeter(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		endpoint string
		wantErr  bool
	}{
		{"stdout", telemetry.ExporterStdout, "", false},
		{"otlp with endpoint", telemetry.ExporterOTLP, "http://localhost:4318", false},
		{"otlp without endpoint", telemetry.ExporterOTLP, "", true},
		{"unknown exporter", "bogus", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			mp, err := telemetry.InitMeter(ctx, "portward-test", tt.exporter, tt.endpoint)
			if tt.wantErr {
				if err == nil {
					t.Fatal("InitMeter error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("InitMeter error = %v", err)
			}
			t.Cleanup(func() { _ = mp.Shutdown(ctx) })
		})
	}
}

func TestNewMetrics_RegistersEveryInstrument(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.InitMeter(ctx, "portward-test", telemetry.ExporterStdout, "")
	if err != nil {
		t.Fatalf("InitMeter error = %v", err)
	}
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	metrics, err := telemetry.NewMetrics(mp, "portward-test")
	if err != nil {
		t.Fatalf("NewMetrics error = %v", err)
	}

	missing := map[string]bool{
		"ServerRequestDuration":  metrics.ServerRequestDuration == nil,
		"ServerRequestTotal":     metrics.ServerRequestTotal == nil,
		"ClientRequestDuration":  metrics.ClientRequestDuration == nil,
		"ClientRequestTotal":     metrics.ClientRequestTotal == nil,
		"PortAllocationsTotal":   metrics.PortAllocationsTotal == nil,
		"AllocationWaitDuration": metrics.AllocationWaitDuration == nil,
		"HealthTransitionsTotal": metrics.HealthTransitionsTotal == nil,
		"ProbeDuration":          metrics.ProbeDuration == nil,
		"RestartsTotal":          metrics.RestartsTotal == nil,
	}
	for name, isNil := range missing {
		if isNil {
			t.Errorf("%s was not registered", name)
		}
	}

	// Instruments should be usable immediately.
	metrics.PortAllocationsTotal.Add(ctx, 1)
	metrics.ProbeDuration.Record(ctx, 0.002)
}

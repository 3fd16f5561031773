package app

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/app/config"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/devices"
)

func testSamplerConfig() *config.Config {
	return &config.Config{
		Devices: config.DevicesConfig{IC256: "10.11.25.201"},
		Acquisition: config.AcquisitionConfig{
			SamplingRate: 1000,
			SaveFolder:   "./data",
		},
		Metrics: config.MetricsConfig{Addr: ":0"},
	}
}

func TestNewBuildsWithoutTouchingNetwork(t *testing.T) {
	s, err := New(testSamplerConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.sup == nil || s.store == nil {
		t.Fatalf("sampler not wired")
	}
}

func TestEnvironmentSnapshotSkipsMissingSensors(t *testing.T) {
	s, err := New(testSamplerConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var m devices.IC256Model
	paths := m.EnvironmentPaths()
	s.store.AddSample(paths[0][1], 21.5, 1_700_000_000_000_000_000)

	lines := s.environmentSnapshot(paths)()
	if len(lines) != 1 {
		t.Fatalf("expected only the reported sensor, got %v", lines)
	}
	if lines[0][0] != "temperature" || lines[0][1] != "21.5" {
		t.Fatalf("unexpected snapshot line %v", lines[0])
	}
}

func TestBuildOrchestratorNeedsSession(t *testing.T) {
	s, err := New(testSamplerConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.buildOrchestrator(devices.IC256Config(), time.Now()); err == nil {
		t.Fatalf("expected error without a connected device")
	}
}

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(reg)

	obs.IncCounter("sampler_samples_ingested_total", 5)
	if got := testutil.ToFloat64(obs.counters["sampler_samples_ingested_total"]); got != 5 {
		t.Fatalf("expected ingested counter 5, got %f", got)
	}

	obs.IncCounter("sampler_reconnects_total", 2)
	if got := testutil.ToFloat64(obs.counters["sampler_reconnects_total"]); got != 2 {
		t.Fatalf("expected reconnect counter 2, got %f", got)
	}

	obs.SetGauge("sampler_stored_points", 42)
	if got := testutil.ToFloat64(obs.gauges["sampler_stored_points"]); got != 42 {
		t.Fatalf("expected stored points gauge 42, got %f", got)
	}

	// Unknown series are ignored, not registered lazily.
	obs.IncCounter("sampler_unknown_total", 1)
	obs.SetGauge("sampler_unknown", 1)
}

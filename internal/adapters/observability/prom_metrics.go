package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromObs exposes the sampler's metric surface on a Prometheus
// registerer. Series are fixed at construction; unknown names are
// ignored rather than registered on the fly.
type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func NewPromObs(reg prometheus.Registerer) *PromObs {
	ingested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sampler_samples_ingested_total",
		Help: "Datums accepted into the channel store.",
	})
	malformed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sampler_malformed_datums_total",
		Help: "Datums dropped for non-positive timestamps.",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sampler_reconnects_total",
		Help: "Instrument sockets redialed after a keepalive failure.",
	})
	rowsWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sampler_rows_written_total",
		Help: "Virtual rows appended to the output file.",
	})
	storedPoints := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sampler_stored_points",
		Help: "Points currently held across all channels.",
	})
	fileSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sampler_file_size_bytes",
		Help: "Size of the output file as of the last flush.",
	})

	reg.MustRegister(ingested, malformed, reconnects, rowsWritten, storedPoints, fileSize)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"sampler_samples_ingested_total": ingested,
			"sampler_malformed_datums_total": malformed,
			"sampler_reconnects_total":       reconnects,
			"sampler_rows_written_total":     rowsWritten,
		},
		gauges: map[string]prometheus.Gauge{
			"sampler_stored_points":   storedPoints,
			"sampler_file_size_bytes": fileSize,
		},
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

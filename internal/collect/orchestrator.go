package collect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/output"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/ports"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/resample"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/store"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/supervisor"
)

const (
	// flushRows and syncRows are row-count buckets: crossing a bucket
	// boundary triggers the corresponding disk operation.
	flushRows = 1000
	syncRows  = 5000

	// pruneRows paces store pruning, pruneFloor is the per-channel
	// retention floor and pruneLag the window kept behind the newest
	// built row.
	pruneRows  = 1000
	pruneFloor = 100000
	pruneLag   = 1.0

	updateInterval = 1 * time.Millisecond

	// Drain parameters: after a stop request, keep collecting until
	// the row count stays unchanged for drainStableChecks consecutive
	// checks taken every drainCheckEvery iterations, bounded by
	// drainMaxIterations, then run drainFinalPasses more iterations.
	drainCheckEvery    = 25
	drainStableChecks  = 8
	drainMaxIterations = 50000
	drainFinalPasses   = 15
)

// Orchestrator drives one acquisition: it rebuilds virtual rows,
// appends them to the CSV writer, paces flush, sync and prune by row
// count and mirrors finished rows into the archive sink.
type Orchestrator struct {
	sup     *supervisor.Supervisor
	store   *store.Store
	engine  *resample.Engine
	writer  *output.Writer
	archive ports.RowSink
	log     ports.LogSink
	obs     ports.Observability

	acquisitionID string
	archivedRows  int

	statsMu sync.Mutex
	stats   domain.AcquisitionStatistics
}

type Option func(*Orchestrator)

func WithArchive(sink ports.RowSink) Option { return func(o *Orchestrator) { o.archive = sink } }
func WithLogSink(l ports.LogSink) Option    { return func(o *Orchestrator) { o.log = l } }
func WithObservability(obs ports.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func New(sup *supervisor.Supervisor, st *store.Store, engine *resample.Engine, writer *output.Writer, acquisitionID string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sup:           sup,
		store:         st,
		engine:        engine,
		writer:        writer,
		acquisitionID: acquisitionID,
		log:           ports.NopLogSink{},
		obs:           ports.NopObservability{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CollectIteration is one pass of the acquisition loop: rebuild rows,
// write them out and run whatever row-count buckets were crossed.
func (o *Orchestrator) CollectIteration() error {
	before := o.writer.RowsWritten()
	o.engine.Rebuild()
	written, err := o.writer.WriteAll()
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	after := before + written
	o.obs.IncCounter("sampler_rows_written_total", float64(written))

	if crossed(before, after, syncRows) {
		if err := o.writer.Sync(); err != nil {
			return err
		}
	} else if crossed(before, after, flushRows) {
		if err := o.writer.Flush(); err != nil {
			return err
		}
	}
	if crossed(before, after, pruneRows) {
		minElapsed := o.engine.LastElapsed() - pruneLag
		if minElapsed < 0 {
			minElapsed = 0
		}
		o.store.Prune(minElapsed, pruneFloor)
	}
	if o.archive != nil && after > o.archivedRows {
		rows := o.engine.Rows()[o.archivedRows:after]
		if err := o.archive.WriteRows(o.acquisitionID, o.engine.Headers(), rows); err != nil {
			// Archival is best effort; the CSV file is the record.
			o.log.Log(fmt.Sprintf("Archive %s: %v", o.archive.Name(), err), ports.LevelWarning)
		}
		o.archivedRows = after
	}
	o.updateStats()
	return nil
}

func crossed(before, after, bucket int) bool {
	return after/bucket > before/bucket
}

func (o *Orchestrator) updateStats() {
	st := o.store.Statistics()
	o.statsMu.Lock()
	o.stats = domain.AcquisitionStatistics{
		Rows:         int64(o.writer.RowsWritten()),
		FileSize:     o.writer.FileSize(),
		FilePath:     o.writer.Path(),
		StoredPoints: st.Held,
		Malformed:    st.Malformed,
		LastElapsed:  o.engine.LastElapsed(),
	}
	o.statsMu.Unlock()
	o.obs.SetGauge("sampler_stored_points", float64(st.Held))
	o.obs.SetGauge("sampler_file_size_bytes", float64(o.writer.FileSize()))
}

// Statistics returns the latest progress snapshot.
func (o *Orchestrator) Statistics() domain.AcquisitionStatistics {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	return o.stats
}

// Stop requests the supervisor to stop ingest without blocking. Rows
// already in the store are drained by RunCollection before finalize.
func (o *Orchestrator) Stop() { o.sup.Stop() }

// IsFinished reports whether every built row is on disk.
func (o *Orchestrator) IsFinished() bool {
	return o.writer.RowsWritten() >= o.engine.RowCount()
}

// Finalize flushes, syncs and closes the output file and logs the
// closing statistics. It always runs, error or not.
func (o *Orchestrator) Finalize() error {
	err := o.writer.Close()
	o.updateStats()
	st := o.Statistics()
	o.log.Log(fmt.Sprintf("Acquisition finished: %d rows, %s, %s",
		st.Rows, domain.FormatByteSize(st.FileSize), st.FilePath), ports.LevelInfo)
	return err
}

// RunCollection runs the acquisition loop until ctx is cancelled, then
// stops ingest, drains the rows still in flight and finalizes the
// file. The returned statistics describe the finished file.
func (o *Orchestrator) RunCollection(ctx context.Context) (domain.AcquisitionStatistics, error) {
	o.sup.Start()
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			if err := o.CollectIteration(); err != nil {
				o.Stop()
				o.drain()
				ferr := o.Finalize()
				if ferr != nil {
					o.log.Log(fmt.Sprintf("Finalize: %v", ferr), ports.LevelError)
				}
				return o.Statistics(), err
			}
		}
	}

	o.Stop()
	o.drain()
	err := o.Finalize()
	return o.Statistics(), err
}

// drain keeps collecting after a stop request until the row count goes
// quiet, so samples already ingested still reach the file.
func (o *Orchestrator) drain() {
	stable := 0
	lastRows := o.writer.RowsWritten()
	for i := 0; i < drainMaxIterations; i++ {
		if err := o.CollectIteration(); err != nil {
			o.log.Log(fmt.Sprintf("Drain: %v", err), ports.LevelWarning)
			break
		}
		if (i+1)%drainCheckEvery != 0 {
			continue
		}
		rows := o.writer.RowsWritten()
		if rows == lastRows {
			stable++
			if stable >= drainStableChecks {
				break
			}
		} else {
			stable = 0
			lastRows = rows
		}
	}
	for i := 0; i < drainFinalPasses; i++ {
		if err := o.CollectIteration(); err != nil {
			break
		}
	}
}

// Package app wires the configured devices into running acquisitions:
// one supervisor and channel store shared by every instrument, one
// engine, writer and orchestrator per output file.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/adapters/igx"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/adapters/observability"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/adapters/sink"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/app/config"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/collect"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/devices"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/output"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/ports"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/resample"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/store"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/supervisor"
)

// Sampler is one configured application instance.
type Sampler struct {
	cfg    *config.Config
	logger *zap.Logger

	store *store.Store
	sup   *supervisor.Supervisor
	obs   ports.Observability
	reg   *prometheus.Registry
	db    *sql.DB
}

// New builds the sampler from its configuration. The websocket dial and
// device-type probe stay lazy; nothing touches the network until Run.
func New(cfg *config.Config, logger *zap.Logger) (*Sampler, error) {
	reg := prometheus.NewRegistry()
	obs := observability.NewPromObs(reg)
	logSink := observability.NewZapLogSink(logger)

	st := store.New()
	sup := supervisor.New(st,
		func(ip string) (ports.WireSession, error) { return igx.Dial(ip) },
		supervisor.WithLogSink(logSink),
		supervisor.WithObservability(obs),
		supervisor.WithValidator(devices.ValidateDevice),
	)

	s := &Sampler{cfg: cfg, logger: logger, store: st, sup: sup, obs: obs, reg: reg}

	if cfg.Archive.ConnString != "" {
		db, err := sql.Open("postgres", cfg.Archive.ConnString)
		if err != nil {
			return nil, fmt.Errorf("open archive db: %w", err)
		}
		s.db = db
	}
	return s, nil
}

// Run connects the configured devices and collects until ctx is
// cancelled, then drains and closes every output file.
func (s *Sampler) Run(ctx context.Context) error {
	defer s.sup.CloseAll()
	if s.db != nil {
		defer s.db.Close()
	}

	metricsSrv := s.serveMetrics()
	defer metricsSrv.Shutdown(context.Background())

	configs := make([]supervisor.DeviceConfig, 0, 2)
	if s.cfg.Devices.IC256 != "" {
		configs = append(configs, devices.IC256Config())
	}
	if s.cfg.Devices.TX2 != "" {
		configs = append(configs, devices.TX2Config())
	}

	addresses := map[string]string{
		devices.IC256Config().Name: s.cfg.Devices.IC256,
		devices.TX2Config().Name:   s.cfg.Devices.TX2,
	}

	connected := make([]supervisor.DeviceConfig, 0, len(configs))
	for _, dc := range configs {
		if err := s.sup.EnsureDeviceConnection(dc, addresses[dc.Name]); err != nil {
			s.logger.Warn("device unavailable", zap.String("device", dc.Name), zap.Error(err))
			continue
		}
		if err := s.sup.SetupDeviceForCollection(dc.Name, s.cfg.Acquisition.SamplingRate); err != nil {
			s.logger.Warn("device setup failed", zap.String("device", dc.Name), zap.Error(err))
			continue
		}
		connected = append(connected, dc)
	}
	if len(connected) == 0 {
		return errors.New("no devices available")
	}

	start := time.Now()
	var wg sync.WaitGroup
	errs := make([]error, len(connected))
	results := make([]domain.AcquisitionStatistics, len(connected))
	for i, dc := range connected {
		orch, err := s.buildOrchestrator(dc, start)
		if err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func(i int, name string, orch *collect.Orchestrator) {
			defer wg.Done()
			stats, err := orch.RunCollection(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("device %s: %w", name, err)
				return
			}
			results[i] = stats
			s.logger.Info("acquisition complete",
				zap.String("device", name),
				zap.Int64("rows", stats.Rows),
				zap.String("file", stats.FilePath),
			)
		}(i, dc.Name, orch)
	}
	wg.Wait()

	totalRows, totalSize := domain.AggregateStatistics(results...)
	s.logger.Info("all acquisitions complete",
		zap.Int64("rows", totalRows),
		zap.String("size", domain.FormatByteSize(totalSize)),
	)
	return errors.Join(errs...)
}

// environmentSnapshot reads the latest ambient sensor values at file
// open and renders them as metadata comment lines. Sensors that never
// reported are skipped.
func (s *Sampler) environmentSnapshot(paths [][2]string) output.MetadataFunc {
	return func() [][2]string {
		lines := make([][2]string, 0, len(paths))
		for _, p := range paths {
			v, ok := s.store.Latest(p[1])
			if !ok {
				continue
			}
			lines = append(lines, [2]string{p[0], strconv.FormatFloat(v, 'g', -1, 64)})
		}
		return lines
	}
}

func (s *Sampler) buildOrchestrator(dc supervisor.DeviceConfig, start time.Time) (*collect.Orchestrator, error) {
	model := s.sup.Model(dc.Name)
	if model == nil {
		return nil, fmt.Errorf("device %s: no session", dc.Name)
	}
	engine := resample.NewEngine(s.store, model.ReferenceChannel(), model.Columns())
	path := output.GenerateFilePath(s.cfg.Acquisition.SaveFolder, dc.FilenamePrefix, start)

	var wopts []output.WriterOption
	if env, ok := model.(interface{ EnvironmentPaths() [][2]string }); ok {
		wopts = append(wopts, output.WithMetadata(s.environmentSnapshot(env.EnvironmentPaths())))
	}
	writer := output.NewWriter(engine, path, dc.Name, s.cfg.Acquisition.Note, wopts...)
	acqID := fmt.Sprintf("%s-%s", dc.FilenamePrefix, start.Format("20060102-150405"))

	opts := []collect.Option{
		collect.WithLogSink(observability.NewZapLogSink(s.logger)),
		collect.WithObservability(s.obs),
	}
	if s.db != nil {
		opts = append(opts, collect.WithArchive(sink.NewArchiveSink(s.db, s.cfg.Archive.Table)))
	}
	return collect.New(s.sup, s.store, engine, writer, acqID, opts...), nil
}

func (s *Sampler) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: s.cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("metrics server", zap.Error(err))
		}
	}()
	return srv
}

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/control"
	"github.com/netpulse/netpulse/internal/gate"
	"github.com/netpulse/netpulse/internal/geoip"
	"github.com/netpulse/netpulse/internal/ifstat"
	"github.com/netpulse/netpulse/internal/journal"
	"github.com/netpulse/netpulse/internal/measure"
	"github.com/netpulse/netpulse/internal/normalize"
	"github.com/netpulse/netpulse/internal/probe"
	"github.com/netpulse/netpulse/internal/sink"
	"github.com/netpulse/netpulse/internal/util"
)

// Runtime owns every component of a running measurement process and
// their teardown order.
type Runtime struct {
	cfg    config.Config
	ctx    context.Context
	cancel context.CancelFunc
	logger util.Logger

	oracle    *gate.RiotOracle
	runner    probe.Runner
	sink      *sink.InfluxSink
	journal   *journal.Journal
	geo       *geoip.Resolver
	control   *control.Server
	scheduler *measure.Scheduler

	wg   sync.WaitGroup
	done chan struct{}
}

func NewRuntime(cfg config.Config, logger util.Logger) (*Runtime, error) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		done:   make(chan struct{}),
	}

	oracle, err := gate.NewRiotOracle(gate.Options{
		APIKey:   cfg.Gate.APIKey,
		GameName: cfg.Gate.GameName,
		TagLine:  cfg.Gate.TagLine,
		Platform: cfg.Gate.Region,
	}, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gate: %w", err)
	}
	rt.oracle = oracle

	var enricher normalize.Enricher
	if cfg.GeoIP.Database != "" {
		geo, err := geoip.Open(cfg.GeoIP.Database, logger)
		if err != nil {
			cancel()
			return nil, err
		}
		rt.geo = geo
		enricher = geo
	}

	switch cfg.Measurement.Kind {
	case config.KindBandwidth:
		rt.runner = probe.NewSpeedtestRunner(cfg.Bandwidth.Command, cfg.Bandwidth.PreferredServerID, logger)
	case config.KindLatency:
		iface, err := ifstat.EgressInterface(cfg.Latency.Target)
		if err != nil {
			logger.Debug("egress interface unknown, latency records go untagged", "error", err)
			iface = ""
		}
		rt.runner = probe.NewPingRunner(cfg.Latency.Command, cfg.Latency.Target, iface, logger)
	default:
		cancel()
		return nil, fmt.Errorf("unsupported measurement kind %q", cfg.Measurement.Kind)
	}

	rt.sink = sink.NewInfluxSink(cfg.InfluxDB, logger)

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			rt.sink.Close()
			cancel()
			return nil, err
		}
		rt.journal = j
	}

	if util.BoolValue(cfg.Control.Enabled, false) {
		rt.control = control.NewServer(cfg.Control, rt.runner.Kind(), logger)
	}

	rt.scheduler = measure.NewScheduler(
		cfg.Measurement.Interval.Duration(),
		cfg.Measurement.MaxRuntime.Duration(),
		oracle, rt.runner, normalize.NewNormalizer(nil, enricher), rt.sink, logger)
	rt.scheduler.OnCycleComplete = rt.onCycleComplete

	return rt, nil
}

func (r *Runtime) onCycleComplete(ev measure.CycleEvent) {
	if r.journal != nil {
		err := r.journal.Record(r.ctx, journal.Entry{
			ID:        ev.ID,
			Kind:      string(ev.Kind),
			StartedAt: ev.StartedAt,
			Outcome:   string(ev.Outcome),
			Detail:    ev.Detail,
		})
		if err != nil {
			r.logger.Warn("journal write failed", "cycle", ev.ID, "error", err)
		}
	}
	if r.control != nil {
		r.control.HandleCycleEvent(ev)
	}
}

func (r *Runtime) Start() error {
	if r.control != nil {
		if err := r.control.Start(r.ctx); err != nil {
			return err
		}
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.scheduler.RunLoop(r.ctx)
		close(r.done)
	}()
	return nil
}

// Done is closed when the measurement loop exits on its own, which
// happens only when a max runtime is configured.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

func (r *Runtime) Stop() {
	r.cancel()
	r.wg.Wait()
	if r.control != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = r.control.Shutdown(ctx)
		cancel()
	}
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			r.logger.Error("journal close failed", "error", err)
		}
	}
	if r.geo != nil {
		_ = r.geo.Close()
	}
	r.sink.Close()
}

package metricspush

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/inventory/internal/config"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const runTimeout = 30 * time.Second

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Config   config.Config
	Repo     domain.Repository
	Registry *prometheus.Registry `name:"metricspush"`
	Gauges   *Gauges
	Pusher   Pusher `optional:"true"`
}

type Worker struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	registry *prometheus.Registry
	gauges   *Gauges
	pusher   Pusher
	interval time.Duration
}

func NewWorker(p Params) *Worker {
	interval := p.Config.Metrics.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		db:       p.DB,
		log:      p.Log.Named("metrics.push"),
		repo:     p.Repo,
		registry: p.Registry,
		gauges:   p.Gauges,
		pusher:   p.Pusher,
		interval: interval,
	}
}

// Enabled is false when no usable exporter was configured.
func (w *Worker) Enabled() bool {
	return w != nil && w.pusher != nil
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("metrics push failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce refreshes the gauges from the store and pushes the registry.
func (w *Worker) RunOnce(parentCtx context.Context) error {
	ctx, cancel := context.WithTimeout(parentCtx, runTimeout)
	defer cancel()

	w.gauges.updateSystem()

	counts, err := w.repo.CountByAccount(ctx, w.db)
	if err != nil {
		return err
	}
	w.gauges.SetHosts(counts)

	if w.pusher == nil {
		return nil
	}
	if err := w.pusher.Push(ctx, w.registry); err != nil {
		w.gauges.pushFailures.Inc()
		return err
	}
	return nil
}

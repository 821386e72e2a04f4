package metricspush

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/inventory/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("metrics.push",
	fx.Provide(fx.Annotate(prometheus.NewRegistry, fx.ResultTags(`name:"metricspush"`))),
	fx.Provide(fx.Annotate(newGauges, fx.ParamTags(`name:"metricspush"`))),
	fx.Provide(NewPusher),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func newGauges(registry *prometheus.Registry, cfg config.Config) *Gauges {
	return NewGauges(registry, prometheus.Labels{
		"service": cfg.AppName,
		"env":     cfg.Environment,
	})
}

func runWorker(lc fx.Lifecycle, worker *Worker, log *zap.Logger) {
	if !worker.Enabled() {
		log.Named("metrics.push").Debug("metrics push disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}

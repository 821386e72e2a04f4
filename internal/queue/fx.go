package queue

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inventory/internal/config"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the event publisher used by the ingest path.
var Module = fx.Module("queue",
	fx.Provide(NewSnowflake),
	fx.Provide(newPublisher),
)

// ConsumerModule runs the ingress consumer for the lifetime of the app.
var ConsumerModule = fx.Module("queue.consumer",
	fx.Provide(NewHandler),
	fx.Provide(NewConsumer),
	fx.Invoke(runConsumer),
)

func NewSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

type publisherParams struct {
	fx.In

	Client *redis.Client `optional:"true"`
	GenID  *snowflake.Node
	Config config.Config
	Log    *zap.Logger
}

func newPublisher(p publisherParams) domain.EventPublisher {
	if p.Client == nil {
		p.Log.Info("redis disabled, host events are not published")
		return nil
	}
	return NewProducer(p.Client, p.GenID, p.Config.Queue)
}

func runConsumer(lc fx.Lifecycle, shutdowner fx.Shutdowner, consumer *Consumer, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if consumer.client == nil {
				return ErrQueueDisabled
			}
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			go func() {
				defer close(done)
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("queue consumer stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			lc.Append(fx.Hook{
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
			return nil
		},
	})
}

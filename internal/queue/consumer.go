package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inventory/internal/config"
	obscontext "github.com/smallbiznis/inventory/internal/observability/context"
	obslogger "github.com/smallbiznis/inventory/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/inventory/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	fieldKey           = "key"
	fieldPayload       = "payload"
	fieldCorrelationID = "correlation_id"
	fieldReason        = "reason"
	fieldOriginalID    = "original_id"
)

var ErrQueueDisabled = errors.New("queue consumer requires REDIS_ADDR")

type outcome int

const (
	outcomeAck outcome = iota
	outcomeDeadLetter
	outcomeRetry
)

type ConsumerParams struct {
	fx.In

	Client        *redis.Client `optional:"true"`
	Handler       *Handler
	Config        config.Config
	Ingest        *config.IngestConfigHolder
	Log           *zap.Logger
	IngestMetrics *obsmetrics.IngestMetrics `optional:"true"`
}

// Consumer reads the ingress stream through a consumer group. Messages that
// fail for transient reasons stay pending and are reclaimed once idle.
type Consumer struct {
	client  *redis.Client
	handler *Handler
	cfg     config.QueueConfig
	ingest  *config.IngestConfigHolder
	log     *zap.Logger
	metrics *obsmetrics.IngestMetrics
}

func NewConsumer(p ConsumerParams) *Consumer {
	return &Consumer{
		client:  p.Client,
		handler: p.Handler,
		cfg:     p.Config.Queue,
		ingest:  p.Ingest,
		log:     p.Log.Named("queue.consumer"),
		metrics: p.IngestMetrics,
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.client == nil {
		return ErrQueueDisabled
	}
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	workers := c.ingest.Get().Workers
	c.log.Info("queue consumer started",
		zap.String("stream", c.cfg.IngressStream),
		zap.String("group", c.cfg.ConsumerGroup),
		zap.Int("workers", workers),
	)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("%s-%d", c.cfg.ConsumerName, i)
		g.Go(func() error {
			c.readLoop(gCtx, name)
			return nil
		})
	}
	g.Go(func() error {
		c.claimLoop(gCtx, c.cfg.ConsumerName+"-claim")
		return nil
	})
	return g.Wait()
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.IngressStream, c.cfg.ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (c *Consumer) readLoop(ctx context.Context, consumer string) {
	for ctx.Err() == nil {
		cfg := c.ingest.Get()
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.ConsumerGroup,
			Consumer: consumer,
			Streams:  []string{c.cfg.IngressStream, ">"},
			Count:    cfg.BatchSize,
			Block:    cfg.BlockTimeout,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("read ingress stream failed", zap.String("consumer", consumer), zap.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.process(ctx, msg)
			}
		}
	}
}

func (c *Consumer) claimLoop(ctx context.Context, consumer string) {
	for {
		idle := c.ingest.Get().ClaimIdle
		if !sleep(ctx, idle/2) {
			return
		}
		start := "0-0"
		for {
			msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   c.cfg.IngressStream,
				Group:    c.cfg.ConsumerGroup,
				Consumer: consumer,
				MinIdle:  idle,
				Start:    start,
				Count:    c.ingest.Get().BatchSize,
			}).Result()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Warn("claim idle messages failed", zap.Error(err))
				}
				break
			}
			for _, msg := range msgs {
				c.process(ctx, msg)
			}
			if next == "0-0" || next == "" {
				break
			}
			start = next
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	ctx = obscontext.WithCorrelationID(ctx, stringValue(msg.Values, fieldCorrelationID))
	ctx, _ = obscontext.EnsureCorrelationID(ctx)
	log := obslogger.WithContext(ctx, c.log).With(zap.String("message_id", msg.ID))

	result, err := c.apply(ctx, msg)
	switch result {
	case outcomeAck:
		c.ack(ctx, log, msg.ID)
	case outcomeDeadLetter:
		reason := err.Error()
		c.metrics.IncDeadLetter(obsmetrics.ClassifyIngestReason(err))
		log.Warn("ingress message rejected", zap.String("reason", reason))
		if dlqErr := c.deadLetter(ctx, msg, reason); dlqErr != nil {
			log.Error("dead-letter write failed", zap.Error(dlqErr))
			return
		}
		c.ack(ctx, log, msg.ID)
	case outcomeRetry:
		log.Warn("ingress message left pending", zap.Error(err))
	}
}

// apply decides what happens to msg without touching Redis.
func (c *Consumer) apply(ctx context.Context, msg redis.XMessage) (outcome, error) {
	raw := stringValue(msg.Values, fieldPayload)
	if raw == "" {
		return outcomeDeadLetter, fmt.Errorf("%w: missing payload", ErrInvalidEnvelope)
	}
	env, err := ParseEnvelope([]byte(raw))
	if err != nil {
		return outcomeDeadLetter, err
	}
	if _, err := c.handler.Handle(ctx, env); err != nil {
		if permanent(err) {
			return outcomeDeadLetter, err
		}
		return outcomeRetry, err
	}
	return outcomeAck, nil
}

func (c *Consumer) ack(ctx context.Context, log *zap.Logger, id string) {
	if err := c.client.XAck(ctx, c.cfg.IngressStream, c.cfg.ConsumerGroup, id).Err(); err != nil {
		log.Warn("ack failed", zap.Error(err))
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg redis.XMessage, reason string) error {
	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DeadLetterStream,
		Values: map[string]interface{}{
			fieldOriginalID: msg.ID,
			fieldPayload:    stringValue(msg.Values, fieldPayload),
			fieldReason:     reason,
		},
	}).Err()
}

func isEnvelopeError(err error) bool {
	return errors.Is(err, ErrInvalidEnvelope) || errors.Is(err, ErrUnknownOperation)
}

func stringValue(values map[string]interface{}, key string) string {
	switch v := values[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

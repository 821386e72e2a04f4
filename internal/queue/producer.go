package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inventory/internal/config"
	"github.com/smallbiznis/inventory/internal/host/domain"
	obscontext "github.com/smallbiznis/inventory/internal/observability/context"
)

// eventMessage is the payload published on the event stream.
type eventMessage struct {
	Type             domain.Action          `json:"type"`
	ID               string                 `json:"id"`
	Host             domain.HostView        `json:"host"`
	PlatformMetadata map[string]interface{} `json:"platform_metadata,omitempty"`
	Timestamp        time.Time              `json:"timestamp"`
}

// Producer publishes host events to a Redis stream.
type Producer struct {
	client *redis.Client
	genID  *snowflake.Node
	stream string
	maxLen int64
	now    func() time.Time
}

func NewProducer(client *redis.Client, genID *snowflake.Node, cfg config.QueueConfig) *Producer {
	return &Producer{
		client: client,
		genID:  genID,
		stream: cfg.EventStream,
		maxLen: cfg.EventMaxLen,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *Producer) Publish(ctx context.Context, event domain.Event) error {
	msg := eventMessage{
		Type:             event.Type,
		ID:               p.genID.Generate().String(),
		Host:             domain.NewHostView(event.Host),
		PlatformMetadata: event.PlatformMetadata,
		Timestamp:        p.now(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	values := map[string]interface{}{
		fieldKey:     event.Host.ID.String(),
		fieldPayload: string(payload),
	}
	if cid := obscontext.CorrelationIDFromContext(ctx); cid != "" {
		values[fieldCorrelationID] = cid
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Err()
}

var _ domain.EventPublisher = (*Producer)(nil)

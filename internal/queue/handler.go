package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smallbiznis/inventory/internal/host/domain"
	obslogger "github.com/smallbiznis/inventory/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/inventory/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type HandlerParams struct {
	fx.In

	Service domain.Service
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Handler applies one ingress envelope. It has no Redis dependency.
type Handler struct {
	svc     domain.Service
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		svc:     p.Service,
		log:     p.Log.Named("queue.handler"),
		metrics: p.Metrics,
	}
}

func (h *Handler) Handle(ctx context.Context, env Envelope) (domain.Action, error) {
	var rec domain.HostRecord
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	rec.PlatformMetadata = env.PlatformMetadata

	res, err := h.svc.AddHost(ctx, rec)
	if err != nil {
		return "", err
	}
	h.metrics.RecordHostIngest(ctx, "queue", string(res.Action))
	obslogger.WithContext(ctx, h.log).Debug("ingress message applied",
		zap.String("host_id", res.Host.ID.String()),
		zap.String("action", string(res.Action)),
	)
	return res.Action, nil
}

// permanent reports whether redelivering the message could never succeed.
func permanent(err error) bool {
	return domain.IsValidationError(err) || isEnvelopeError(err)
}

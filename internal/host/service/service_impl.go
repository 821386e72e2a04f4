package service

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/inventory/internal/clock"
	"github.com/smallbiznis/inventory/internal/config"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/internal/host/match"
	"github.com/smallbiznis/inventory/internal/lock"
	obsmetrics "github.com/smallbiznis/inventory/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resolver finds the stored host an inbound fact set refers to.
type Resolver interface {
	Resolve(ctx context.Context, account string, facts domain.CanonicalFacts) (domain.MatchResult, error)
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Repo          domain.Repository
	Store         domain.Store
	Builder       match.Builder
	Resolver      Resolver
	Locker        lock.Locker
	Clock         clock.Clock
	Ingest        *config.IngestConfigHolder
	Publisher     domain.EventPublisher     `optional:"true"`
	Metrics       *obsmetrics.Metrics       `optional:"true"`
	IngestMetrics *obsmetrics.IngestMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	repo          domain.Repository
	store         domain.Store
	builder       match.Builder
	resolver      Resolver
	locker        lock.Locker
	clock         clock.Clock
	ingest        *config.IngestConfigHolder
	publisher     domain.EventPublisher
	metrics       *obsmetrics.Metrics
	ingestMetrics *obsmetrics.IngestMetrics
	validate      *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("host.service"),
		repo:          p.Repo,
		store:         p.Store,
		builder:       p.Builder,
		resolver:      p.Resolver,
		locker:        p.Locker,
		clock:         p.Clock,
		ingest:        p.Ingest,
		publisher:     p.Publisher,
		metrics:       p.Metrics,
		ingestMetrics: p.IngestMetrics,
		validate:      newValidator(),
	}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

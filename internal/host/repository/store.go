package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/smallbiznis/inventory/internal/clock"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/internal/host/match"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type StoreParams struct {
	fx.In

	DB      *gorm.DB
	Repo    domain.Repository
	Builder match.Builder
	Clock   clock.Clock
}

type store struct {
	db      *gorm.DB
	repo    domain.Repository
	builder match.Builder
	clock   clock.Clock
}

func NewStore(p StoreParams) domain.Store {
	return &store{
		db:      p.DB,
		repo:    p.Repo,
		builder: p.Builder,
		clock:   p.Clock,
	}
}

// FindByFact returns the host of account whose canonical facts hold
// factName = factValue, or nil when there is none.
func (s *store) FindByFact(ctx context.Context, account, factName, factValue string) (*domain.Host, error) {
	pred, err := s.builder.CanonicalFactQuery(account, factName, factValue)
	if err != nil {
		return nil, err
	}
	return s.repo.FindOne(ctx, s.db, pred)
}

func (s *store) Create(ctx context.Context, host *domain.Host) error {
	return s.repo.Insert(ctx, s.db, host)
}

// Update merges facts and metadata into the stored host under a row lock.
func (s *store) Update(ctx context.Context, account string, id uuid.UUID, facts domain.CanonicalFacts, meta domain.HostMetadata) (*domain.Host, error) {
	var updated *domain.Host
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		host, err := s.repo.FindByIDForUpdate(ctx, tx, account, id)
		if err != nil {
			return err
		}
		if host == nil {
			return domain.ErrNotFound
		}
		host.Apply(facts, meta, s.clock.Now())
		if err := s.repo.Save(ctx, tx, host); err != nil {
			return err
		}
		updated = host
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

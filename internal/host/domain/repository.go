package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/smallbiznis/inventory/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, host *Host) error
	Save(ctx context.Context, db *gorm.DB, host *Host) error
	FindOne(ctx context.Context, db *gorm.DB, exprs ...clause.Expression) (*Host, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, account string, id uuid.UUID) (*Host, error)
	List(ctx context.Context, db *gorm.DB, account string, exprs []clause.Expression, order Ordering, page pagination.Pagination) ([]*Host, int64, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	CountByAccount(ctx context.Context, db *gorm.DB) (map[string]int64, error)
}

// Store is the persistence contract the dedup path depends on.
type Store interface {
	FindByFact(ctx context.Context, account, factName, factValue string) (*Host, error)
	Create(ctx context.Context, host *Host) error
	Update(ctx context.Context, account string, id uuid.UUID, facts CanonicalFacts, meta HostMetadata) (*Host, error)
}

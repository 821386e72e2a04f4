package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, host *domain.Host) error {
	return db.WithContext(ctx).Create(host).Error
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, host *domain.Host) error {
	return db.WithContext(ctx).
		Model(&domain.Host{}).
		Where("account = ? AND id = ?", host.Account, host.ID).
		Updates(map[string]interface{}{
			"display_name":         host.DisplayName,
			"ansible_host":         host.AnsibleHost,
			"canonical_facts":      host.CanonicalFacts,
			"facts":                host.Facts,
			"tags":                 host.Tags,
			"system_profile_facts": host.SystemProfile,
			"reporter":             host.Reporter,
			"stale_timestamp":      host.StaleTimestamp,
			"modified_on":          host.ModifiedOn,
		}).Error
}

// FindOne returns the first host matching every expression, or nil. The
// order is fixed so that repeated lookups pick the same row.
func (r *repo) FindOne(ctx context.Context, db *gorm.DB, exprs ...clause.Expression) (*domain.Host, error) {
	var hosts []domain.Host
	stmt := db.WithContext(ctx).Model(&domain.Host{})
	for _, expr := range exprs {
		stmt = stmt.Where(expr)
	}
	err := stmt.
		Order("modified_on desc, id desc").
		Limit(1).
		Find(&hosts).Error
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, nil
	}
	return &hosts[0], nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, account string, id uuid.UUID) (*domain.Host, error) {
	var host domain.Host
	stmt := db.WithContext(ctx)
	if supportsRowLocks(db) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.
		Where("account = ? AND id = ?", account, id).
		Take(&host).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &host, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, account string, exprs []clause.Expression, order domain.Ordering, page pagination.Pagination) ([]*domain.Host, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Host{}).
		Where("account = ?", account)
	for _, expr := range exprs {
		stmt = stmt.Where(expr)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var hosts []*domain.Host
	err := stmt.
		Order(clause.OrderBy{Columns: orderColumns(order)}).
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&hosts).Error
	if err != nil {
		return nil, 0, err
	}
	return hosts, total, nil
}

// orderColumns sorts by the requested column, then newest first, then id.
func orderColumns(order domain.Ordering) []clause.OrderByColumn {
	cols := []clause.OrderByColumn{{Column: clause.Column{Name: order.Column}, Desc: order.Desc}}
	if order.Column != "modified_on" {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: "modified_on"}, Desc: true})
	}
	return append(cols, clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true})
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Host{}).Count(&total).Error
	return total, err
}

func (r *repo) CountByAccount(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Account string
		Total   int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Host{}).
		Select("account, COUNT(*) AS total").
		Group("account").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Account] = row.Total
	}
	return out, nil
}

func supportsRowLocks(db *gorm.DB) bool {
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		return true
	default:
		return false
	}
}

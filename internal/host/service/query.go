package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/internal/host/match"
	"github.com/smallbiznis/inventory/pkg/db/pagination"
	"gorm.io/gorm/clause"
)

func (s *Service) List(ctx context.Context, req domain.ListHostsRequest) (domain.ListHostsResponse, error) {
	account := strings.TrimSpace(req.Account)
	if account == "" {
		return domain.ListHostsResponse{}, domain.ErrInvalidAccount
	}

	order, err := domain.ParseOrdering(req.OrderBy, req.OrderHow)
	if err != nil {
		return domain.ListHostsResponse{}, err
	}
	page, err := pagination.Pagination{Page: req.Page, PerPage: req.PerPage}.Normalize()
	if err != nil {
		return domain.ListHostsResponse{}, err
	}

	if req.InsightsID != "" {
		if _, err := uuid.Parse(req.InsightsID); err != nil {
			return domain.ListHostsResponse{}, domain.ErrInvalidInsightsID
		}
	}

	filter := domain.NewHostFilter(req)
	exprs, err := s.filterExpressions(account, filter)
	if err != nil {
		return domain.ListHostsResponse{}, err
	}
	s.metrics.RecordHostQuery(ctx, filter.Kind.String())

	return s.list(ctx, account, exprs, order, page)
}

// GetByIDs returns the hosts of a comma separated id list. Unknown ids are
// left out of the result.
func (s *Service) GetByIDs(ctx context.Context, req domain.GetHostsRequest) (domain.ListHostsResponse, error) {
	account := strings.TrimSpace(req.Account)
	if account == "" {
		return domain.ListHostsResponse{}, domain.ErrInvalidAccount
	}

	ids, err := parseIDList(req.IDs)
	if err != nil {
		return domain.ListHostsResponse{}, err
	}
	order, err := domain.ParseOrdering(req.OrderBy, req.OrderHow)
	if err != nil {
		return domain.ListHostsResponse{}, err
	}
	page, err := pagination.Pagination{Page: req.Page, PerPage: req.PerPage}.Normalize()
	if err != nil {
		return domain.ListHostsResponse{}, err
	}

	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	exprs := []clause.Expression{clause.IN{Column: clause.Column{Name: "id"}, Values: values}}
	s.metrics.RecordHostQuery(ctx, "id_list")

	return s.list(ctx, account, exprs, order, page)
}

func (s *Service) list(ctx context.Context, account string, exprs []clause.Expression, order domain.Ordering, page pagination.Pagination) (domain.ListHostsResponse, error) {
	items, total, err := s.repo.List(ctx, s.db, account, exprs, order, page)
	if err != nil {
		return domain.ListHostsResponse{}, err
	}

	hosts := make([]domain.Host, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		hosts = append(hosts, *item)
	}

	return domain.ListHostsResponse{
		PageInfo: pagination.BuildPageInfo(page, len(hosts), total),
		Results:  hosts,
	}, nil
}

// filterExpressions translates a host filter into store predicates. Exact
// fact filters go through the match builder so listings agree with
// deduplication on what a fact match is.
func (s *Service) filterExpressions(account string, filter domain.HostFilter) ([]clause.Expression, error) {
	var exprs []clause.Expression

	switch filter.Kind {
	case domain.FilterFQDN:
		pred, err := s.builder.CanonicalFactQuery(account, domain.FactFQDN, filter.Value)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, pred)
	case domain.FilterInsightsID:
		pred, err := s.builder.CanonicalFactQuery(account, domain.FactInsightsID, filter.Value)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, pred)
	case domain.FilterDisplayName:
		exprs = append(exprs, displayNameContains(filter.Value))
	case domain.FilterHostnameOrID:
		either := []clause.Expression{
			displayNameContains(filter.Value),
			match.FactContains(domain.FactFQDN, filter.Value),
		}
		if id, err := uuid.Parse(filter.Value); err == nil {
			either = append(either, clause.Eq{Column: clause.Column{Name: "id"}, Value: id})
		}
		exprs = append(exprs, clause.Or(either...))
	}

	switch filter.RegisteredWith {
	case "":
	case domain.RegisteredWithInsights:
		exprs = append(exprs, match.HasFact(domain.FactInsightsID))
	default:
		return nil, domain.ErrInvalidRegisteredWith
	}

	return exprs, nil
}

func displayNameContains(value string) clause.Expression {
	return clause.Expr{
		SQL:  "LOWER(display_name) LIKE ?",
		Vars: []interface{}{"%" + strings.ToLower(value) + "%"},
	}
}

// parseIDList accepts hyphenated and hyphen-less UUIDs. A single malformed
// or empty element rejects the whole list.
func parseIDList(raw string) ([]uuid.UUID, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	seen := make(map[uuid.UUID]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, domain.ErrInvalidHostID
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, domain.ErrInvalidHostID
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Package dedup decides whether an inbound host record refers to a host that
// is already stored.
package dedup

import (
	"context"
	"strings"

	"github.com/smallbiznis/inventory/internal/host/domain"
	obsmetrics "github.com/smallbiznis/inventory/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Finder is the read side of the host store.
type Finder interface {
	FindByFact(ctx context.Context, account, factName, factValue string) (*domain.Host, error)
}

type Params struct {
	fx.In

	Store   domain.Store
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Resolver queries the store one canonical fact at a time. It holds no state
// between calls and performs no writes.
type Resolver struct {
	finder  Finder
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func New(p Params) *Resolver {
	r := NewResolver(p.Store, p.Log)
	r.metrics = p.Metrics
	return r
}

func NewResolver(finder Finder, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		finder: finder,
		log:    log.Named("host.dedup"),
	}
}

// Resolve returns the first stored host sharing a fact with facts. Elevated
// facts are looked up before ordinary ones, each group in fixed priority order.
// Store errors are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, account string, facts domain.CanonicalFacts) (domain.MatchResult, error) {
	if strings.TrimSpace(account) == "" {
		return domain.NoMatch, domain.ErrInvalidAccount
	}
	if err := facts.Validate(); err != nil {
		return domain.NoMatch, err
	}

	for _, pass := range [][]domain.FactPair{facts.Elevated(), facts.Ordinary()} {
		for _, fact := range pass {
			host, err := r.finder.FindByFact(ctx, account, fact.Name, fact.Value)
			if err != nil {
				return domain.NoMatch, err
			}
			r.metrics.RecordFactLookup(ctx, fact.Name, host != nil)
			if host != nil {
				r.log.Debug("host matched",
					zap.String("account", account),
					zap.String("host_id", host.ID.String()),
					zap.String("matched_by", fact.Name),
				)
				return domain.Matched(host, fact.Name), nil
			}
		}
	}

	return domain.NoMatch, nil
}

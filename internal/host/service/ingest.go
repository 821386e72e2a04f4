package service

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/internal/lock"
	obslogger "github.com/smallbiznis/inventory/internal/observability/logger"
	"github.com/smallbiznis/inventory/pkg/db"
	"go.uber.org/zap"
)

// AddHost creates the host described by rec or merges rec into the stored
// host it resolves to. Records sharing any canonical fact are serialized.
func (s *Service) AddHost(ctx context.Context, rec domain.HostRecord) (domain.AddHostResult, error) {
	start := s.clock.Now()

	rec.Normalize()
	if err := s.validateRecord(rec); err != nil {
		s.ingestMetrics.IncError(err)
		return domain.AddHostResult{}, err
	}
	facts := rec.CanonicalFacts()
	if err := facts.Validate(); err != nil {
		s.ingestMetrics.IncError(err)
		return domain.AddHostResult{}, err
	}

	keys := make([]string, 0, len(facts))
	for _, name := range facts.Names() {
		keys = append(keys, lock.HostFactKey(rec.Account, name, facts[name]))
	}
	lockStart := time.Now()
	unlock, err := s.locker.Lock(ctx, keys...)
	s.ingestMetrics.ObserveLockWait(time.Since(lockStart))
	if err != nil {
		s.ingestMetrics.IncError(err)
		return domain.AddHostResult{}, err
	}
	defer unlock()

	result, err := s.upsert(ctx, rec.Account, facts, rec.Metadata())
	if err != nil {
		s.ingestMetrics.IncError(err)
		return domain.AddHostResult{}, err
	}

	s.ingestMetrics.ObserveIngest(string(result.Action), s.clock.Now().Sub(start))
	if result.MatchedBy != "" {
		s.ingestMetrics.IncMatch(result.MatchedBy)
	}

	obslogger.WithContext(ctx, s.log).Info("host ingested",
		zap.String("host_id", result.Host.ID.String()),
		zap.String("action", string(result.Action)),
		zap.String("matched_by", result.MatchedBy),
	)

	s.emit(ctx, domain.Event{
		Type:             result.Action,
		Host:             result.Host,
		PlatformMetadata: rec.PlatformMetadata,
	})
	return result, nil
}

// upsert runs resolution and the resulting write. A create that loses a
// uniqueness race, or an update whose target vanished, starts over from
// resolution.
func (s *Service) upsert(ctx context.Context, account string, facts domain.CanonicalFacts, meta domain.HostMetadata) (domain.AddHostResult, error) {
	retries := s.ingest.Get().ConflictRetries
	for attempt := 0; ; attempt++ {
		res, err := s.resolver.Resolve(ctx, account, facts)
		if err != nil {
			return domain.AddHostResult{}, err
		}

		if res.Matched() {
			delta, err := s.withoutForeignElevated(ctx, account, res.HostID(), facts)
			if err != nil {
				return domain.AddHostResult{}, err
			}
			host, err := s.store.Update(ctx, account, res.HostID(), delta, meta)
			if errors.Is(err, domain.ErrNotFound) && attempt < retries {
				continue
			}
			if db.IsDuplicateKeyErr(err) {
				if err := s.conflict(account, attempt, retries); err != nil {
					return domain.AddHostResult{}, err
				}
				continue
			}
			if err != nil {
				return domain.AddHostResult{}, err
			}
			return domain.AddHostResult{Host: *host, Action: domain.ActionUpdate, MatchedBy: res.MatchedBy}, nil
		}

		host := domain.NewHost(uuid.New(), account, facts, meta, s.clock.Now())
		err = s.store.Create(ctx, host)
		if err == nil {
			return domain.AddHostResult{Host: *host, Action: domain.ActionCreate}, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return domain.AddHostResult{}, err
		}
		if err := s.conflict(account, attempt, retries); err != nil {
			return domain.AddHostResult{}, err
		}
	}
}

func (s *Service) conflict(account string, attempt, retries int) error {
	s.ingestMetrics.IncConflict()
	if attempt < retries {
		return nil
	}
	s.log.Warn("host write conflict retries exhausted",
		zap.String("account", account),
		zap.Int("attempts", attempt+1),
	)
	return domain.ErrConflict
}

// withoutForeignElevated drops inbound elevated facts that already identify
// another host of the account. Elevated facts are unique per account, so the
// owning host keeps them.
func (s *Service) withoutForeignElevated(ctx context.Context, account string, target uuid.UUID, facts domain.CanonicalFacts) (domain.CanonicalFacts, error) {
	out := facts
	cloned := false
	for _, fact := range facts.Elevated() {
		owner, err := s.store.FindByFact(ctx, account, fact.Name, fact.Value)
		if err != nil {
			return nil, err
		}
		if owner == nil || owner.ID == target {
			continue
		}
		if !cloned {
			out, cloned = maps.Clone(facts), true
		}
		delete(out, fact.Name)
		obslogger.WithContext(ctx, s.log).Info("elevated fact kept on owning host",
			zap.String("fact", fact.Name),
			zap.String("host_id", target.String()),
			zap.String("owner_id", owner.ID.String()),
		)
	}
	return out, nil
}

func (s *Service) emit(ctx context.Context, event domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.RecordHostEvent(ctx, string(event.Type), "failed")
		obslogger.WithContext(ctx, s.log).Warn("host event publish failed",
			zap.String("host_id", event.Host.ID.String()),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordHostEvent(ctx, string(event.Type), "published")
}

func (s *Service) validateRecord(rec domain.HostRecord) error {
	err := s.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		if field == "account" {
			return domain.ErrInvalidAccount
		}
		return &domain.FieldError{Field: field, Reason: verrs[0].Tag()}
	}
	return err
}

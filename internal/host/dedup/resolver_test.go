package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/inventory/internal/clock"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/internal/host/match"
	"github.com/smallbiznis/inventory/internal/host/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAccount = "000501"

type stubFinder struct {
	calls []string
	host  *domain.Host
	err   error
}

func (s *stubFinder) FindByFact(ctx context.Context, account, factName, factValue string) (*domain.Host, error) {
	s.calls = append(s.calls, factName)
	return s.host, s.err
}

func setupStore(t *testing.T) (domain.Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.Host{}))

	store := repository.NewStore(repository.StoreParams{
		DB:      db,
		Repo:    repository.Provide(),
		Builder: match.NewBuilder(),
		Clock:   clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	return store, db
}

func createHost(t *testing.T, store domain.Store, facts domain.CanonicalFacts) *domain.Host {
	t.Helper()
	host := domain.NewHost(uuid.New(), testAccount, facts, domain.HostMetadata{}, time.Now().UTC())
	require.NoError(t, store.Create(context.Background(), host))
	return host
}

func TestResolveSubsetMatches(t *testing.T) {
	store, _ := setupStore(t)
	stored := createHost(t, store, domain.CanonicalFacts{
		domain.FactFQDN:     "web01.example.com",
		domain.FactBIOSUUID: uuid.NewString(),
	})

	res, err := NewResolver(store, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{
		domain.FactFQDN: "web01.example.com",
	})
	require.NoError(t, err)
	require.True(t, res.Matched())
	assert.Equal(t, stored.ID, res.HostID())
	assert.Equal(t, domain.FactFQDN, res.MatchedBy)
	assert.Equal(t, domain.ActionUpdate, res.Action())
}

func TestResolveSupersetMatches(t *testing.T) {
	store, _ := setupStore(t)
	stored := createHost(t, store, domain.CanonicalFacts{
		domain.FactFQDN: "web02.example.com",
	})

	res, err := NewResolver(store, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{
		domain.FactFQDN:         "web02.example.com",
		domain.FactBIOSUUID:     uuid.NewString(),
		domain.FactMACAddresses: "aa:bb:cc:dd:ee:ff",
	})
	require.NoError(t, err)
	require.True(t, res.Matched())
	assert.Equal(t, stored.ID, res.HostID())
	assert.Equal(t, domain.FactFQDN, res.MatchedBy)
}

func TestResolveElevatedFactsWinOverOrdinary(t *testing.T) {
	for _, fact := range domain.ElevatedFacts {
		t.Run(fact, func(t *testing.T) {
			store, _ := setupStore(t)
			id := uuid.NewString()
			stored := createHost(t, store, domain.CanonicalFacts{
				fact:            id,
				domain.FactFQDN: "old.example.com",
			})

			res, err := NewResolver(store, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{
				fact:            id,
				domain.FactFQDN: "new.example.com",
			})
			require.NoError(t, err)
			require.True(t, res.Matched())
			assert.Equal(t, stored.ID, res.HostID())
			assert.Equal(t, fact, res.MatchedBy)
		})
	}
}

func TestResolveInsightsIDBeatsSubscriptionManagerIDRegardlessOfCreationOrder(t *testing.T) {
	insightsID := uuid.NewString()
	subscriptionManagerID := uuid.NewString()

	cases := []struct {
		name          string
		insightsFirst bool
	}{
		{name: "insights_host_first", insightsFirst: true},
		{name: "subscription_host_first", insightsFirst: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := setupStore(t)

			var insightsHost *domain.Host
			createInsights := func() {
				insightsHost = createHost(t, store, domain.CanonicalFacts{
					domain.FactInsightsID: insightsID,
					domain.FactFQDN:       "a.example.com",
				})
			}
			createSubscription := func() {
				createHost(t, store, domain.CanonicalFacts{
					domain.FactSubscriptionManagerID: subscriptionManagerID,
					domain.FactFQDN:                  "b.example.com",
				})
			}
			if tc.insightsFirst {
				createInsights()
				createSubscription()
			} else {
				createSubscription()
				createInsights()
			}

			res, err := NewResolver(store, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{
				domain.FactInsightsID:            insightsID,
				domain.FactSubscriptionManagerID: subscriptionManagerID,
			})
			require.NoError(t, err)
			require.True(t, res.Matched())
			assert.Equal(t, insightsHost.ID, res.HostID())
			assert.Equal(t, domain.FactInsightsID, res.MatchedBy)
		})
	}
}

func TestResolveOrdinaryFactsFollowPriority(t *testing.T) {
	store, _ := setupStore(t)
	biosUUID := uuid.NewString()
	byBIOS := createHost(t, store, domain.CanonicalFacts{domain.FactBIOSUUID: biosUUID})
	createHost(t, store, domain.CanonicalFacts{domain.FactFQDN: "shared.example.com"})

	res, err := NewResolver(store, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{
		domain.FactFQDN:     "shared.example.com",
		domain.FactBIOSUUID: biosUUID,
	})
	require.NoError(t, err)
	assert.Equal(t, byBIOS.ID, res.HostID())
	assert.Equal(t, domain.FactBIOSUUID, res.MatchedBy)
}

func TestResolveNoMatch(t *testing.T) {
	store, _ := setupStore(t)
	createHost(t, store, domain.CanonicalFacts{domain.FactFQDN: "other.example.com"})

	res, err := NewResolver(store, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{
		domain.FactFQDN: "unknown.example.com",
	})
	require.NoError(t, err)
	assert.False(t, res.Matched())
	assert.Equal(t, domain.ActionCreate, res.Action())
}

func TestResolveIsScopedToAccount(t *testing.T) {
	store, _ := setupStore(t)
	createHost(t, store, domain.CanonicalFacts{domain.FactFQDN: "tenant.example.com"})

	res, err := NewResolver(store, zap.NewNop()).Resolve(context.Background(), "999999", domain.CanonicalFacts{
		domain.FactFQDN: "tenant.example.com",
	})
	require.NoError(t, err)
	assert.False(t, res.Matched())
}

func TestResolveRejectsEmptyFactsBeforeQuerying(t *testing.T) {
	finder := &stubFinder{}

	_, err := NewResolver(finder, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{})
	assert.ErrorIs(t, err, domain.ErrNoCanonicalFacts)
	assert.Empty(t, finder.calls)
}

func TestResolveRejectsUnknownFactName(t *testing.T) {
	finder := &stubFinder{}

	_, err := NewResolver(finder, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{
		"hostname": "x",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFactName)
	assert.Empty(t, finder.calls)
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	finder := &stubFinder{err: boom}

	_, err := NewResolver(finder, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{
		domain.FactFQDN:     "x.example.com",
		domain.FactBIOSUUID: uuid.NewString(),
	})
	assert.Same(t, boom, err)
	assert.Len(t, finder.calls, 1)
}

func TestResolveLooksUpElevatedThenOrdinaryInOrder(t *testing.T) {
	finder := &stubFinder{}

	_, err := NewResolver(finder, zap.NewNop()).Resolve(context.Background(), testAccount, domain.CanonicalFacts{
		domain.FactProviderID:            "i-123",
		domain.FactFQDN:                  "x.example.com",
		domain.FactSubscriptionManagerID: uuid.NewString(),
		domain.FactInsightsID:            uuid.NewString(),
		domain.FactBIOSUUID:              uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		domain.FactInsightsID,
		domain.FactSubscriptionManagerID,
		domain.FactBIOSUUID,
		domain.FactFQDN,
		domain.FactProviderID,
	}, finder.calls)
}

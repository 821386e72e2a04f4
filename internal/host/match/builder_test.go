package match

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCanonicalFactQueryIsPure(t *testing.T) {
	b := NewBuilder()

	first, err := b.CanonicalFactQuery("000501", domain.FactFQDN, "host.example.com")
	require.NoError(t, err)
	second, err := b.CanonicalFactQuery("000501", domain.FactFQDN, "host.example.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Predicate{Account: "000501", FactName: "fqdn", FactValue: "host.example.com"}, first)
}

func TestCanonicalFactQueryRejectsBadInput(t *testing.T) {
	b := NewBuilder()

	_, err := b.CanonicalFactQuery("000501", "hostname", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidFactName)

	_, err = b.CanonicalFactQuery("000501", domain.FactFQDN, "")
	assert.ErrorIs(t, err, domain.ErrInvalidFactValue)

	_, err = b.CanonicalFactQuery(" ", domain.FactFQDN, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
}

func TestPredicateRendersAccountAndFact(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	pred, err := NewBuilder().CanonicalFactQuery("000501", domain.FactInsightsID, "a0e2d5a8-8a9c-4a5e-9a62-5d2f7b1d2c11")
	require.NoError(t, err)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var hosts []domain.Host
		return tx.Model(&domain.Host{}).Where(pred).Find(&hosts)
	})

	assert.Contains(t, sql, "account")
	assert.Contains(t, sql, "000501")
	assert.Contains(t, sql, "insights_id")
	assert.Contains(t, sql, "a0e2d5a8-8a9c-4a5e-9a62-5d2f7b1d2c11")
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, CanonicalFacts{}.Validate(), ErrNoCanonicalFacts)
	assert.ErrorIs(t, CanonicalFacts(nil).Validate(), ErrNoCanonicalFacts)
	assert.ErrorIs(t, CanonicalFacts{"hostname": "x"}.Validate(), ErrInvalidFactName)
	assert.ErrorIs(t, CanonicalFacts{FactFQDN: ""}.Validate(), ErrInvalidFactValue)
	assert.NoError(t, CanonicalFacts{FactFQDN: "a.example.com"}.Validate())
}

func TestElevatedAndOrdinaryFollowPriority(t *testing.T) {
	facts := CanonicalFacts{
		FactProviderType:          "aws",
		FactSubscriptionManagerID: "s",
		FactFQDN:                  "a.example.com",
		FactInsightsID:            "i",
		FactBIOSUUID:              "b",
	}

	assert.Equal(t, []FactPair{
		{Name: FactInsightsID, Value: "i"},
		{Name: FactSubscriptionManagerID, Value: "s"},
	}, facts.Elevated())
	assert.Equal(t, []FactPair{
		{Name: FactBIOSUUID, Value: "b"},
		{Name: FactFQDN, Value: "a.example.com"},
		{Name: FactProviderType, Value: "aws"},
	}, facts.Ordinary())
}

func TestMergeInboundWins(t *testing.T) {
	stored := CanonicalFacts{FactFQDN: "old.example.com", FactBIOSUUID: "b"}
	merged := stored.Merge(CanonicalFacts{FactFQDN: "new.example.com", FactIPAddresses: "10.0.0.1", FactMACAddresses: ""})

	assert.Equal(t, CanonicalFacts{
		FactFQDN:        "new.example.com",
		FactBIOSUUID:    "b",
		FactIPAddresses: "10.0.0.1",
	}, merged)
	assert.Equal(t, "old.example.com", stored[FactFQDN])
}

func TestNamesSortsByPriorityThenUnknownByName(t *testing.T) {
	facts := CanonicalFacts{
		"zeta":                    "z",
		FactFQDN:                  "f",
		"alpha":                   "a",
		FactSubscriptionManagerID: "s",
	}
	assert.Equal(t, []string{FactSubscriptionManagerID, FactFQDN, "alpha", "zeta"}, facts.Names())
}

func TestCanonicalFactsFromMapSkipsNonStrings(t *testing.T) {
	facts := CanonicalFactsFromMap(map[string]interface{}{
		FactFQDN:        " a.example.com ",
		FactBIOSUUID:    12,
		FactIPAddresses: "",
	})
	assert.Equal(t, CanonicalFacts{FactFQDN: "a.example.com"}, facts)
}

func TestIsElevatedFact(t *testing.T) {
	for _, name := range ElevatedFacts {
		assert.True(t, IsElevatedFact(name))
		assert.True(t, IsCanonicalFact(name))
	}
	for _, name := range OrdinaryFacts {
		assert.False(t, IsElevatedFact(name))
		assert.True(t, IsCanonicalFact(name))
	}
	assert.False(t, IsCanonicalFact("hostname"))
}

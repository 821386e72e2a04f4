// Package match builds the store predicates used to look hosts up by a
// single canonical fact. The resolver and the read API share one Builder so
// that both paths agree on what "has fact X = v" means.
package match

import (
	"strings"

	"github.com/smallbiznis/inventory/internal/host/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

const canonicalFactsColumn = "canonical_facts"

// Builder turns (account, fact name, fact value) into a store predicate.
type Builder interface {
	CanonicalFactQuery(account, factName, factValue string) (Predicate, error)
}

// Predicate selects hosts of one account whose canonical facts contain
// factName with exactly factValue.
type Predicate struct {
	Account   string
	FactName  string
	FactValue string
}

// Build renders the predicate for the statement's dialect.
func (p Predicate) Build(builder clause.Builder) {
	clause.And(
		clause.Eq{Column: clause.Column{Name: "account"}, Value: p.Account},
		datatypes.JSONQuery(canonicalFactsColumn).Equals(p.FactValue, p.FactName),
	).Build(builder)
}

var _ clause.Expression = Predicate{}

type defaultBuilder struct{}

// NewBuilder returns the builder used in production.
func NewBuilder() Builder {
	return defaultBuilder{}
}

func (defaultBuilder) CanonicalFactQuery(account, factName, factValue string) (Predicate, error) {
	if strings.TrimSpace(account) == "" {
		return Predicate{}, domain.ErrInvalidAccount
	}
	if !domain.IsCanonicalFact(factName) {
		return Predicate{}, domain.ErrInvalidFactName
	}
	if factValue == "" {
		return Predicate{}, domain.ErrInvalidFactValue
	}
	return Predicate{
		Account:   account,
		FactName:  factName,
		FactValue: factValue,
	}, nil
}

// HasFact selects hosts whose canonical facts carry factName at all.
func HasFact(factName string) clause.Expression {
	return datatypes.JSONQuery(canonicalFactsColumn).HasKey(factName)
}

// FactContains selects hosts whose factName value contains substr.
func FactContains(factName, substr string) clause.Expression {
	return datatypes.JSONQuery(canonicalFactsColumn).Likes("%"+substr+"%", factName)
}

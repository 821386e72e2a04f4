package domain

import (
	"sort"
	"strings"
)

// Canonical fact names, in descending match priority.
const (
	FactInsightsID            = "insights_id"
	FactSubscriptionManagerID = "subscription_manager_id"
	FactBIOSUUID              = "bios_uuid"
	FactFQDN                  = "fqdn"
	FactMACAddresses          = "mac_addresses"
	FactIPAddresses           = "ip_addresses"
	FactRHELMachineID         = "rhel_machine_id"
	FactSatelliteID           = "satellite_id"
	FactProviderID            = "provider_id"
	FactProviderType          = "provider_type"
)

// ElevatedFacts identify a host on their own and are looked up first.
var ElevatedFacts = []string{
	FactInsightsID,
	FactSubscriptionManagerID,
}

// OrdinaryFacts are looked up one at a time after the elevated pass.
var OrdinaryFacts = []string{
	FactBIOSUUID,
	FactFQDN,
	FactMACAddresses,
	FactIPAddresses,
	FactRHELMachineID,
	FactSatelliteID,
	FactProviderID,
	FactProviderType,
}

var factPriority = func() map[string]int {
	out := make(map[string]int, len(ElevatedFacts)+len(OrdinaryFacts))
	for i, name := range ElevatedFacts {
		out[name] = i
	}
	for i, name := range OrdinaryFacts {
		out[name] = len(ElevatedFacts) + i
	}
	return out
}()

// IsCanonicalFact reports whether name is a recognized canonical fact.
func IsCanonicalFact(name string) bool {
	_, ok := factPriority[name]
	return ok
}

// IsElevatedFact reports whether name identifies a host unambiguously.
func IsElevatedFact(name string) bool {
	return name == FactInsightsID || name == FactSubscriptionManagerID
}

// FactPair is a single canonical fact.
type FactPair struct {
	Name  string
	Value string
}

// CanonicalFacts maps fact names to their values. Values are compared
// case-sensitively.
type CanonicalFacts map[string]string

// Validate rejects empty sets and unrecognized fact names.
func (f CanonicalFacts) Validate() error {
	if len(f) == 0 {
		return ErrNoCanonicalFacts
	}
	for name, value := range f {
		if !IsCanonicalFact(name) {
			return ErrInvalidFactName
		}
		if value == "" {
			return ErrInvalidFactValue
		}
	}
	return nil
}

// Elevated returns the elevated facts present, in priority order.
func (f CanonicalFacts) Elevated() []FactPair {
	return f.present(ElevatedFacts)
}

// Ordinary returns the ordinary facts present, in priority order.
func (f CanonicalFacts) Ordinary() []FactPair {
	return f.present(OrdinaryFacts)
}

func (f CanonicalFacts) present(names []string) []FactPair {
	out := make([]FactPair, 0, len(names))
	for _, name := range names {
		if value, ok := f[name]; ok && value != "" {
			out = append(out, FactPair{Name: name, Value: value})
		}
	}
	return out
}

// Merge returns the union of f and inbound. Inbound values win on shared
// keys and keys absent from inbound are kept.
func (f CanonicalFacts) Merge(inbound CanonicalFacts) CanonicalFacts {
	out := make(CanonicalFacts, len(f)+len(inbound))
	for name, value := range f {
		out[name] = value
	}
	for name, value := range inbound {
		if value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

// Names returns the fact names in priority order.
func (f CanonicalFacts) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, iok := factPriority[names[i]]
		pj, jok := factPriority[names[j]]
		if iok != jok {
			return iok
		}
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}

// ToMap converts the set to the JSON column representation.
func (f CanonicalFacts) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for name, value := range f {
		out[name] = value
	}
	return out
}

// CanonicalFactsFromMap reads canonical facts back out of a JSON column.
// Non-string and empty values are skipped.
func CanonicalFactsFromMap(raw map[string]interface{}) CanonicalFacts {
	out := make(CanonicalFacts, len(raw))
	for name, value := range raw {
		str, ok := value.(string)
		if !ok {
			continue
		}
		str = strings.TrimSpace(str)
		if str == "" {
			continue
		}
		out[name] = str
	}
	return out
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HostView is the external representation of a host. Canonical facts are
// lifted to top-level keys and are null when the host does not carry them.
type HostView struct {
	ID             uuid.UUID
	Account        string
	DisplayName    string
	AnsibleHost    string
	CanonicalFacts CanonicalFacts
	Facts          map[string]interface{}
	Tags           map[string]interface{}
	SystemProfile  map[string]interface{}
	Reporter       string
	StaleTimestamp *time.Time
	Created        time.Time
	Updated        time.Time
}

func NewHostView(h Host) HostView {
	return HostView{
		ID:             h.ID,
		Account:        h.Account,
		DisplayName:    h.DisplayName,
		AnsibleHost:    h.AnsibleHost,
		CanonicalFacts: h.CanonicalFactSet(),
		Facts:          h.Facts,
		Tags:           h.Tags,
		SystemProfile:  h.SystemProfile,
		Reporter:       h.Reporter,
		StaleTimestamp: h.StaleTimestamp,
		Created:        h.CreatedOn,
		Updated:        h.ModifiedOn,
	}
}

func NewHostViews(hosts []Host) []HostView {
	out := make([]HostView, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, NewHostView(h))
	}
	return out
}

func (v HostView) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"id":              v.ID,
		"account":         v.Account,
		"display_name":    v.DisplayName,
		"ansible_host":    v.AnsibleHost,
		"facts":           emptyIfNil(v.Facts),
		"tags":            emptyIfNil(v.Tags),
		"system_profile":  emptyIfNil(v.SystemProfile),
		"reporter":        v.Reporter,
		"stale_timestamp": v.StaleTimestamp,
		"created":         v.Created.UTC().Format(time.RFC3339Nano),
		"updated":         v.Updated.UTC().Format(time.RFC3339Nano),
	}
	for _, name := range append(append([]string{}, ElevatedFacts...), OrdinaryFacts...) {
		if value, ok := v.CanonicalFacts[name]; ok {
			out[name] = value
		} else {
			out[name] = nil
		}
	}
	return json.Marshal(out)
}

func emptyIfNil(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

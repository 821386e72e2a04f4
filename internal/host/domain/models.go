package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Host struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Account        string            `gorm:"not null;index" json:"account"`
	DisplayName    string            `gorm:"column:display_name" json:"display_name"`
	AnsibleHost    string            `gorm:"column:ansible_host" json:"ansible_host"`
	CanonicalFacts datatypes.JSONMap `gorm:"column:canonical_facts;not null" json:"canonical_facts"`
	Facts          datatypes.JSONMap `gorm:"column:facts" json:"facts"`
	Tags           datatypes.JSONMap `gorm:"column:tags" json:"tags"`
	SystemProfile  datatypes.JSONMap `gorm:"column:system_profile_facts" json:"system_profile"`
	Reporter       string            `gorm:"column:reporter" json:"reporter"`
	StaleTimestamp *time.Time        `gorm:"column:stale_timestamp" json:"stale_timestamp"`
	CreatedOn      time.Time         `gorm:"column:created_on;not null" json:"created"`
	ModifiedOn     time.Time         `gorm:"column:modified_on;not null;index" json:"updated"`
}

func (Host) TableName() string {
	return "hosts"
}

// CanonicalFactSet returns the typed canonical facts of the host.
func (h *Host) CanonicalFactSet() CanonicalFacts {
	if h == nil {
		return CanonicalFacts{}
	}
	return CanonicalFactsFromMap(h.CanonicalFacts)
}

// HostRecord is an inbound host as produced by reporters.
type HostRecord struct {
	Account               string                 `json:"account" validate:"required,max=10"`
	DisplayName           string                 `json:"display_name" validate:"omitempty,max=200"`
	AnsibleHost           string                 `json:"ansible_host" validate:"omitempty,max=255"`
	InsightsID            string                 `json:"insights_id" validate:"omitempty,uuid"`
	SubscriptionManagerID string                 `json:"subscription_manager_id" validate:"omitempty,uuid"`
	BIOSUUID              string                 `json:"bios_uuid" validate:"omitempty,uuid"`
	FQDN                  string                 `json:"fqdn" validate:"omitempty,max=255"`
	MACAddresses          string                 `json:"mac_addresses" validate:"omitempty,max=255"`
	IPAddresses           string                 `json:"ip_addresses" validate:"omitempty,max=255"`
	RHELMachineID         string                 `json:"rhel_machine_id" validate:"omitempty,uuid"`
	SatelliteID           string                 `json:"satellite_id" validate:"omitempty,max=255"`
	ProviderID            string                 `json:"provider_id" validate:"omitempty,max=500"`
	ProviderType          string                 `json:"provider_type" validate:"omitempty,max=50"`
	Reporter              string                 `json:"reporter" validate:"omitempty,max=255"`
	StaleTimestamp        *time.Time             `json:"stale_timestamp"`
	Facts                 map[string]interface{} `json:"facts"`
	Tags                  map[string]interface{} `json:"tags"`
	SystemProfile         map[string]interface{} `json:"system_profile"`

	// PlatformMetadata travels with the record to the emitted event.
	PlatformMetadata map[string]interface{} `json:"-" validate:"-"`
}

// Normalize trims surrounding whitespace from every string field.
func (r *HostRecord) Normalize() {
	r.Account = strings.TrimSpace(r.Account)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.AnsibleHost = strings.TrimSpace(r.AnsibleHost)
	r.InsightsID = strings.TrimSpace(r.InsightsID)
	r.SubscriptionManagerID = strings.TrimSpace(r.SubscriptionManagerID)
	r.BIOSUUID = strings.TrimSpace(r.BIOSUUID)
	r.FQDN = strings.TrimSpace(r.FQDN)
	r.MACAddresses = strings.TrimSpace(r.MACAddresses)
	r.IPAddresses = strings.TrimSpace(r.IPAddresses)
	r.RHELMachineID = strings.TrimSpace(r.RHELMachineID)
	r.SatelliteID = strings.TrimSpace(r.SatelliteID)
	r.ProviderID = strings.TrimSpace(r.ProviderID)
	r.ProviderType = strings.TrimSpace(r.ProviderType)
	r.Reporter = strings.TrimSpace(r.Reporter)
}

// CanonicalFacts collects the non-empty canonical fact fields.
func (r HostRecord) CanonicalFacts() CanonicalFacts {
	facts := CanonicalFacts{}
	set := func(name, value string) {
		if value != "" {
			facts[name] = value
		}
	}
	set(FactInsightsID, r.InsightsID)
	set(FactSubscriptionManagerID, r.SubscriptionManagerID)
	set(FactBIOSUUID, r.BIOSUUID)
	set(FactFQDN, r.FQDN)
	set(FactMACAddresses, r.MACAddresses)
	set(FactIPAddresses, r.IPAddresses)
	set(FactRHELMachineID, r.RHELMachineID)
	set(FactSatelliteID, r.SatelliteID)
	set(FactProviderID, r.ProviderID)
	set(FactProviderType, r.ProviderType)
	return facts
}

// Metadata returns the mutable, non-identity part of the record.
func (r HostRecord) Metadata() HostMetadata {
	return HostMetadata{
		DisplayName:    r.DisplayName,
		AnsibleHost:    r.AnsibleHost,
		Reporter:       r.Reporter,
		StaleTimestamp: r.StaleTimestamp,
		Facts:          r.Facts,
		Tags:           r.Tags,
		SystemProfile:  r.SystemProfile,
	}
}

// HostMetadata is applied on top of a stored host during an update. Zero
// values leave the stored field untouched.
type HostMetadata struct {
	DisplayName    string
	AnsibleHost    string
	Reporter       string
	StaleTimestamp *time.Time
	Facts          map[string]interface{}
	Tags           map[string]interface{}
	SystemProfile  map[string]interface{}
}

// Apply merges facts and metadata into the host and stamps the modification time.
func (h *Host) Apply(facts CanonicalFacts, meta HostMetadata, now time.Time) {
	merged := h.CanonicalFactSet().Merge(facts)
	h.CanonicalFacts = datatypes.JSONMap(merged.ToMap())

	if meta.DisplayName != "" {
		h.DisplayName = meta.DisplayName
	}
	if meta.AnsibleHost != "" {
		h.AnsibleHost = meta.AnsibleHost
	}
	if meta.Reporter != "" {
		h.Reporter = meta.Reporter
	}
	if meta.StaleTimestamp != nil {
		ts := meta.StaleTimestamp.UTC()
		h.StaleTimestamp = &ts
	}
	if meta.Facts != nil {
		h.Facts = mergeJSON(h.Facts, meta.Facts)
	}
	if meta.Tags != nil {
		h.Tags = mergeJSON(h.Tags, meta.Tags)
	}
	if meta.SystemProfile != nil {
		h.SystemProfile = datatypes.JSONMap(meta.SystemProfile)
	}
	h.ModifiedOn = now
}

func mergeJSON(current datatypes.JSONMap, inbound map[string]interface{}) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range current {
		out[k] = v
	}
	for k, v := range inbound {
		out[k] = v
	}
	return out
}

// NewHost builds a host for a record that matched nothing.
func NewHost(id uuid.UUID, account string, facts CanonicalFacts, meta HostMetadata, now time.Time) *Host {
	host := &Host{
		ID:             id,
		Account:        account,
		CanonicalFacts: datatypes.JSONMap(facts.ToMap()),
		Facts:          datatypes.JSONMap{},
		Tags:           datatypes.JSONMap{},
		SystemProfile:  datatypes.JSONMap{},
		CreatedOn:      now,
	}
	host.Apply(CanonicalFacts{}, meta, now)
	if host.DisplayName == "" {
		host.DisplayName = defaultDisplayName(facts, id)
	}
	return host
}

func defaultDisplayName(facts CanonicalFacts, id uuid.UUID) string {
	if fqdn := facts[FactFQDN]; fqdn != "" {
		return fqdn
	}
	return id.String()
}

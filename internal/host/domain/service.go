package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/smallbiznis/inventory/pkg/db/pagination"
)

// Action is the outcome of ingesting a single host record.
type Action string

const (
	ActionCreate Action = "created"
	ActionUpdate Action = "updated"
)

// MatchResult is the outcome of resolving a record against stored hosts.
// A zero MatchResult means no stored host matched.
type MatchResult struct {
	Host      *Host
	MatchedBy string
}

// NoMatch is returned when no stored host shares a looked-up fact.
var NoMatch = MatchResult{}

func Matched(host *Host, fact string) MatchResult {
	return MatchResult{Host: host, MatchedBy: fact}
}

func (m MatchResult) Matched() bool {
	return m.Host != nil
}

func (m MatchResult) HostID() uuid.UUID {
	if m.Host == nil {
		return uuid.Nil
	}
	return m.Host.ID
}

// Action reports what the ingest path does with this result.
func (m MatchResult) Action() Action {
	if m.Matched() {
		return ActionUpdate
	}
	return ActionCreate
}

type AddHostResult struct {
	Host      Host   `json:"host"`
	Action    Action `json:"action"`
	MatchedBy string `json:"matched_by,omitempty"`
}

type ListHostsRequest struct {
	Account        string
	DisplayName    string
	FQDN           string
	HostnameOrID   string
	InsightsID     string
	RegisteredWith string
	BranchID       string
	OrderBy        string
	OrderHow       string
	Page           int
	PerPage        int
}

type GetHostsRequest struct {
	Account  string
	IDs      string
	BranchID string
	OrderBy  string
	OrderHow string
	Page     int
	PerPage  int
}

type ListHostsResponse struct {
	pagination.PageInfo
	Results []Host `json:"results"`
}

type Service interface {
	AddHost(context.Context, HostRecord) (AddHostResult, error)
	List(context.Context, ListHostsRequest) (ListHostsResponse, error)
	GetByIDs(context.Context, GetHostsRequest) (ListHostsResponse, error)
}

// Event is emitted after a host was created or updated.
type Event struct {
	Type             Action                 `json:"type"`
	Host             Host                   `json:"host"`
	PlatformMetadata map[string]interface{} `json:"platform_metadata,omitempty"`
}

// EventPublisher delivers host events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

var (
	ErrNoCanonicalFacts       = errors.New("invalid_canonical_facts")
	ErrInvalidFactName        = errors.New("invalid_fact_name")
	ErrInvalidFactValue       = errors.New("invalid_fact_value")
	ErrInvalidAccount         = errors.New("invalid_account")
	ErrInvalidHostID          = errors.New("invalid_host_id")
	ErrInvalidInsightsID      = errors.New("invalid_insights_id")
	ErrInvalidRegisteredWith  = errors.New("invalid_registered_with")
	ErrInvalidOrderBy         = errors.New("invalid_order_by")
	ErrInvalidOrderHow        = errors.New("invalid_order_how")
	ErrOrderHowWithoutOrderBy = errors.New("invalid_order_how_without_order_by")
	ErrInvalidPage            = pagination.ErrInvalidPage
	ErrInvalidPerPage         = pagination.ErrInvalidPerPage
	ErrInvalidHostRecord      = errors.New("invalid_host")
	ErrConflict               = errors.New("conflict")
	ErrNotFound               = errors.New("not_found")
)

// FieldError reports a single invalid field of an inbound host record.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return "invalid_" + e.Field
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidHostRecord
}

// IsValidationError reports whether err is caused by caller input rather than
// by the store or the transport.
func IsValidationError(err error) bool {
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return true
	}
	switch {
	case errors.Is(err, ErrNoCanonicalFacts),
		errors.Is(err, ErrInvalidFactName),
		errors.Is(err, ErrInvalidFactValue),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrInvalidHostID),
		errors.Is(err, ErrInvalidInsightsID),
		errors.Is(err, ErrInvalidRegisteredWith),
		errors.Is(err, ErrInvalidOrderBy),
		errors.Is(err, ErrInvalidOrderHow),
		errors.Is(err, ErrOrderHowWithoutOrderBy),
		errors.Is(err, ErrInvalidPage),
		errors.Is(err, ErrInvalidPerPage),
		errors.Is(err, ErrInvalidHostRecord):
		return true
	default:
		return false
	}
}

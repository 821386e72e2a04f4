package domain

// FilterKind selects the primary filter of a host listing.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterFQDN
	FilterDisplayName
	FilterHostnameOrID
	FilterInsightsID
)

func (k FilterKind) String() string {
	switch k {
	case FilterFQDN:
		return "fqdn"
	case FilterDisplayName:
		return "display_name"
	case FilterHostnameOrID:
		return "hostname_or_id"
	case FilterInsightsID:
		return "insights_id"
	default:
		return "none"
	}
}

// RegisteredWithInsights restricts listings to hosts carrying an insights_id.
const RegisteredWithInsights = "insights"

// HostFilter is built once per request. Only one primary filter applies;
// RegisteredWith is combined with it.
type HostFilter struct {
	Kind           FilterKind
	Value          string
	RegisteredWith string
}

// NewHostFilter picks the primary filter with precedence fqdn, display_name,
// hostname_or_id, insights_id.
func NewHostFilter(req ListHostsRequest) HostFilter {
	filter := HostFilter{RegisteredWith: req.RegisteredWith}
	switch {
	case req.FQDN != "":
		filter.Kind, filter.Value = FilterFQDN, req.FQDN
	case req.DisplayName != "":
		filter.Kind, filter.Value = FilterDisplayName, req.DisplayName
	case req.HostnameOrID != "":
		filter.Kind, filter.Value = FilterHostnameOrID, req.HostnameOrID
	case req.InsightsID != "":
		filter.Kind, filter.Value = FilterInsightsID, req.InsightsID
	}
	return filter
}

const (
	OrderByDisplayName = "display_name"
	OrderByUpdated     = "updated"

	OrderASC  = "ASC"
	OrderDESC = "DESC"
)

// Ordering is a resolved sort column and direction. Ties are broken by
// modification time, newest first, then by id descending.
type Ordering struct {
	Column string
	Desc   bool
}

// ParseOrdering validates order_by and order_how. Without order_by the
// listing is sorted by modification time, newest first.
func ParseOrdering(orderBy, orderHow string) (Ordering, error) {
	if orderHow != "" && orderHow != OrderASC && orderHow != OrderDESC {
		return Ordering{}, ErrInvalidOrderHow
	}

	switch orderBy {
	case "":
		if orderHow != "" {
			return Ordering{}, ErrOrderHowWithoutOrderBy
		}
		return Ordering{Column: "modified_on", Desc: true}, nil
	case OrderByUpdated:
		return Ordering{Column: "modified_on", Desc: orderHow != OrderASC}, nil
	case OrderByDisplayName:
		return Ordering{Column: "display_name", Desc: orderHow == OrderDESC}, nil
	default:
		return Ordering{}, ErrInvalidOrderBy
	}
}

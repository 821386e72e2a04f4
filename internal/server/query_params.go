package server

import (
	"strconv"
	"strings"

	"github.com/smallbiznis/inventory/pkg/db/pagination"
)

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parsePaging leaves absent values at zero so the service applies its
// defaults, and rejects explicit values below one.
func parsePaging(page, perPage string) (int, int, error) {
	p, err := parseOptionalInt(page)
	if err != nil || (p != nil && *p < 1) {
		return 0, 0, pagination.ErrInvalidPage
	}
	pp, err := parseOptionalInt(perPage)
	if err != nil || (pp != nil && *pp < 1) {
		return 0, 0, pagination.ErrInvalidPerPage
	}

	var outPage, outPerPage int
	if p != nil {
		outPage = *p
	}
	if pp != nil {
		outPerPage = *pp
	}
	return outPage, outPerPage, nil
}

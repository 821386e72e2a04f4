package pagination

import (
	"errors"
	"math"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 50
	MaxPerPage     = 100
)

var (
	ErrInvalidPage    = errors.New("invalid_page")
	ErrInvalidPerPage = errors.New("invalid_per_page")
)

type Pagination struct {
	Page    int `form:"page"`
	PerPage int `form:"per_page"`
}

type PageInfo struct {
	Count   int   `json:"count"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}

// Normalize fills defaults for zero values and rejects out of range input.
func (p Pagination) Normalize() (Pagination, error) {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.PerPage == 0 {
		p.PerPage = DefaultPerPage
	}
	if p.Page < 1 {
		return Pagination{}, ErrInvalidPage
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		return Pagination{}, ErrInvalidPerPage
	}
	// the offset must fit in an int
	if p.Page-1 > math.MaxInt/p.PerPage {
		return Pagination{}, ErrInvalidPage
	}
	return p, nil
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

func (p Pagination) Limit() int {
	return p.PerPage
}

func BuildPageInfo(p Pagination, count int, total int64) PageInfo {
	return PageInfo{
		Count:   count,
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   total,
	}
}

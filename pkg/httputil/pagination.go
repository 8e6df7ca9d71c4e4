package httputil

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	// StatusAll disables status filtering on nested listings
	StatusAll = "all"
	// MaxPageLimit caps the page size a client may request
	MaxPageLimit = 100
	// MaxPage bounds the page number so the row offset cannot overflow
	MaxPage = 1_000_000
)

// Filter is the status and page window of a nested listing
type Filter struct {
	Status string
	Page   int
	Limit  int
}

// Offset returns the number of rows to skip
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// StatusFilter returns the status to filter by, or "" for all
func (f Filter) StatusFilter() string {
	if f.Status == StatusAll {
		return ""
	}
	return f.Status
}

// Normalize applies defaults and bounds in place
func (f *Filter) Normalize(defaultLimit int) {
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	if f.Status == "" {
		f.Status = StatusAll
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
}

// ParseFilter reads status, page and limit query parameters
func ParseFilter(r *http.Request, defaultLimit int, allowedStatuses ...string) (Filter, error) {
	page, err := ParseQueryInt(r, "page", 1)
	if err != nil {
		return Filter{}, err
	}
	if page > MaxPage {
		return Filter{}, fmt.Errorf("page must not exceed %d", MaxPage)
	}
	limit, err := ParseQueryInt(r, "limit", defaultLimit)
	if err != nil {
		return Filter{}, err
	}

	f := Filter{
		Status: ParseQueryString(r, "status", StatusAll),
		Page:   page,
		Limit:  limit,
	}
	f.Normalize(defaultLimit)

	if f.Status != StatusAll && len(allowedStatuses) > 0 {
		ok := false
		for _, s := range allowedStatuses {
			if s == f.Status {
				ok = true
				break
			}
		}
		if !ok {
			return Filter{}, fmt.Errorf("invalid status filter: %s", f.Status)
		}
	}
	return f, nil
}

// PageMeta describes the returned page
type PageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Paginated is the envelope of a paginated listing
type Paginated[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// NewPaginated builds an envelope; data is never serialized as null
func NewPaginated[T any](data []T, f Filter, total int) Paginated[T] {
	if data == nil {
		data = []T{}
	}
	return Paginated[T]{
		Data: data,
		Meta: PageMeta{Page: f.Page, Limit: f.Limit, Total: total},
	}
}

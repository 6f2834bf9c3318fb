package handler

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads ?limit and ?offset, clamping out-of-range values
// instead of rejecting the request.
func ParsePagination(r *http.Request) PaginationParams {
	q := r.URL.Query()
	p := PaginationParams{Limit: DefaultLimit}

	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.Limit = min(n, MaxLimit)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		p.Offset = n
	}
	return p
}

// HasMore reports whether rows remain past this page.
func (p PaginationParams) HasMore(total int) bool {
	return p.Offset+p.Limit < total
}

package api

import (
	"net/http"
	"strconv"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// PaginationParams holds parsed limit/offset query parameters.
type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination extracts limit/offset parameters from the request.
// Defaults: limit=100, offset=0. Maximum limit is 1000.
func ParsePagination(r *http.Request) PaginationParams {
	p := PaginationParams{
		Limit: defaultLimit,
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
			if p.Limit > maxLimit {
				p.Limit = maxLimit
			}
		}
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}

	return p
}

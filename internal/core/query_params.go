// internal/core/query_params.go
package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Default and limit constants for pagination
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ListQueryOptions holds parsed query parameters for paged list endpoints
type ListQueryOptions struct {
	// Pagination
	Page  int
	Limit int

	// Filters used by the user directory
	Search string
	Role   string
	Status string // "active", "inactive" or empty
}

// Offset returns the row offset for the requested page.
func (o *ListQueryOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// ParseListQueryOptions extracts pagination and directory filters from query parameters.
// Returns the parsed options and any validation error.
func ParseListQueryOptions(queryParams url.Values, defaultLimit int) (*ListQueryOptions, error) {
	opts := &ListQueryOptions{
		Page:  1,
		Limit: defaultLimit,
	}

	// Parse page
	if pageStr := queryParams.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, fmt.Errorf("invalid 'page' parameter: must be an integer")
		}
		if page < 1 {
			return nil, fmt.Errorf("invalid 'page' parameter: must be at least 1")
		}
		opts.Page = page
	}

	// Parse limit
	if limitStr := queryParams.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid 'limit' parameter: must be an integer")
		}
		if limit < 1 {
			return nil, fmt.Errorf("invalid 'limit' parameter: must be at least 1")
		}
		if limit > MaxLimit {
			return nil, fmt.Errorf("invalid 'limit' parameter: maximum is %d", MaxLimit)
		}
		opts.Limit = limit
	}

	opts.Search = strings.TrimSpace(queryParams.Get("search"))
	opts.Role = strings.TrimSpace(queryParams.Get("role"))

	if status := strings.ToLower(strings.TrimSpace(queryParams.Get("status"))); status != "" {
		if status != "active" && status != "inactive" {
			return nil, fmt.Errorf("invalid 'status' parameter: must be 'active' or 'inactive'")
		}
		opts.Status = status
	}

	return opts, nil
}

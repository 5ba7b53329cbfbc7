// Package repository provides the data access layer for sessions and the
// tool call audit log.
package repository

// Pagination holds pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// DefaultLimit is the default number of items per page.
const DefaultLimit = 50

// MaxLimit is the maximum allowed items per page.
const MaxLimit = 500

// NewPagination creates pagination with validated limits.
func NewPagination(limit, offset int) Pagination {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// Page is one slice of a larger result set.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

func newPage[T any](items []T, total int64, p Pagination) Page[T] {
	return Page[T]{
		Items:   items,
		Total:   total,
		HasMore: p.Offset+len(items) < int(total),
	}
}

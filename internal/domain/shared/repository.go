package shared

import "strings"

// Filter selects one page of an ordered listing. Page and PageSize of zero
// mean "everything".
type Filter struct {
	Page     int
	PageSize int
	OrderDir string // asc or desc
}

// Offset returns the number of rows before the page
func (f Filter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Paged reports whether the filter limits the result
func (f Filter) Paged() bool {
	return f.Page > 0 && f.PageSize > 0
}

// Descending reports whether newest rows come first
func (f Filter) Descending() bool {
	return strings.EqualFold(f.OrderDir, "desc")
}

// Paginated is one page of items plus the size of the whole listing
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated wraps items. TotalPages is zero when pageSize is not positive.
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	p := Paginated[T]{Items: items, Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		p.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return p
}

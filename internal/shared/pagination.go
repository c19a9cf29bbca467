package shared

import "strconv"

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// PageFromQuery parses a 1-based page number, treating anything invalid as
// the first page.
func PageFromQuery(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := (total + perPage - 1) / perPage
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset is the number of rows before this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Prev returns the previous page number, or 0 on the first page.
func (p Pagination) Prev() int {
	if p.Page <= 1 {
		return 0
	}
	return p.Page - 1
}

// Next returns the next page number, or 0 on the last page.
func (p Pagination) Next() int {
	if p.Page >= p.TotalPages {
		return 0
	}
	return p.Page + 1
}

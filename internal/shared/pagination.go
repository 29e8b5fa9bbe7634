package shared

import "math"

// Pagination mirrors the paging metadata returned by the invoice API.
type Pagination struct {
	TotalItems   int `json:"totalItems"`
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{TotalItems: total, CurrentPage: page, TotalPages: totalPages, ItemsPerPage: perPage}
}

// Offset returns the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.CurrentPage - 1) * p.ItemsPerPage
}

// HasNext reports whether a later page exists.
func (p Pagination) HasNext() bool {
	return p.CurrentPage < p.TotalPages
}

// Package paging holds the page arithmetic shared by every listing
// operation. Pages are 1-based: the first page is 1.
package paging

import (
	"fmt"

	"github.com/kestrelgrid/device-inventory/pkg/inverr"
)

// Unlimited disables pagination: no LIMIT/OFFSET is applied and the
// computed total page count is zero. Any page size <= 0 means unlimited.
const Unlimited = -1

// Meta is the page metadata attached to a listing result.
type Meta struct {
	Page            int
	PageSize        int
	TotalRecords    int
	TotalPages      int
	HasPreviousPage bool
	HasNextPage     bool
}

// Limited reports whether the page size asks for actual pagination.
func Limited(pageSize int) bool { return pageSize > 0 }

// Offset is the row offset of a 1-based page.
func Offset(page, pageSize int) int {
	if !Limited(pageSize) || page < 1 {
		return 0
	}
	return (page - 1) * pageSize
}

// TotalPages is ceil(totalRecords/pageSize), or 0 for the unlimited
// sentinel.
func TotalPages(pageSize, totalRecords int) int {
	if !Limited(pageSize) {
		return 0
	}
	return (totalRecords + pageSize - 1) / pageSize
}

// Validate rejects pages outside the computed range. It must be called
// with the total record count of the identically scoped count query.
func Validate(page, pageSize, totalRecords int) error {
	if page < 1 {
		return inverr.NewValidation(fmt.Sprintf("page must be >= 1, got %d", page))
	}
	if !Limited(pageSize) {
		return nil
	}
	totalPages := TotalPages(pageSize, totalRecords)
	if totalPages == 0 {
		if page > 1 {
			return inverr.NewValidation(fmt.Sprintf("page %d is past the last page (0 pages)", page))
		}
		return nil
	}
	if page > totalPages {
		return inverr.NewValidation(fmt.Sprintf("page %d is past the last page (%d pages)", page, totalPages))
	}
	return nil
}

// Compute builds the page metadata for a validated page.
func Compute(page, pageSize, totalRecords int) Meta {
	totalPages := TotalPages(pageSize, totalRecords)
	return Meta{
		Page:            page,
		PageSize:        pageSize,
		TotalRecords:    totalRecords,
		TotalPages:      totalPages,
		HasPreviousPage: page > 1,
		HasNextPage:     totalPages > page,
	}
}

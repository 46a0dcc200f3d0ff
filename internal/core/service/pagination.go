package service

import (
	"math"

	"github.com/reuf/lending-system/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxPageNumber    = math.MaxInt / maxPageLimit
)

// normalizePage clamps pagination input: page starts at 1 and is capped so
// the skip offset fits an int, limit defaults to 20 and is capped at 100.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPageNumber {
		page = maxPageNumber
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func newPage[T any](items []T, total int64, page, limit int) *ports.Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return &ports.Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pages,
	}
}

package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/shelby-app/shelby/internal/validation"
)

// Sort orders accepted by list operations.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Pagination limits.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination selects a window of a list operation. A zero value asks for the
// first page in the entity's default order.
type Pagination struct {
	Offset  int
	Limit   int
	SortKey string
	Order   SortOrder
}

func (p Pagination) normalized(sortable []string) (Pagination, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.SortKey == "" {
		p.SortKey = sortable[0]
	}
	if p.Order == "" {
		p.Order = SortDescending
	}

	v := validation.Violations{}
	validation.OneOf("sort_key", p.SortKey, sortable, v)
	validation.OneOf("sort_order", string(p.Order), []string{string(SortAscending), string(SortDescending)}, v)
	if err := violationsToError(v); err != nil {
		return Pagination{}, err
	}
	return p, nil
}

// listPage fetches one page plus one extra row to learn whether a next page
// exists. sortable whitelists the columns a caller may order by; anything
// else is a validation error, never raw SQL.
func listPage[T any](tx *gorm.DB, p Pagination, sortable []string) ([]T, bool, bool, error) {
	p, err := p.normalized(sortable)
	if err != nil {
		return nil, false, false, err
	}

	var rows []T
	order := fmt.Sprintf("%q %s", p.SortKey, map[SortOrder]string{SortAscending: "ASC", SortDescending: "DESC"}[p.Order])
	if err := tx.Order(order).Offset(p.Offset).Limit(p.Limit + 1).Find(&rows).Error; err != nil {
		return nil, false, false, fmt.Errorf("list: %w", err)
	}

	hasNext := len(rows) > p.Limit
	if hasNext {
		rows = rows[:p.Limit]
	}
	return rows, p.Offset > 0, hasNext, nil
}

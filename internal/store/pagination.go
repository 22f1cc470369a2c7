package store

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

// ListParams is the caller-supplied shape of a paginated list
// request (spec.md §4.1): an equality filter set, an optional sort
// column/direction, and the usual offset/limit pair.
type ListParams struct {
	Filters map[string]interface{}
	OrderBy string
	Desc    bool
	Offset  int
	Limit   int
}

// ListResult is the envelope every paginated endpoint returns.
type ListResult[T any] struct {
	Items      []T  `json:"items"`
	Offset     int  `json:"offset"`
	MaxLimit   int  `json:"max_limit"`
	Count      int  `json:"count"`
	TotalCount int  `json:"total_count"`
	HasMore    bool `json:"has_more"`
}

var statementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Paginate runs a filtered, ordered, limited query against table and
// scans the rows into T, then runs a matching COUNT(*) query for the
// total so the caller can report has_more. limit is clamped to
// maxLimit regardless of what the caller asked for.
func Paginate[T any](d *DB, table string, p ListParams, maxLimit, defaultLimit int) (*ListResult[T], error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	where := sq.Eq{}
	for col, val := range p.Filters {
		where[col] = val
	}

	countBuilder := statementBuilder.Select("COUNT(*)").From(table)
	if len(where) > 0 {
		countBuilder = countBuilder.Where(where)
	}
	countSQL, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "store: failed to build count query")
	}

	var totalCount int64
	if err := d.gorm.Raw(countSQL, countArgs...).Scan(&totalCount).Error; err != nil {
		return nil, errors.Wrapf(err, "store: count query failed for table %s", table)
	}

	listBuilder := statementBuilder.Select("*").From(table)
	if len(where) > 0 {
		listBuilder = listBuilder.Where(where)
	}
	if p.OrderBy != "" {
		dir := "ASC"
		if p.Desc {
			dir = "DESC"
		}
		listBuilder = listBuilder.OrderBy(p.OrderBy + " " + dir)
	}
	listBuilder = listBuilder.Limit(uint64(limit)).Offset(uint64(offset))

	listSQL, listArgs, err := listBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "store: failed to build list query")
	}

	items := make([]T, 0, limit)
	if err := d.gorm.Raw(listSQL, listArgs...).Scan(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "store: list query failed for table %s", table)
	}

	return &ListResult[T]{
		Items:      items,
		Offset:     offset,
		MaxLimit:   maxLimit,
		Count:      len(items),
		TotalCount: int(totalCount),
		HasMore:    int64(offset+len(items)) < totalCount,
	}, nil
}

package persistence

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/sortspec"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/pkg/paging"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// listSpec describes the listing shape of one entity: the hub table, the
// optional current-satellite join used only when a sort column needs it,
// and the static sort registry.
type listSpec struct {
	hubFrom  string
	keyCol   string
	satJoin  string
	registry *sortspec.Registry
}

// countSQL builds the count query. It is scoped identically to the
// listing query: plain hub rows, no filters.
func (ls listSpec) countSQL() (string, []any, error) {
	return psql.Select("count(*)").From(ls.hubFrom).ToSql()
}

// listSQL builds the key-listing query. Sorting by a satellite attribute
// joins the current satellite row; at most one per hub key is open, so
// the join cannot fan out. Rows are hydrated afterwards by key.
func (ls listSpec) listSQL(opts types.ListOptions) (string, []any, error) {
	orderBy, needsSatellite, err := ls.registry.OrderBy(opts.SortColumns, opts.SortDirections)
	if err != nil {
		return "", nil, err
	}

	q := psql.Select(ls.keyCol).From(ls.hubFrom)
	if needsSatellite && ls.satJoin != "" {
		q = q.LeftJoin(ls.satJoin)
	}
	if len(orderBy) > 0 {
		q = q.OrderBy(orderBy...)
	}
	if paging.Limited(opts.PageSize) {
		q = q.Limit(uint64(opts.PageSize)).Offset(uint64(paging.Offset(opts.Page, opts.PageSize)))
	}
	return q.ToSql()
}

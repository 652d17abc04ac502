// Package sortspec resolves logical sort-column names to SQL expressions
// through static per-entity registries built once at startup. Unknown
// names are rejected at validation time; nothing is probed by reflection.
package sortspec

import (
	"fmt"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/pkg/inverr"
)

// Column is one resolvable sort target. NeedsSatellite marks columns that
// require the listing query to join the entity's satellite table.
type Column struct {
	Expr           string
	NeedsSatellite bool
}

// Registry maps logical field names of one entity to columns. Hub columns
// shadow satellite columns of the same name: resolution tries the hub
// projection first.
type Registry struct {
	entity string
	cols   map[string]Column
}

// New builds the registry for an entity. Keys are logical field names,
// values the qualified SQL expressions of the listing query.
func New(entity string, hub, satellite map[string]string) *Registry {
	cols := make(map[string]Column, len(hub)+len(satellite))
	for name, expr := range satellite {
		cols[name] = Column{Expr: expr, NeedsSatellite: true}
	}
	for name, expr := range hub {
		cols[name] = Column{Expr: expr}
	}
	return &Registry{entity: entity, cols: cols}
}

// Resolve returns the column for a logical field name.
func (r *Registry) Resolve(name string) (Column, error) {
	c, ok := r.cols[name]
	if !ok {
		return Column{}, inverr.NewProcessing(fmt.Sprintf("%s has no attribute %s", r.entity, name))
	}
	return c, nil
}

// OrderBy resolves positionally paired column/direction lists into ORDER BY
// expressions and reports whether any of them needs the satellite join.
func (r *Registry) OrderBy(columns, directions []string) ([]string, bool, error) {
	if len(columns) != len(directions) {
		return nil, false, inverr.NewValidation("the sort column and direction lists must have the same length")
	}

	exprs := make([]string, 0, len(columns))
	needsSatellite := false
	for i, name := range columns {
		c, err := r.Resolve(name)
		if err != nil {
			return nil, false, err
		}
		dir := types.SortAsc
		if directions[i] == types.SortDesc {
			dir = types.SortDesc
		}
		exprs = append(exprs, c.Expr+" "+dir)
		needsSatellite = needsSatellite || c.NeedsSatellite
	}
	return exprs, needsSatellite, nil
}

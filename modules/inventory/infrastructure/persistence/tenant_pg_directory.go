package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
)

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TenantPGDirectory reads the shared tenant registry in the public schema.
// Rows are created out-of-band; this directory never writes.
type TenantPGDirectory struct {
	q queryRower
}

var _ ports.TenantDirectory = (*TenantPGDirectory)(nil)

func NewTenantPGDirectory(q queryRower) *TenantPGDirectory {
	return &TenantPGDirectory{q: q}
}

func (d *TenantPGDirectory) Lookup(ctx context.Context, identifier string) (types.Tenant, bool, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return types.Tenant{}, false, nil
	}

	var t types.Tenant
	err := d.q.QueryRow(ctx, `
SELECT id::text, name, header_alias, hostname, schema_name
FROM public.tenants
WHERE header_alias = $1 OR hostname = $1
LIMIT 1
`, identifier).Scan(&t.ID, &t.Name, &t.HeaderAlias, &t.Hostname, &t.SchemaName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Tenant{}, false, nil
		}
		return types.Tenant{}, false, err
	}

	if _, err := uuid.Parse(t.ID); err != nil {
		return types.Tenant{}, false, fmt.Errorf("tenant directory: malformed tenant id %q: %w", t.ID, err)
	}
	return t, true, nil
}

// Package services is the operation facade of the inventory core. Every
// public operation resolves the caller's tenant to a schema before any
// storage work, delegates to the schema-scoped stores and assembles the
// page envelope for listings.
package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/pkg/inverr"
)

// TenantResolver maps caller-supplied tenant identifiers to a tenant
// record. The header alias and the hostname are looked up independently;
// if both resolve they must agree, otherwise the request is treated as
// unresolvable rather than guessing.
type TenantResolver struct {
	dir ports.TenantDirectory
	log *zap.Logger
}

func NewTenantResolver(dir ports.TenantDirectory, log *zap.Logger) *TenantResolver {
	return &TenantResolver{dir: dir, log: log}
}

func (r *TenantResolver) Resolve(ctx context.Context, info types.TenantInfo) (types.Tenant, error) {
	var (
		byHeader types.Tenant
		headerOK bool
	)
	if info.Header != "" {
		t, ok, err := r.dir.Lookup(ctx, info.Header)
		if err != nil {
			return types.Tenant{}, err
		}
		byHeader, headerOK = t, ok
	}

	byHost, hostOK, err := r.dir.Lookup(ctx, info.Hostname)
	if err != nil {
		return types.Tenant{}, err
	}

	switch {
	case !headerOK && !hostOK:
		return types.Tenant{}, inverr.NewTenantNotFound()
	case headerOK && hostOK && byHeader.SchemaName != byHost.SchemaName:
		r.log.Warn("tenant identifiers resolve to different schemas",
			zap.String("header", info.Header),
			zap.String("hostname", info.Hostname))
		return types.Tenant{}, inverr.NewTenantNotFound()
	case headerOK:
		return byHeader, nil
	default:
		return byHost, nil
	}
}

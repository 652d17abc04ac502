package server

import (
	"context"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
)

type tenantInfoCtxKey struct{}

func withTenantInfo(ctx context.Context, info types.TenantInfo) context.Context {
	return context.WithValue(ctx, tenantInfoCtxKey{}, info)
}

func tenantInfo(ctx context.Context) types.TenantInfo {
	info, _ := ctx.Value(tenantInfoCtxKey{}).(types.TenantInfo)
	return info
}

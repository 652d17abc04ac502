// Package ports declares the storage interfaces the service layer depends
// on. Every method is scoped to one already-resolved tenant schema and
// runs inside its own transaction.
package ports

import (
	"context"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
)

// SiteStore persists site hubs, their satellite history and the geography
// link bundle.
type SiteStore interface {
	Create(ctx context.Context, schema string, site types.Site, origin string) error
	Get(ctx context.Context, schema string, siteKey string) (types.SiteDetail, bool, error)
	List(ctx context.Context, schema string, opts types.ListOptions) ([]types.SiteDetail, int, error)
	Edit(ctx context.Context, schema string, siteKey string, site types.Site, origin string) (bool, error)
	Delete(ctx context.Context, schema string, siteKey string) (bool, error)
}

// SiteDeviceLinker creates and dissolves site↔device associations. Both
// operations run their multi-step checks inside a single transaction.
type SiteDeviceLinker interface {
	AddDevices(ctx context.Context, schema string, siteKey string, deviceKeys []string, origin string) error
	RemoveDevices(ctx context.Context, schema string, siteKey string, deviceKeys []string) error
}

// DeviceStore persists device hubs and the two device satellites.
type DeviceStore interface {
	Create(ctx context.Context, schema string, device types.Device, origin string) error
	Get(ctx context.Context, schema string, deviceKey string) (types.Device, bool, error)
	GetMany(ctx context.Context, schema string, deviceKeys []string) ([]types.Device, error)
	List(ctx context.Context, schema string, opts types.ListOptions) ([]types.Device, int, error)
}

// GeoEntity selects one of the four hub-only geography row families.
type GeoEntity string

const (
	GeoCountry      GeoEntity = "country"
	GeoState        GeoEntity = "state"
	GeoMunicipality GeoEntity = "municipality"
	GeoCity         GeoEntity = "city"
)

// HubRecord is the projection shared by all hub-only entities.
type HubRecord struct {
	Key  string
	Name string
}

// GeographyStore is the generic hub repository for countries, states,
// municipalities and cities.
type GeographyStore interface {
	Create(ctx context.Context, schema string, entity GeoEntity, rec HubRecord, origin string) error
	Get(ctx context.Context, schema string, entity GeoEntity, key string) (HubRecord, bool, error)
	GetByName(ctx context.Context, schema string, entity GeoEntity, name string) (HubRecord, bool, error)
	List(ctx context.Context, schema string, entity GeoEntity, opts types.ListOptions) ([]HubRecord, int, error)
}

// TenantDirectory reads the shared tenant registry. Lookup matches one
// caller-supplied identifier (header alias or hostname) against the
// directory and returns the tenant it belongs to.
type TenantDirectory interface {
	Lookup(ctx context.Context, identifier string) (types.Tenant, bool, error)
}

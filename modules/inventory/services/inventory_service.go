package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/pkg/inverr"
	"github.com/kestrelgrid/device-inventory/pkg/paging"
)

// PageEnvelope is the listing result shape returned to the API layer.
type PageEnvelope[T any] struct {
	Records         []T
	TotalRecords    int
	Page            int
	TotalPages      int
	HasPreviousPage bool
	HasNextPage     bool
}

func envelope[T any](records []T, meta paging.Meta) PageEnvelope[T] {
	return PageEnvelope[T]{
		Records:         records,
		TotalRecords:    meta.TotalRecords,
		Page:            meta.Page,
		TotalPages:      meta.TotalPages,
		HasPreviousPage: meta.HasPreviousPage,
		HasNextPage:     meta.HasNextPage,
	}
}

// isChecked reports whether an error belongs to the taxonomy that must
// always reach the caller unchanged.
func isChecked(err error) bool {
	return inverr.IsTenantNotFound(err) ||
		inverr.IsItemDoesNotExist(err) ||
		inverr.IsItemAlreadyExist(err) ||
		inverr.IsProcessing(err) ||
		inverr.IsCoordinates(err) ||
		inverr.IsValidation(err)
}

type InventoryService struct {
	resolver *TenantResolver
	sites    ports.SiteStore
	devices  ports.DeviceStore
	geo      ports.GeographyStore
	links    ports.SiteDeviceLinker
	log      *zap.Logger
}

func NewInventoryService(resolver *TenantResolver, sites ports.SiteStore, devices ports.DeviceStore, geo ports.GeographyStore, links ports.SiteDeviceLinker, log *zap.Logger) *InventoryService {
	return &InventoryService{
		resolver: resolver,
		sites:    sites,
		devices:  devices,
		geo:      geo,
		links:    links,
		log:      log,
	}
}

// CreateSite writes the site hub, the optional satellite row and, when the
// full geography bundle resolves, the geography link. The returned detail
// is the re-fetched, hydrated site.
func (s *InventoryService) CreateSite(ctx context.Context, info types.TenantInfo, site types.Site, origin string) (types.SiteDetail, error) {
	if (site.Latitude == nil) != (site.Longitude == nil) {
		return types.SiteDetail{}, inverr.NewCoordinates("latitude or longitude not defined")
	}

	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return types.SiteDetail{}, err
	}

	if err := s.sites.Create(ctx, tenant.SchemaName, site, origin); err != nil {
		return types.SiteDetail{}, err
	}

	detail, ok, err := s.sites.Get(ctx, tenant.SchemaName, site.SiteKey)
	if err != nil {
		return types.SiteDetail{}, err
	}
	if !ok {
		return types.SiteDetail{}, inverr.NewProcessing("site vanished after create")
	}
	return detail, nil
}

func (s *InventoryService) GetSite(ctx context.Context, info types.TenantInfo, siteKey string) (types.SiteDetail, bool, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return types.SiteDetail{}, false, err
	}

	detail, ok, err := s.sites.Get(ctx, tenant.SchemaName, siteKey)
	if err != nil {
		if isChecked(err) {
			return types.SiteDetail{}, false, err
		}
		s.log.Error("get site failed", zap.String("site_key", siteKey), zap.Error(err))
		return types.SiteDetail{}, false, nil
	}
	return detail, ok, nil
}

func (s *InventoryService) ListSites(ctx context.Context, info types.TenantInfo, opts types.ListOptions) (PageEnvelope[types.SiteDetail], error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return PageEnvelope[types.SiteDetail]{}, err
	}

	records, total, err := s.sites.List(ctx, tenant.SchemaName, opts)
	if err != nil {
		if isChecked(err) {
			return PageEnvelope[types.SiteDetail]{}, err
		}
		s.log.Error("list sites failed", zap.Error(err))
		return envelope([]types.SiteDetail{}, paging.Compute(opts.Page, opts.PageSize, 0)), nil
	}
	return envelope(records, paging.Compute(opts.Page, opts.PageSize, total)), nil
}

// EditSite appends a new satellite version when any attribute changed. The
// boolean is false when the site hub does not exist.
func (s *InventoryService) EditSite(ctx context.Context, info types.TenantInfo, siteKey string, site types.Site, origin string) (types.SiteDetail, bool, error) {
	if (site.Latitude == nil) != (site.Longitude == nil) {
		return types.SiteDetail{}, false, inverr.NewCoordinates("latitude or longitude not defined")
	}

	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return types.SiteDetail{}, false, err
	}

	edited, err := s.sites.Edit(ctx, tenant.SchemaName, siteKey, site, origin)
	if err != nil {
		return types.SiteDetail{}, false, err
	}
	if !edited {
		return types.SiteDetail{}, false, nil
	}

	detail, ok, err := s.sites.Get(ctx, tenant.SchemaName, siteKey)
	if err != nil {
		return types.SiteDetail{}, false, err
	}
	return detail, ok, nil
}

// DeleteSite closes the current satellite window. The hub row stays.
func (s *InventoryService) DeleteSite(ctx context.Context, info types.TenantInfo, siteKey string) (bool, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return false, err
	}
	return s.sites.Delete(ctx, tenant.SchemaName, siteKey)
}

// AddDevicesToSite runs the association protocol and re-fetches the site
// so the caller sees the hydrated association list.
func (s *InventoryService) AddDevicesToSite(ctx context.Context, info types.TenantInfo, siteKey string, deviceKeys []string, origin string) (types.SiteDetail, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return types.SiteDetail{}, err
	}

	if err := s.links.AddDevices(ctx, tenant.SchemaName, siteKey, deviceKeys, origin); err != nil {
		return types.SiteDetail{}, err
	}

	detail, ok, err := s.sites.Get(ctx, tenant.SchemaName, siteKey)
	if err != nil {
		return types.SiteDetail{}, err
	}
	if !ok {
		return types.SiteDetail{}, inverr.NewProcessing("site vanished after association")
	}
	return detail, nil
}

func (s *InventoryService) RemoveDevicesFromSite(ctx context.Context, info types.TenantInfo, siteKey string, deviceKeys []string) (types.SiteDetail, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return types.SiteDetail{}, err
	}

	if err := s.links.RemoveDevices(ctx, tenant.SchemaName, siteKey, deviceKeys); err != nil {
		return types.SiteDetail{}, err
	}

	detail, ok, err := s.sites.Get(ctx, tenant.SchemaName, siteKey)
	if err != nil {
		return types.SiteDetail{}, err
	}
	if !ok {
		return types.SiteDetail{}, inverr.NewProcessing("site vanished after disassociation")
	}
	return detail, nil
}

func (s *InventoryService) CreateDevice(ctx context.Context, info types.TenantInfo, device types.Device, origin string) (types.Device, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return types.Device{}, err
	}

	if err := s.devices.Create(ctx, tenant.SchemaName, device, origin); err != nil {
		return types.Device{}, err
	}

	created, ok, err := s.devices.Get(ctx, tenant.SchemaName, device.DeviceKey)
	if err != nil {
		return types.Device{}, err
	}
	if !ok {
		return types.Device{}, inverr.NewProcessing("device vanished after create")
	}
	return created, nil
}

func (s *InventoryService) GetDevice(ctx context.Context, info types.TenantInfo, deviceKey string) (types.Device, bool, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return types.Device{}, false, err
	}

	device, ok, err := s.devices.Get(ctx, tenant.SchemaName, deviceKey)
	if err != nil {
		if isChecked(err) {
			return types.Device{}, false, err
		}
		s.log.Error("get device failed", zap.String("device_key", deviceKey), zap.Error(err))
		return types.Device{}, false, nil
	}
	return device, ok, nil
}

// DevicesByKeys hydrates a plain list of device keys.
func (s *InventoryService) DevicesByKeys(ctx context.Context, info types.TenantInfo, deviceKeys []string) ([]types.Device, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return nil, err
	}

	devices, err := s.devices.GetMany(ctx, tenant.SchemaName, deviceKeys)
	if err != nil {
		if isChecked(err) {
			return nil, err
		}
		s.log.Error("get devices by keys failed", zap.Error(err))
		return nil, nil
	}
	return devices, nil
}

func (s *InventoryService) ListDevices(ctx context.Context, info types.TenantInfo, opts types.ListOptions) (PageEnvelope[types.Device], error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return PageEnvelope[types.Device]{}, err
	}

	records, total, err := s.devices.List(ctx, tenant.SchemaName, opts)
	if err != nil {
		if isChecked(err) {
			return PageEnvelope[types.Device]{}, err
		}
		s.log.Error("list devices failed", zap.Error(err))
		return envelope([]types.Device{}, paging.Compute(opts.Page, opts.PageSize, 0)), nil
	}
	return envelope(records, paging.Compute(opts.Page, opts.PageSize, total)), nil
}

// Geography operations are generic over the four hub-only entities; the
// per-entity convenience wrappers live with the API layer, not here.

func (s *InventoryService) CreateGeo(ctx context.Context, info types.TenantInfo, entity ports.GeoEntity, rec ports.HubRecord, origin string) (ports.HubRecord, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return ports.HubRecord{}, err
	}

	if err := s.geo.Create(ctx, tenant.SchemaName, entity, rec, origin); err != nil {
		return ports.HubRecord{}, err
	}

	created, ok, err := s.geo.Get(ctx, tenant.SchemaName, entity, rec.Key)
	if err != nil {
		return ports.HubRecord{}, err
	}
	if !ok {
		return ports.HubRecord{}, inverr.NewProcessing(string(entity) + " vanished after create")
	}
	return created, nil
}

func (s *InventoryService) GetGeo(ctx context.Context, info types.TenantInfo, entity ports.GeoEntity, key string) (ports.HubRecord, bool, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return ports.HubRecord{}, false, err
	}

	rec, ok, err := s.geo.Get(ctx, tenant.SchemaName, entity, key)
	if err != nil {
		if isChecked(err) {
			return ports.HubRecord{}, false, err
		}
		s.log.Error("get geography failed", zap.String("entity", string(entity)), zap.String("key", key), zap.Error(err))
		return ports.HubRecord{}, false, nil
	}
	return rec, ok, nil
}

func (s *InventoryService) GeoByName(ctx context.Context, info types.TenantInfo, entity ports.GeoEntity, name string) (ports.HubRecord, bool, error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return ports.HubRecord{}, false, err
	}

	rec, ok, err := s.geo.GetByName(ctx, tenant.SchemaName, entity, name)
	if err != nil {
		if isChecked(err) {
			return ports.HubRecord{}, false, err
		}
		s.log.Error("get geography by name failed", zap.String("entity", string(entity)), zap.String("name", name), zap.Error(err))
		return ports.HubRecord{}, false, nil
	}
	return rec, ok, nil
}

func (s *InventoryService) ListGeo(ctx context.Context, info types.TenantInfo, entity ports.GeoEntity, opts types.ListOptions) (PageEnvelope[ports.HubRecord], error) {
	tenant, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		return PageEnvelope[ports.HubRecord]{}, err
	}

	records, total, err := s.geo.List(ctx, tenant.SchemaName, entity, opts)
	if err != nil {
		if isChecked(err) {
			return PageEnvelope[ports.HubRecord]{}, err
		}
		s.log.Error("list geography failed", zap.String("entity", string(entity)), zap.Error(err))
		return envelope([]ports.HubRecord{}, paging.Compute(opts.Page, opts.PageSize, 0)), nil
	}
	return envelope(records, paging.Compute(opts.Page, opts.PageSize, total)), nil
}

package server

import (
	"context"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/modules/inventory/infrastructure/persistence"
	"github.com/kestrelgrid/device-inventory/modules/inventory/services"
)

// inventory is the slice of the service surface the API layer calls.
// Declared here so handler tests can substitute a stub.
type inventory interface {
	CreateSite(ctx context.Context, info types.TenantInfo, site types.Site, origin string) (types.SiteDetail, error)
	GetSite(ctx context.Context, info types.TenantInfo, siteKey string) (types.SiteDetail, bool, error)
	ListSites(ctx context.Context, info types.TenantInfo, opts types.ListOptions) (services.PageEnvelope[types.SiteDetail], error)
	EditSite(ctx context.Context, info types.TenantInfo, siteKey string, site types.Site, origin string) (types.SiteDetail, bool, error)
	DeleteSite(ctx context.Context, info types.TenantInfo, siteKey string) (bool, error)
	AddDevicesToSite(ctx context.Context, info types.TenantInfo, siteKey string, deviceKeys []string, origin string) (types.SiteDetail, error)
	RemoveDevicesFromSite(ctx context.Context, info types.TenantInfo, siteKey string, deviceKeys []string) (types.SiteDetail, error)

	CreateDevice(ctx context.Context, info types.TenantInfo, device types.Device, origin string) (types.Device, error)
	GetDevice(ctx context.Context, info types.TenantInfo, deviceKey string) (types.Device, bool, error)
	DevicesByKeys(ctx context.Context, info types.TenantInfo, deviceKeys []string) ([]types.Device, error)
	ListDevices(ctx context.Context, info types.TenantInfo, opts types.ListOptions) (services.PageEnvelope[types.Device], error)

	CreateGeo(ctx context.Context, info types.TenantInfo, entity ports.GeoEntity, rec ports.HubRecord, origin string) (ports.HubRecord, error)
	GetGeo(ctx context.Context, info types.TenantInfo, entity ports.GeoEntity, key string) (ports.HubRecord, bool, error)
	GeoByName(ctx context.Context, info types.TenantInfo, entity ports.GeoEntity, name string) (ports.HubRecord, bool, error)
	ListGeo(ctx context.Context, info types.TenantInfo, entity ports.GeoEntity, opts types.ListOptions) (services.PageEnvelope[ports.HubRecord], error)
}

// Options lets tests and embedders swap parts of the default wiring.
// Zero-value fields fall back to Postgres-backed defaults.
type Options struct {
	Inventory inventory
	Directory ports.TenantDirectory

	// Origin stamps record_src on every row written through this handler.
	Origin string
}

// defaultTenantDirectory picks the tenant directory for the default
// wiring. public.tenants is authoritative; the static YAML registry is
// used only when TENANTS_PATH explicitly points at one, so tenants
// registered through dbtool keep resolving on a plain checkout.
func defaultTenantDirectory(pool *pgxpool.Pool, log *zap.Logger) ports.TenantDirectory {
	if os.Getenv("TENANTS_PATH") == "" {
		return persistence.NewTenantPGDirectory(pool)
	}
	reg, err := loadTenantRegistry()
	if err != nil {
		log.Warn("tenant registry file ignored", zap.Error(err))
		return persistence.NewTenantPGDirectory(pool)
	}
	return reg
}

func NewHandler(log *zap.Logger, opts Options) (http.Handler, error) {
	origin := opts.Origin
	if origin == "" {
		origin = getenvDefault("RECORD_SOURCE", "api")
	}

	inv := opts.Inventory
	if inv == nil {
		pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
		if err != nil {
			return nil, err
		}

		dir := opts.Directory
		if dir == nil {
			dir = defaultTenantDirectory(pool, log)
		}

		resolver := services.NewTenantResolver(dir, log)
		inv = services.NewInventoryService(resolver,
			persistence.NewSitePGStore(pool, log),
			persistence.NewDevicePGStore(pool, log),
			persistence.NewGeoPGStore(pool, log),
			persistence.NewLinkPGStore(pool, log),
			log)
	}

	api := &apiHandlers{inv: inv, log: log, origin: origin}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("POST /api/sites", api.createSite)
	mux.HandleFunc("GET /api/sites", api.listSites)
	mux.HandleFunc("GET /api/sites/{key}", api.getSite)
	mux.HandleFunc("PUT /api/sites/{key}", api.editSite)
	mux.HandleFunc("DELETE /api/sites/{key}", api.deleteSite)
	mux.HandleFunc("POST /api/sites/{key}/devices", api.addDevices)
	mux.HandleFunc("DELETE /api/sites/{key}/devices", api.removeDevices)

	mux.HandleFunc("POST /api/devices", api.createDevice)
	mux.HandleFunc("GET /api/devices", api.listDevices)
	mux.HandleFunc("GET /api/devices/{key}", api.getDevice)

	mux.HandleFunc("POST /api/geography/{entity}", api.createGeo)
	mux.HandleFunc("GET /api/geography/{entity}", api.listGeo)
	mux.HandleFunc("GET /api/geography/{entity}/{key}", api.getGeo)

	return tenancyMiddleware(mux), nil
}

// tenancyMiddleware attaches the caller's tenant identifiers to the
// request context. Resolution against the directory happens inside the
// service, once per operation.
func tenancyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := withTenantInfo(r.Context(), tenantInfoFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type apiHandlers struct {
	inv    inventory
	log    *zap.Logger
	origin string
}

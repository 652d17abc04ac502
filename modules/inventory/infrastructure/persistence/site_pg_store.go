package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/sortspec"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/pkg/paging"
)

var siteSortColumns = sortspec.New("site",
	map[string]string{
		"site_key":  "h.site_key",
		"name":      "h.name",
		"load_date": "h.load_date",
	},
	map[string]string{
		"latitude":  "s.latitude",
		"longitude": "s.longitude",
		"address":   "s.address",
		"zip_code":  "s.zip_code",
	},
)

var siteListSpec = listSpec{
	hubFrom:  "hub_site h",
	keyCol:   "h.site_key",
	satJoin:  "sat_site s ON s.hub_site_key = h.site_key AND s.load_date = s.load_end_date",
	registry: siteSortColumns,
}

type SitePGStore struct {
	pool pgBeginner
	log  *zap.Logger
}

var _ ports.SiteStore = (*SitePGStore)(nil)

func NewSitePGStore(pool pgBeginner, log *zap.Logger) *SitePGStore {
	return &SitePGStore{pool: pool, log: log}
}

func (s *SitePGStore) Create(ctx context.Context, schema string, site types.Site, origin string) error {
	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	now := timeNow().UTC()
	if _, err := tx.Exec(ctx, `
INSERT INTO hub_site (site_key, name, record_src, load_date)
VALUES ($1, $2, $3, $4)
`, site.SiteKey, site.Name, origin, now); err != nil {
		return err
	}

	if site.HasSatelliteData() {
		if _, err := tx.Exec(ctx, `
INSERT INTO sat_site (hub_site_key, latitude, longitude, address, zip_code, load_date, load_end_date, record_src)
VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
`, site.SiteKey, site.Latitude, site.Longitude, site.Address, site.ZipCode, now, origin); err != nil {
			return err
		}
	}

	if site.HasGeography() {
		if err := s.linkGeography(ctx, tx, site, origin, now); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// linkGeography attaches the geography bundle to a new site. All four
// names must resolve to existing hubs; otherwise no link is written at all.
func (s *SitePGStore) linkGeography(ctx context.Context, tx pgx.Tx, site types.Site, origin string, now time.Time) error {
	lookups := []struct {
		query string
		name  string
	}{
		{`SELECT country_key FROM hub_country WHERE name = $1 LIMIT 1`, *site.Country},
		{`SELECT state_key FROM hub_state WHERE name = $1 LIMIT 1`, *site.State},
		{`SELECT municipality_key FROM hub_municipality WHERE name = $1 LIMIT 1`, *site.Municipality},
		{`SELECT city_key FROM hub_city WHERE name = $1 LIMIT 1`, *site.City},
	}

	keys := make([]string, 0, len(lookups))
	for _, l := range lookups {
		var key string
		err := tx.QueryRow(ctx, l.query, l.name).Scan(&key)
		if errors.Is(err, pgx.ErrNoRows) {
			s.log.Debug("geography bundle not fully resolvable, skipping link",
				zap.String("site_key", site.SiteKey),
				zap.String("unresolved", l.name))
			return nil
		}
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	_, err := tx.Exec(ctx, `
INSERT INTO link_site_geography (hub_site_key, hub_country_key, hub_state_key, hub_municipality_key, hub_city_key, load_date, load_end_date, record_src)
VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
`, site.SiteKey, keys[0], keys[1], keys[2], keys[3], now, origin)
	return err
}

func (s *SitePGStore) Get(ctx context.Context, schema string, siteKey string) (types.SiteDetail, bool, error) {
	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return types.SiteDetail{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	detail, ok, err := s.getInTx(ctx, tx, siteKey)
	if err != nil {
		return types.SiteDetail{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.SiteDetail{}, false, err
	}
	return detail, ok, nil
}

func (s *SitePGStore) getInTx(ctx context.Context, tx pgx.Tx, siteKey string) (types.SiteDetail, bool, error) {
	var d types.SiteDetail

	err := tx.QueryRow(ctx, `
SELECT site_key, name FROM hub_site WHERE site_key = $1
`, siteKey).Scan(&d.Site.SiteKey, &d.Site.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return d, false, nil
	}
	if err != nil {
		return d, false, err
	}

	err = tx.QueryRow(ctx, `
SELECT latitude, longitude, address, zip_code
FROM sat_site
WHERE hub_site_key = $1 AND load_date = load_end_date
ORDER BY load_date DESC
LIMIT 1
`, siteKey).Scan(&d.Site.Latitude, &d.Site.Longitude, &d.Site.Address, &d.Site.ZipCode)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return d, false, err
	}

	err = tx.QueryRow(ctx, `
SELECT c.name, st.name, m.name, ci.name
FROM link_site_geography l
JOIN hub_country c ON c.country_key = l.hub_country_key
JOIN hub_state st ON st.state_key = l.hub_state_key
JOIN hub_municipality m ON m.municipality_key = l.hub_municipality_key
JOIN hub_city ci ON ci.city_key = l.hub_city_key
WHERE l.hub_site_key = $1 AND l.load_date = l.load_end_date
LIMIT 1
`, siteKey).Scan(&d.Site.Country, &d.Site.State, &d.Site.Municipality, &d.Site.City)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return d, false, err
	}

	devices, err := linkedDevices(ctx, tx, siteKey)
	if err != nil {
		return d, false, err
	}
	d.Devices = devices
	return d, true, nil
}

func (s *SitePGStore) List(ctx context.Context, schema string, opts types.ListOptions) ([]types.SiteDetail, int, error) {
	listQuery, listArgs, err := siteListSpec.listSQL(opts)
	if err != nil {
		return nil, 0, err
	}
	countQuery, countArgs, err := siteListSpec.countSQL()
	if err != nil {
		return nil, 0, err
	}

	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var total int
	if err := tx.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if err := paging.Validate(opts.Page, opts.PageSize, total); err != nil {
		return nil, 0, err
	}

	keys, err := scanKeys(ctx, tx, listQuery, listArgs)
	if err != nil {
		return nil, 0, err
	}

	details := make([]types.SiteDetail, 0, len(keys))
	for _, key := range keys {
		d, ok, err := s.getInTx(ctx, tx, key)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			details = append(details, d)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

func (s *SitePGStore) Edit(ctx context.Context, schema string, siteKey string, site types.Site, origin string) (bool, error) {
	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var hubCount int
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM hub_site WHERE site_key = $1
`, siteKey).Scan(&hubCount); err != nil {
		return false, err
	}
	if hubCount == 0 {
		return false, nil
	}

	var cur types.Site
	err = tx.QueryRow(ctx, `
SELECT latitude, longitude, address, zip_code
FROM sat_site
WHERE hub_site_key = $1 AND load_date = load_end_date
ORDER BY load_date DESC
LIMIT 1
`, siteKey).Scan(&cur.Latitude, &cur.Longitude, &cur.Address, &cur.ZipCode)

	now := timeNow().UTC()
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if !site.HasSatelliteData() {
			break
		}
		if err := insertSatSite(ctx, tx, siteKey, site, origin, now); err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	default:
		if !satSiteChanged(cur, site) {
			break
		}
		// Close the current row before appending its successor so that
		// equality-based current selection stays unambiguous.
		if _, err := tx.Exec(ctx, `
UPDATE sat_site SET load_end_date = $2
WHERE hub_site_key = $1 AND load_date = load_end_date
`, siteKey, now); err != nil {
			return false, err
		}
		if err := insertSatSite(ctx, tx, siteKey, site, origin, now); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SitePGStore) Delete(ctx context.Context, schema string, siteKey string) (bool, error) {
	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE sat_site SET load_end_date = $2
WHERE hub_site_key = $1 AND load_date = load_end_date
`, siteKey, timeNow().UTC())
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func insertSatSite(ctx context.Context, tx pgx.Tx, siteKey string, site types.Site, origin string, now time.Time) error {
	_, err := tx.Exec(ctx, `
INSERT INTO sat_site (hub_site_key, latitude, longitude, address, zip_code, load_date, load_end_date, record_src)
VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
`, siteKey, site.Latitude, site.Longitude, site.Address, site.ZipCode, now, origin)
	return err
}

func satSiteChanged(cur, next types.Site) bool {
	return !eqPtr(cur.Latitude, next.Latitude) ||
		!eqPtr(cur.Longitude, next.Longitude) ||
		!eqPtr(cur.Address, next.Address) ||
		!eqPtr(cur.ZipCode, next.ZipCode)
}

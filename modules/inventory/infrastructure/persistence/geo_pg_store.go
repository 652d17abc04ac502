package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/sortspec"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/pkg/paging"
)

// geoTable describes one hub-only geography row family. The table and key
// column names are static; nothing caller-supplied is spliced into SQL.
type geoTable struct {
	table  string
	keyCol string
	spec   listSpec
}

func newGeoTable(entity ports.GeoEntity) geoTable {
	table := "hub_" + string(entity)
	keyCol := string(entity) + "_key"
	registry := sortspec.New(string(entity),
		map[string]string{
			keyCol:      "h." + keyCol,
			"name":      "h.name",
			"load_date": "h.load_date",
		},
		nil,
	)
	return geoTable{
		table:  table,
		keyCol: keyCol,
		spec: listSpec{
			hubFrom:  table + " h",
			keyCol:   "h." + keyCol,
			registry: registry,
		},
	}
}

var geoTables = map[ports.GeoEntity]geoTable{
	ports.GeoCountry:      newGeoTable(ports.GeoCountry),
	ports.GeoState:        newGeoTable(ports.GeoState),
	ports.GeoMunicipality: newGeoTable(ports.GeoMunicipality),
	ports.GeoCity:         newGeoTable(ports.GeoCity),
}

type GeoPGStore struct {
	pool pgBeginner
	log  *zap.Logger
}

var _ ports.GeographyStore = (*GeoPGStore)(nil)

func NewGeoPGStore(pool pgBeginner, log *zap.Logger) *GeoPGStore {
	return &GeoPGStore{pool: pool, log: log}
}

func geoTableFor(entity ports.GeoEntity) (geoTable, error) {
	gt, ok := geoTables[entity]
	if !ok {
		return geoTable{}, fmt.Errorf("unknown geography entity %q", entity)
	}
	return gt, nil
}

func (s *GeoPGStore) Create(ctx context.Context, schema string, entity ports.GeoEntity, rec ports.HubRecord, origin string) error {
	gt, err := geoTableFor(entity)
	if err != nil {
		return err
	}

	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (%s, name, record_src, load_date)
VALUES ($1, $2, $3, $4)
`, gt.table, gt.keyCol), rec.Key, rec.Name, origin, timeNow().UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *GeoPGStore) Get(ctx context.Context, schema string, entity ports.GeoEntity, key string) (ports.HubRecord, bool, error) {
	gt, err := geoTableFor(entity)
	if err != nil {
		return ports.HubRecord{}, false, err
	}
	return s.lookup(ctx, schema, fmt.Sprintf(`
SELECT %s, name FROM %s WHERE %s = $1
`, gt.keyCol, gt.table, gt.keyCol), key)
}

func (s *GeoPGStore) GetByName(ctx context.Context, schema string, entity ports.GeoEntity, name string) (ports.HubRecord, bool, error) {
	gt, err := geoTableFor(entity)
	if err != nil {
		return ports.HubRecord{}, false, err
	}
	return s.lookup(ctx, schema, fmt.Sprintf(`
SELECT %s, name FROM %s WHERE name = $1 LIMIT 1
`, gt.keyCol, gt.table), name)
}

func (s *GeoPGStore) lookup(ctx context.Context, schema string, query string, arg string) (ports.HubRecord, bool, error) {
	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return ports.HubRecord{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var rec ports.HubRecord
	err = tx.QueryRow(ctx, query, arg).Scan(&rec.Key, &rec.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.HubRecord{}, false, nil
	}
	if err != nil {
		return ports.HubRecord{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ports.HubRecord{}, false, err
	}
	return rec, true, nil
}

func (s *GeoPGStore) List(ctx context.Context, schema string, entity ports.GeoEntity, opts types.ListOptions) ([]ports.HubRecord, int, error) {
	gt, err := geoTableFor(entity)
	if err != nil {
		return nil, 0, err
	}

	listQuery, listArgs, err := gt.spec.listSQL(opts)
	if err != nil {
		return nil, 0, err
	}
	countQuery, countArgs, err := gt.spec.countSQL()
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

	records := make([]ports.HubRecord, 0, len(keys))
	for _, key := range keys {
		var rec ports.HubRecord
		err := tx.QueryRow(ctx, fmt.Sprintf(`
SELECT %s, name FROM %s WHERE %s = $1
`, gt.keyCol, gt.table, gt.keyCol), key).Scan(&rec.Key, &rec.Name)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/sortspec"
	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/pkg/paging"
)

var deviceSortColumns = sortspec.New("device",
	map[string]string{
		"device_key":    "h.device_key",
		"vendor":        "h.vendor",
		"serial_number": "h.serial_number",
		"load_date":     "h.load_date",
	},
	map[string]string{
		"hostname":    "i.hostname",
		"description": "i.description",
		"status":      "i.status",
	},
)

var deviceListSpec = listSpec{
	hubFrom:  "hub_device h",
	keyCol:   "h.device_key",
	satJoin:  "sat_device_info i ON i.hub_device_key = h.device_key AND i.load_date = i.load_end_date",
	registry: deviceSortColumns,
}

// deviceHydrationColumns joins both current device satellites onto the hub.
const deviceHydrationColumns = `
SELECT d.device_key, d.vendor, d.serial_number,
       i.hostname, i.description, i.status,
       sc.cypher, sc.host_key_algorithm, sc.mac, sc.device_type
FROM hub_device d
LEFT JOIN sat_device_info i ON i.hub_device_key = d.device_key AND i.load_date = i.load_end_date
LEFT JOIN sat_device_ssh sc ON sc.hub_device_key = d.device_key AND sc.load_date = sc.load_end_date
`

type DevicePGStore struct {
	pool pgBeginner
	log  *zap.Logger
}

var _ ports.DeviceStore = (*DevicePGStore)(nil)

func NewDevicePGStore(pool pgBeginner, log *zap.Logger) *DevicePGStore {
	return &DevicePGStore{pool: pool, log: log}
}

func (s *DevicePGStore) Create(ctx context.Context, schema string, device types.Device, origin string) error {
	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	now := timeNow().UTC()
	if _, err := tx.Exec(ctx, `
INSERT INTO hub_device (device_key, vendor, serial_number, record_src, load_date)
VALUES ($1, $2, $3, $4, $5)
`, device.DeviceKey, device.Vendor, device.SerialNumber, origin, now); err != nil {
		return err
	}

	if device.HasInfoData() {
		if _, err := tx.Exec(ctx, `
INSERT INTO sat_device_info (hub_device_key, hostname, description, status, load_date, load_end_date, record_src)
VALUES ($1, $2, $3, $4, $5, $5, $6)
`, device.DeviceKey, device.Hostname, device.Description, device.Status, now, origin); err != nil {
			return err
		}
	}

	if device.HasSSHData() {
		if _, err := tx.Exec(ctx, `
INSERT INTO sat_device_ssh (hub_device_key, cypher, host_key_algorithm, mac, device_type, load_date, load_end_date, record_src)
VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
`, device.DeviceKey, device.Cypher, device.HostKeyAlgorithm, device.MAC, device.DeviceType, now, origin); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *DevicePGStore) Get(ctx context.Context, schema string, deviceKey string) (types.Device, bool, error) {
	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return types.Device{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var d types.Device
	err = tx.QueryRow(ctx, deviceHydrationColumns+`WHERE d.device_key = $1`, deviceKey).Scan(
		&d.DeviceKey, &d.Vendor, &d.SerialNumber,
		&d.Hostname, &d.Description, &d.Status,
		&d.Cypher, &d.HostKeyAlgorithm, &d.MAC, &d.DeviceType)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Device{}, false, nil
	}
	if err != nil {
		return types.Device{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Device{}, false, err
	}
	return d, true, nil
}

func (s *DevicePGStore) GetMany(ctx context.Context, schema string, deviceKeys []string) ([]types.Device, error) {
	if len(deviceKeys) == 0 {
		return nil, nil
	}

	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, deviceHydrationColumns+`WHERE d.device_key = ANY($1) ORDER BY d.device_key`, deviceKeys)
	if err != nil {
		return nil, err
	}
	devices, err := scanDevices(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return devices, nil
}

func (s *DevicePGStore) List(ctx context.Context, schema string, opts types.ListOptions) ([]types.Device, int, error) {
	listQuery, listArgs, err := deviceListSpec.listSQL(opts)
	if err != nil {
		return nil, 0, err
	}
	countQuery, countArgs, err := deviceListSpec.countSQL()
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

	devices := make([]types.Device, 0, len(keys))
	for _, key := range keys {
		var d types.Device
		err := tx.QueryRow(ctx, deviceHydrationColumns+`WHERE d.device_key = $1`, key).Scan(
			&d.DeviceKey, &d.Vendor, &d.SerialNumber,
			&d.Hostname, &d.Description, &d.Status,
			&d.Cypher, &d.HostKeyAlgorithm, &d.MAC, &d.DeviceType)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		devices = append(devices, d)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return devices, total, nil
}

// linkedDevices hydrates the devices currently associated with a site,
// inside the caller's transaction.
func linkedDevices(ctx context.Context, tx pgx.Tx, siteKey string) ([]types.Device, error) {
	rows, err := tx.Query(ctx, `
SELECT d.device_key, d.vendor, d.serial_number,
       i.hostname, i.description, i.status,
       sc.cypher, sc.host_key_algorithm, sc.mac, sc.device_type
FROM link_site_device l
JOIN hub_device d ON d.device_key = l.hub_device_key
LEFT JOIN sat_device_info i ON i.hub_device_key = d.device_key AND i.load_date = i.load_end_date
LEFT JOIN sat_device_ssh sc ON sc.hub_device_key = d.device_key AND sc.load_date = sc.load_end_date
WHERE l.hub_site_key = $1 AND l.load_date = l.load_end_date
ORDER BY d.device_key
`, siteKey)
	if err != nil {
		return nil, err
	}
	return scanDevices(rows)
}

func scanDevices(rows pgx.Rows) ([]types.Device, error) {
	defer rows.Close()

	var devices []types.Device
	for rows.Next() {
		var d types.Device
		if err := rows.Scan(&d.DeviceKey, &d.Vendor, &d.SerialNumber,
			&d.Hostname, &d.Description, &d.Status,
			&d.Cypher, &d.HostKeyAlgorithm, &d.MAC, &d.DeviceType); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

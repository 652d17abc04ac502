package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
	"github.com/kestrelgrid/device-inventory/pkg/inverr"
)

// LinkPGStore creates and dissolves site↔device associations. Each
// operation runs its existence and duplication checks and its writes
// inside a single transaction; nothing partial survives a failed check.
type LinkPGStore struct {
	pool pgBeginner
	log  *zap.Logger
}

var _ ports.SiteDeviceLinker = (*LinkPGStore)(nil)

func NewLinkPGStore(pool pgBeginner, log *zap.Logger) *LinkPGStore {
	return &LinkPGStore{pool: pool, log: log}
}

// AddDevices associates previously-unassociated devices with a site. The
// precheck is all-or-nothing: any overlap with an already-active link
// rejects the whole request. After commit the active-link count for the
// set is re-verified; a mismatch surfaces as a processing error.
//
// The precheck→insert→re-verify sequence relies on the transaction
// isolation of the storage engine; two concurrent adds for the same
// site/device pair are not guaranteed to be rejected atomically.
func (s *LinkPGStore) AddDevices(ctx context.Context, schema string, siteKey string, deviceKeys []string, origin string) error {
	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var siteCount int
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM hub_site WHERE site_key = $1
`, siteKey).Scan(&siteCount); err != nil {
		return err
	}
	if siteCount == 0 {
		return inverr.NewItemDoesNotExist(fmt.Sprintf("site %s does not exist", siteKey))
	}

	var deviceCount int
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM hub_device WHERE device_key = ANY($1)
`, deviceKeys).Scan(&deviceCount); err != nil {
		return err
	}
	if deviceCount != len(deviceKeys) {
		return inverr.NewItemCountMismatch("devices", len(deviceKeys), deviceCount)
	}

	activeCount, err := s.activeLinkCount(ctx, tx, siteKey, deviceKeys)
	if err != nil {
		return err
	}
	if activeCount > 0 {
		return inverr.NewItemAlreadyExist(activeCount)
	}

	now := timeNow().UTC()
	for _, deviceKey := range deviceKeys {
		if _, err := tx.Exec(ctx, `
INSERT INTO link_site_device (hub_site_key, hub_device_key, load_date, load_end_date, record_src)
VALUES ($1, $2, $3, $3, $4)
`, siteKey, deviceKey, now, origin); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	// Post-condition check against partial failures, on a fresh
	// transaction so it observes the committed state.
	verify, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return err
	}
	defer func() { _ = verify.Rollback(context.Background()) }()

	verifyCount, err := s.activeLinkCount(ctx, verify, siteKey, deviceKeys)
	if err != nil {
		return err
	}
	if verifyCount != len(deviceKeys) {
		s.log.Error("active link count does not match after commit",
			zap.String("site_key", siteKey),
			zap.Int("requested", len(deviceKeys)),
			zap.Int("active", verifyCount))
		return inverr.NewProcessing("couldn't add all devices to the site")
	}
	return nil
}

// RemoveDevices closes the active links between a site and the requested
// devices. Only currently-open link rows are closed; historical rows are
// left untouched.
func (s *LinkPGStore) RemoveDevices(ctx context.Context, schema string, siteKey string, deviceKeys []string) error {
	tx, err := beginSchemaTx(ctx, s.pool, schema)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var siteCount int
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM hub_site WHERE site_key = $1
`, siteKey).Scan(&siteCount); err != nil {
		return err
	}
	if siteCount == 0 {
		return inverr.NewItemDoesNotExist(fmt.Sprintf("site %s does not exist", siteKey))
	}

	var deviceCount int
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM hub_device WHERE device_key = ANY($1)
`, deviceKeys).Scan(&deviceCount); err != nil {
		return err
	}
	if deviceCount != len(deviceKeys) {
		return inverr.NewItemCountMismatch("devices", len(deviceKeys), deviceCount)
	}

	activeCount, err := s.activeLinkCount(ctx, tx, siteKey, deviceKeys)
	if err != nil {
		return err
	}
	if activeCount < len(deviceKeys) {
		return inverr.NewProcessing(fmt.Sprintf(
			"one of the devices is not associated with the site, requested %d, database returned %d",
			len(deviceKeys), activeCount))
	}

	if _, err := tx.Exec(ctx, `
UPDATE link_site_device SET load_end_date = $3
WHERE hub_site_key = $1 AND hub_device_key = ANY($2) AND load_date = load_end_date
`, siteKey, deviceKeys, timeNow().UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *LinkPGStore) activeLinkCount(ctx context.Context, tx pgx.Tx, siteKey string, deviceKeys []string) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
SELECT count(*) FROM link_site_device
WHERE hub_site_key = $1 AND hub_device_key = ANY($2) AND load_date = load_end_date
`, siteKey, deviceKeys).Scan(&count)
	return count, err
}

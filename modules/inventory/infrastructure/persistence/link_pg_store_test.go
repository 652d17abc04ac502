package persistence

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/pkg/inverr"
)

func TestAddDevicesSiteMissing(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_site": {{vals: []any{0}}},
	}}
	store := NewLinkPGStore(pool(tx), zap.NewNop())

	err := store.AddDevices(context.Background(), "tenant_acme", "s1", []string{"d1"}, "test")
	if !inverr.IsItemDoesNotExist(err) {
		t.Fatalf("expected ItemDoesNotExist, got %v", err)
	}
	if tx.execContaining("INSERT INTO link_site_device") != 0 {
		t.Fatal("link rows written despite missing site")
	}
	mustNotCommit(t, tx)
}

func TestAddDevicesDeviceCountMismatch(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_site":   {{vals: []any{1}}},
		"FROM hub_device": {{vals: []any{1}}},
	}}
	store := NewLinkPGStore(pool(tx), zap.NewNop())

	err := store.AddDevices(context.Background(), "tenant_acme", "s1", []string{"d1", "d2"}, "test")
	if !inverr.IsItemDoesNotExist(err) {
		t.Fatalf("expected ItemDoesNotExist, got %v", err)
	}
	var mismatch *inverr.ItemDoesNotExistError
	if !asType(err, &mismatch) {
		t.Fatal("expected typed mismatch error")
	}
	if mismatch.Requested != 2 || mismatch.Found != 1 {
		t.Fatalf("unexpected counts %d/%d", mismatch.Requested, mismatch.Found)
	}
	if tx.execContaining("INSERT INTO link_site_device") != 0 {
		t.Fatal("link rows written despite missing device")
	}
	mustNotCommit(t, tx)
}

func TestAddDevicesAlreadyLinked(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_site":         {{vals: []any{1}}},
		"FROM hub_device":       {{vals: []any{2}}},
		"FROM link_site_device": {{vals: []any{1}}},
	}}
	store := NewLinkPGStore(pool(tx), zap.NewNop())

	err := store.AddDevices(context.Background(), "tenant_acme", "s1", []string{"d1", "d2"}, "test")
	if !inverr.IsItemAlreadyExist(err) {
		t.Fatalf("expected ItemAlreadyExist, got %v", err)
	}
	var dup *inverr.ItemAlreadyExistError
	if !asType(err, &dup) || dup.Count != 1 {
		t.Fatalf("expected duplicate count 1, got %v", err)
	}
	mustNotCommit(t, tx)
}

func TestAddDevicesHappyPath(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_site":         {{vals: []any{1}}},
		"FROM hub_device":       {{vals: []any{2}}},
		"FROM link_site_device": {{vals: []any{0}}},
	}}
	verify := &fakeTx{rows: map[string][]stubRow{
		"FROM link_site_device": {{vals: []any{2}}},
	}}
	store := NewLinkPGStore(pool(tx, verify), zap.NewNop())

	if err := store.AddDevices(context.Background(), "tenant_acme", "s1", []string{"d1", "d2"}, "test"); err != nil {
		t.Fatal(err)
	}
	if got := tx.execContaining("INSERT INTO link_site_device"); got != 2 {
		t.Fatalf("expected 2 link inserts, got %d", got)
	}
	if !tx.committed {
		t.Fatal("insert transaction not committed")
	}
	if verify.committed {
		t.Fatal("verification transaction must not commit")
	}
}

func TestAddDevicesPostCommitMismatch(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_site":         {{vals: []any{1}}},
		"FROM hub_device":       {{vals: []any{2}}},
		"FROM link_site_device": {{vals: []any{0}}},
	}}
	verify := &fakeTx{rows: map[string][]stubRow{
		"FROM link_site_device": {{vals: []any{1}}},
	}}
	store := NewLinkPGStore(pool(tx, verify), zap.NewNop())

	err := store.AddDevices(context.Background(), "tenant_acme", "s1", []string{"d1", "d2"}, "test")
	if !inverr.IsProcessing(err) {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
}

func TestRemoveDevicesNotAllLinked(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_site":         {{vals: []any{1}}},
		"FROM hub_device":       {{vals: []any{2}}},
		"FROM link_site_device": {{vals: []any{1}}},
	}}
	store := NewLinkPGStore(pool(tx), zap.NewNop())

	err := store.RemoveDevices(context.Background(), "tenant_acme", "s1", []string{"d1", "d2"})
	if !inverr.IsProcessing(err) {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if tx.execContaining("UPDATE link_site_device") != 0 {
		t.Fatal("links closed despite failed precheck")
	}
	mustNotCommit(t, tx)
}

func TestRemoveDevicesHappyPath(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_site":         {{vals: []any{1}}},
		"FROM hub_device":       {{vals: []any{2}}},
		"FROM link_site_device": {{vals: []any{2}}},
	}}
	store := NewLinkPGStore(pool(tx), zap.NewNop())

	if err := store.RemoveDevices(context.Background(), "tenant_acme", "s1", []string{"d1", "d2"}); err != nil {
		t.Fatal(err)
	}
	if tx.execContaining("UPDATE link_site_device") != 1 {
		t.Fatal("expected one closing update")
	}
	for _, sql := range tx.execSQL {
		if contains(sql, "UPDATE link_site_device") && !contains(sql, "load_date = load_end_date") {
			t.Fatal("close must only match currently-open link rows")
		}
	}
	if !tx.committed {
		t.Fatal("transaction not committed")
	}
}

func TestRemoveDevicesSiteMissing(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_site": {{vals: []any{0}}},
	}}
	store := NewLinkPGStore(pool(tx), zap.NewNop())

	err := store.RemoveDevices(context.Background(), "tenant_acme", "missing", []string{"d1"})
	if !inverr.IsItemDoesNotExist(err) {
		t.Fatalf("expected ItemDoesNotExist, got %v", err)
	}
	mustNotCommit(t, tx)
}

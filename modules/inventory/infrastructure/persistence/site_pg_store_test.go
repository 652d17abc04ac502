package persistence

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/pkg/inverr"
)

func testSite(name string) types.Site {
	return types.Site{SiteKey: name, Name: name}
}

func withGeography(s types.Site) types.Site {
	country, state, mun, city := "Mexico", "Ciudad de Mexico", "Miguel Hidalgo", "Anzures"
	s.Country, s.State, s.Municipality, s.City = &country, &state, &mun, &city
	return s
}

func TestCreateSiteHubOnly(t *testing.T) {
	tx := &fakeTx{}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	if err := store.Create(context.Background(), "tenant_acme", testSite("m_core_site"), "test"); err != nil {
		t.Fatal(err)
	}
	if tx.execContaining("INSERT INTO hub_site") != 1 {
		t.Fatal("hub row not written")
	}
	if tx.execContaining("INSERT INTO sat_site") != 0 {
		t.Fatal("satellite written without descriptive attributes")
	}
	if tx.execContaining("INSERT INTO link_site_geography") != 0 {
		t.Fatal("geography link written without a geography bundle")
	}
	if !tx.committed {
		t.Fatal("transaction not committed")
	}
}

func TestCreateSiteWithSatellite(t *testing.T) {
	tx := &fakeTx{}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	site := testSite("s1")
	addr := "201 Main St"
	site.Address = &addr

	if err := store.Create(context.Background(), "tenant_acme", site, "test"); err != nil {
		t.Fatal(err)
	}
	if tx.execContaining("INSERT INTO sat_site") != 1 {
		t.Fatal("satellite row not written")
	}
}

func TestCreateSiteGeographyBundle(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_country":      {{vals: []any{"mx"}}},
		"FROM hub_state":        {{vals: []any{"cdmx"}}},
		"FROM hub_municipality": {{vals: []any{"mh"}}},
		"FROM hub_city":         {{vals: []any{"anz"}}},
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	if err := store.Create(context.Background(), "tenant_acme", withGeography(testSite("s1")), "test"); err != nil {
		t.Fatal(err)
	}
	if tx.execContaining("INSERT INTO link_site_geography") != 1 {
		t.Fatal("geography link not written")
	}
	if !tx.committed {
		t.Fatal("transaction not committed")
	}
}

func TestCreateSiteGeographyPartiallyResolvableSkipsLink(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"FROM hub_country":      {{vals: []any{"mx"}}},
		"FROM hub_state":        {{err: pgx.ErrNoRows}},
		"FROM hub_municipality": {{vals: []any{"mh"}}},
		"FROM hub_city":         {{vals: []any{"anz"}}},
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	if err := store.Create(context.Background(), "tenant_acme", withGeography(testSite("s1")), "test"); err != nil {
		t.Fatal(err)
	}
	if tx.execContaining("INSERT INTO link_site_geography") != 0 {
		t.Fatal("partial geography must not be linked")
	}
	if !tx.committed {
		t.Fatal("site creation must still commit without geography")
	}
}

func TestGetSiteNotFound(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"SELECT site_key, name": {{err: pgx.ErrNoRows}},
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	_, ok, err := store.Get(context.Background(), "tenant_acme", "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("absent hub reported as found")
	}
}

func TestGetSiteMinimal(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"SELECT site_key, name":    {{vals: []any{"m_core_site", "m_core_site"}}},
		"FROM sat_site":            {{err: pgx.ErrNoRows}},
		"FROM link_site_geography": {{err: pgx.ErrNoRows}},
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	detail, ok, err := store.Get(context.Background(), "tenant_acme", "m_core_site")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("site not found")
	}
	if detail.Site.Name != "m_core_site" {
		t.Fatalf("unexpected name %q", detail.Site.Name)
	}
	if detail.Site.Latitude != nil || detail.Site.Address != nil || detail.Site.Country != nil {
		t.Fatal("optional fields must be nil without satellite and geography rows")
	}
	if len(detail.Devices) != 0 {
		t.Fatal("expected no associated devices")
	}
}

func TestGetSiteWithGeographyAndDevices(t *testing.T) {
	tx := &fakeTx{
		rows: map[string][]stubRow{
			"SELECT site_key, name":    {{vals: []any{"s1", "hq"}}},
			"FROM sat_site":            {{vals: []any{19.43, -99.19, "201 Main St", "11550"}}},
			"FROM link_site_geography": {{vals: []any{"Mexico", "Ciudad de Mexico", "Miguel Hidalgo", "Anzures"}}},
		},
		results: map[string][][]any{
			"FROM link_site_device": {
				{"d1", "cisco", "SN-1", "edge-1", nil, "active", nil, nil, nil, nil},
			},
		},
	}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	detail, ok, err := store.Get(context.Background(), "tenant_acme", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("site not found")
	}
	if detail.Site.Country == nil || *detail.Site.Country != "Mexico" {
		t.Fatalf("geography not hydrated: %+v", detail.Site)
	}
	if detail.Site.City == nil || *detail.Site.City != "Anzures" {
		t.Fatalf("city not hydrated: %+v", detail.Site)
	}
	if len(detail.Devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(detail.Devices))
	}
	d := detail.Devices[0]
	if d.DeviceKey != "d1" || d.Vendor == nil || *d.Vendor != "cisco" {
		t.Fatalf("device not hydrated: %+v", d)
	}
	if d.Description != nil {
		t.Fatal("null description must stay nil")
	}
}

func TestListSitesPaginates(t *testing.T) {
	tx := &fakeTx{
		rows: map[string][]stubRow{
			"count(*)": {{vals: []any{5}}},
			"SELECT site_key, name": {
				{vals: []any{"s1", "s1"}},
				{vals: []any{"s2", "s2"}},
				{vals: []any{"s3", "s3"}},
			},
			"FROM sat_site": {
				{err: pgx.ErrNoRows}, {err: pgx.ErrNoRows}, {err: pgx.ErrNoRows},
			},
			"FROM link_site_geography": {
				{err: pgx.ErrNoRows}, {err: pgx.ErrNoRows}, {err: pgx.ErrNoRows},
			},
		},
		results: map[string][][]any{
			"SELECT h.site_key": {{"s1"}, {"s2"}, {"s3"}},
		},
	}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	details, total, err := store.List(context.Background(), "tenant_acme", types.ListOptions{Page: 1, PageSize: 3})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(details) != 3 {
		t.Fatalf("expected 3 records, got %d", len(details))
	}
	found := false
	for _, sql := range tx.querySQL {
		if contains(sql, "LIMIT 3 OFFSET 0") {
			found = true
		}
	}
	if !found {
		t.Fatalf("pagination clause missing from listing query: %v", tx.querySQL)
	}
}

func TestListSitesPageOutOfRange(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"count(*)": {{vals: []any{5}}},
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	_, _, err := store.List(context.Background(), "tenant_acme", types.ListOptions{Page: 3, PageSize: 3})
	if !inverr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(tx.querySQL) != 0 {
		t.Fatal("listing query must not run for an out-of-range page")
	}
}

func TestListSitesUnknownSortColumn(t *testing.T) {
	store := NewSitePGStore(pool(), zap.NewNop())

	_, _, err := store.List(context.Background(), "tenant_acme", types.ListOptions{
		PageSize:       -1,
		Page:           1,
		SortColumns:    []string{"bogus"},
		SortDirections: []string{"ASC"},
	})
	if !inverr.IsProcessing(err) {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
}

func TestListSitesSortLengthMismatch(t *testing.T) {
	store := NewSitePGStore(pool(), zap.NewNop())

	_, _, err := store.List(context.Background(), "tenant_acme", types.ListOptions{
		PageSize:    -1,
		Page:        1,
		SortColumns: []string{"name"},
	})
	if !inverr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEditSiteNoChangeAppendsNothing(t *testing.T) {
	addr := "201 Main St"
	tx := &fakeTx{rows: map[string][]stubRow{
		"count(*)":      {{vals: []any{1}}},
		"FROM sat_site": {{vals: []any{nil, nil, addr, nil}}},
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	site := testSite("s1")
	site.Address = &addr

	edited, err := store.Edit(context.Background(), "tenant_acme", "s1", site, "test")
	if err != nil {
		t.Fatal(err)
	}
	if !edited {
		t.Fatal("existing site reported as missing")
	}
	if tx.execContaining("INSERT INTO sat_site") != 0 {
		t.Fatal("unchanged attributes must not append a version")
	}
	if tx.execContaining("UPDATE sat_site") != 0 {
		t.Fatal("unchanged attributes must not close the current version")
	}
}

func TestEditSiteChangeClosesAndAppends(t *testing.T) {
	oldAddr, newAddr := "201 Main St", "500 Elm St"
	tx := &fakeTx{rows: map[string][]stubRow{
		"count(*)":      {{vals: []any{1}}},
		"FROM sat_site": {{vals: []any{nil, nil, oldAddr, nil}}},
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	site := testSite("s1")
	site.Address = &newAddr

	edited, err := store.Edit(context.Background(), "tenant_acme", "s1", site, "test")
	if err != nil {
		t.Fatal(err)
	}
	if !edited {
		t.Fatal("existing site reported as missing")
	}
	if tx.execContaining("UPDATE sat_site") != 1 {
		t.Fatal("previous current row must be closed")
	}
	if tx.execContaining("INSERT INTO sat_site") != 1 {
		t.Fatal("new version row must be appended")
	}
	if !tx.committed {
		t.Fatal("transaction not committed")
	}
}

func TestEditSiteFirstSatelliteVersion(t *testing.T) {
	addr := "201 Main St"
	tx := &fakeTx{rows: map[string][]stubRow{
		"count(*)":      {{vals: []any{1}}},
		"FROM sat_site": {{err: pgx.ErrNoRows}},
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	site := testSite("s1")
	site.Address = &addr

	edited, err := store.Edit(context.Background(), "tenant_acme", "s1", site, "test")
	if err != nil {
		t.Fatal(err)
	}
	if !edited {
		t.Fatal("existing site reported as missing")
	}
	if tx.execContaining("INSERT INTO sat_site") != 1 {
		t.Fatal("first version row must be appended")
	}
	if tx.execContaining("UPDATE sat_site") != 0 {
		t.Fatal("nothing to close on the first version")
	}
}

func TestEditSiteMissingHub(t *testing.T) {
	tx := &fakeTx{rows: map[string][]stubRow{
		"count(*)": {{vals: []any{0}}},
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	edited, err := store.Edit(context.Background(), "tenant_acme", "missing", testSite("missing"), "test")
	if err != nil {
		t.Fatal(err)
	}
	if edited {
		t.Fatal("missing hub reported as edited")
	}
	mustNotCommit(t, tx)
}

func TestDeleteSiteClosesCurrentWindow(t *testing.T) {
	tx := &fakeTx{execTags: map[string]pgconn.CommandTag{
		"UPDATE sat_site": pgconn.NewCommandTag("UPDATE 1"),
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	deleted, err := store.Delete(context.Background(), "tenant_acme", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("delete reported failure")
	}
	if !tx.committed {
		t.Fatal("transaction not committed")
	}
}

func TestDeleteSiteNothingCurrent(t *testing.T) {
	tx := &fakeTx{execTags: map[string]pgconn.CommandTag{
		"UPDATE sat_site": pgconn.NewCommandTag("UPDATE 0"),
	}}
	store := NewSitePGStore(pool(tx), zap.NewNop())

	deleted, err := store.Delete(context.Background(), "tenant_acme", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Fatal("delete without a current window reported success")
	}
	mustNotCommit(t, tx)
}

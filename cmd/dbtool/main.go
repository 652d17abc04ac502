// Command dbtool bootstraps and checks tenant schemas.
//
//	dbtool init-tenant --url <dsn> --schema <name>
//	dbtool register-tenant --url <dsn> --schema <name> --name <display> --alias <header> --hostname <host>
//	dbtool tenant-smoke --url <dsn> --schema <name>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <init-tenant|register-tenant|tenant-smoke> [args]")
	}

	switch os.Args[1] {
	case "init-tenant":
		initTenant(os.Args[2:])
	case "register-tenant":
		registerTenant(os.Args[2:])
	case "tenant-smoke":
		tenantSmoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

// tenantDDL creates the hub, satellite and link tables of one tenant
// schema. Satellite and link rows are current while
// load_date = load_end_date; history is kept by closed rows.
var tenantDDL = []string{
	`CREATE TABLE IF NOT EXISTS hub_site (
  site_key   text PRIMARY KEY,
  name       text NOT NULL,
  record_src text NOT NULL,
  load_date  timestamptz NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS sat_site (
  hub_site_key  text NOT NULL REFERENCES hub_site (site_key),
  latitude      double precision,
  longitude     double precision,
  address       text,
  zip_code      text,
  load_date     timestamptz NOT NULL,
  load_end_date timestamptz NOT NULL,
  record_src    text NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS sat_site_current_idx
  ON sat_site (hub_site_key) WHERE load_date = load_end_date`,
	`CREATE TABLE IF NOT EXISTS hub_device (
  device_key    text PRIMARY KEY,
  vendor        text,
  serial_number text,
  record_src    text NOT NULL,
  load_date     timestamptz NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS sat_device_info (
  hub_device_key text NOT NULL REFERENCES hub_device (device_key),
  hostname       text,
  description    text,
  status         text,
  load_date      timestamptz NOT NULL,
  load_end_date  timestamptz NOT NULL,
  record_src     text NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS sat_device_ssh (
  hub_device_key     text NOT NULL REFERENCES hub_device (device_key),
  cypher             text,
  host_key_algorithm text,
  mac                text,
  device_type        text,
  load_date          timestamptz NOT NULL,
  load_end_date      timestamptz NOT NULL,
  record_src         text NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS hub_country (
  country_key text PRIMARY KEY,
  name        text NOT NULL,
  record_src  text NOT NULL,
  load_date   timestamptz NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS hub_state (
  state_key  text PRIMARY KEY,
  name       text NOT NULL,
  record_src text NOT NULL,
  load_date  timestamptz NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS hub_municipality (
  municipality_key text PRIMARY KEY,
  name             text NOT NULL,
  record_src       text NOT NULL,
  load_date        timestamptz NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS hub_city (
  city_key   text PRIMARY KEY,
  name       text NOT NULL,
  record_src text NOT NULL,
  load_date  timestamptz NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS link_site_device (
  hub_site_key   text NOT NULL REFERENCES hub_site (site_key),
  hub_device_key text NOT NULL REFERENCES hub_device (device_key),
  load_date      timestamptz NOT NULL,
  load_end_date  timestamptz NOT NULL,
  record_src     text NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS link_site_device_current_idx
  ON link_site_device (hub_site_key, hub_device_key) WHERE load_date = load_end_date`,
	`CREATE TABLE IF NOT EXISTS link_site_geography (
  hub_site_key         text NOT NULL REFERENCES hub_site (site_key),
  hub_country_key      text NOT NULL REFERENCES hub_country (country_key),
  hub_state_key        text NOT NULL REFERENCES hub_state (state_key),
  hub_municipality_key text NOT NULL REFERENCES hub_municipality (municipality_key),
  hub_city_key         text NOT NULL REFERENCES hub_city (city_key),
  load_date            timestamptz NOT NULL,
  load_end_date        timestamptz NOT NULL,
  record_src           text NOT NULL
)`,
}

const tenantsRegistryDDL = `CREATE TABLE IF NOT EXISTS public.tenants (
  id           uuid PRIMARY KEY,
  name         text NOT NULL,
  header_alias text NOT NULL UNIQUE,
  hostname     text NOT NULL UNIQUE,
  schema_name  text NOT NULL UNIQUE
)`

func initTenant(args []string) {
	fs := flag.NewFlagSet("init-tenant", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url, schema string
	fs.StringVar(&url, "url", "", "postgres connection string")
	fs.StringVar(&schema, "schema", "", "tenant schema name")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}
	if !validSchemaName(schema) {
		fatalf("invalid --schema: %q", schema)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, tenantsRegistryDDL); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true);`, schema); err != nil {
		fatal(err)
	}
	for _, stmt := range tenantDDL {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			fatal(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		fatal(err)
	}

	fmt.Printf("schema %s initialized\n", schema)
}

func registerTenant(args []string) {
	fs := flag.NewFlagSet("register-tenant", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url, schema, name, alias, hostname string
	fs.StringVar(&url, "url", "", "postgres connection string")
	fs.StringVar(&schema, "schema", "", "tenant schema name")
	fs.StringVar(&name, "name", "", "tenant display name")
	fs.StringVar(&alias, "alias", "", "tenant header alias")
	fs.StringVar(&hostname, "hostname", "", "tenant hostname")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}
	if !validSchemaName(schema) {
		fatalf("invalid --schema: %q", schema)
	}
	if name == "" || alias == "" || hostname == "" {
		fatalf("missing --name/--alias/--hostname")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	id := uuid.New()
	if _, err := conn.Exec(ctx, `
INSERT INTO public.tenants (id, name, header_alias, hostname, schema_name)
VALUES ($1, $2, $3, $4, $5)
`, id, name, alias, hostname, schema); err != nil {
		fatal(err)
	}

	fmt.Printf("tenant %s registered as %s\n", name, id)
}

// tenantSmoke verifies the schema is usable and the current-row sentinel
// behaves: an open satellite row is selected by the equality predicate,
// a closed one is not. Everything runs in one rolled-back transaction.
func tenantSmoke(args []string) {
	fs := flag.NewFlagSet("tenant-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url, schema string
	fs.StringVar(&url, "url", "", "postgres connection string")
	fs.StringVar(&schema, "schema", "", "tenant schema name")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}
	if !validSchemaName(schema) {
		fatalf("invalid --schema: %q", schema)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true);`, schema); err != nil {
		fatal(err)
	}

	key := "smoke_" + uuid.NewString()[:8]
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
INSERT INTO hub_site (site_key, name, record_src, load_date) VALUES ($1, $1, 'dbtool', $2)
`, key, now); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO sat_site (hub_site_key, address, load_date, load_end_date, record_src)
VALUES ($1, 'smoke', $2, $2, 'dbtool')
`, key, now); err != nil {
		fatal(err)
	}

	var open int
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM sat_site WHERE hub_site_key = $1 AND load_date = load_end_date
`, key).Scan(&open); err != nil {
		fatal(err)
	}
	if open != 1 {
		fatalf("expected 1 open satellite row, got %d", open)
	}

	if _, err := tx.Exec(ctx, `
UPDATE sat_site SET load_end_date = $2 WHERE hub_site_key = $1 AND load_date = load_end_date
`, key, now.Add(time.Second)); err != nil {
		fatal(err)
	}
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM sat_site WHERE hub_site_key = $1 AND load_date = load_end_date
`, key).Scan(&open); err != nil {
		fatal(err)
	}
	if open != 0 {
		fatalf("expected 0 open satellite rows after close, got %d", open)
	}

	fmt.Printf("schema %s smoke ok\n", schema)
}

var schemaNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validSchemaName(s string) bool {
	return schemaNameRe.MatchString(s)
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

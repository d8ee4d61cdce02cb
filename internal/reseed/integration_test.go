package reseed_test

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"slices"
	"testing"
	"time"

	"alma.org.ar/internal/credentials"
	"alma.org.ar/internal/fixtures"
	"alma.org.ar/internal/provision"
	"alma.org.ar/internal/reseed"
	"alma.org.ar/internal/schema"
	"alma.org.ar/internal/store/pg"
)

const itDatabase = "almadb_it"

// serverDSN returns the DSN from ALMA_TEST_PG_DSN with its database swapped.
func serverDSN(t *testing.T) func(string) string {
	t.Helper()
	raw := os.Getenv("ALMA_TEST_PG_DSN")
	if raw == "" {
		t.Skip("ALMA_TEST_PG_DSN not set")
	}
	base, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("ALMA_TEST_PG_DSN: %v", err)
	}
	return func(database string) string {
		u := *base
		u.Path = "/" + database
		return u.String()
	}
}

func TestProvisionAndReseedAgainstPostgres(t *testing.T) {
	dsn := serverDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	catalog := schema.Default()
	res := provision.New(pg.Connector{DSN: dsn}, itDatabase).Provision(ctx, catalog)
	if !res.OK() {
		t.Fatalf("provision: %v", res.Err)
	}

	db, err := pg.Open(ctx, dsn(itDatabase))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	// Both halves of the voluntarios/auth_users cycle exist once provisioning ends.
	for _, fk := range []string{"fk_voluntarios_auth_user", "fk_auth_users_volunteer"} {
		var n int
		if err := db.QueryRowContext(ctx,
			`select count(*) from pg_constraint where conname = $1 and contype = 'f'`, fk).Scan(&n); err != nil {
			t.Fatalf("lookup %s: %v", fk, err)
		}
		if n != 1 {
			t.Fatalf("foreign key %s missing", fk)
		}
	}

	set, err := fixtures.Load()
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}
	engine := reseed.New(db,
		reseed.WithToday(fixtures.NewDate(2025, time.July, 1)),
		reseed.WithHasher(credentials.NewBcrypt(4)),
	)

	first := snapshot(ctx, t, db, engine, set, catalog)
	second := snapshot(ctx, t, db, engine, set, catalog)
	for table, ids := range first {
		if !slices.Equal(ids, second[table]) {
			t.Fatalf("%s differs between runs: %v vs %v", table, ids, second[table])
		}
	}
	if got := first["pending_items"]; len(got) != 1 || got[0] != len(set.Subtasks) {
		t.Fatalf("pending_items=%v, want %d rows", got, len(set.Subtasks))
	}
	if got := len(first["calendar_assignments"]); got != 40 {
		t.Fatalf("calendar_assignments=%d, want 40", got)
	}

	// Both directions of the cycle accept a row once seeded.
	var authID int
	if err := db.QueryRowContext(ctx,
		`insert into auth_users (volunteer_id, email, password_hash) values (1, 'it@alma.org.ar', 'x') returning id`,
	).Scan(&authID); err != nil {
		t.Fatalf("insert auth_users pointing at a volunteer: %v", err)
	}
	if _, err := db.ExecContext(ctx, `update voluntarios set auth_user_id = $1 where id = 1`, authID); err != nil {
		t.Fatalf("link volunteer to auth_users: %v", err)
	}

	var hash string
	if err := db.QueryRowContext(ctx, `select pin_hash from voluntarios where id = 1`).Scan(&hash); err != nil {
		t.Fatalf("pin_hash: %v", err)
	}
	if err := credentials.Verify(hash, reseed.DefaultPIN); err != nil {
		t.Fatalf("seeded PIN does not verify: %v", err)
	}
}

// snapshot reseeds and returns the sorted keys of every identity table, plus
// the row counts of the string-keyed task tables.
func snapshot(ctx context.Context, t *testing.T, db *sql.DB, e *reseed.Engine, set *fixtures.Set, c schema.Catalog) map[string][]int {
	t.Helper()
	if res := e.Reseed(ctx, set); !res.OK() {
		t.Fatalf("reseed: %v", res.Err)
	}
	out := map[string][]int{}
	for _, table := range c.IdentityTables() {
		rows, err := db.QueryContext(ctx, `select id from `+pg.QuoteIdent(table)+` order by id`)
		if err != nil {
			t.Fatalf("select %s: %v", table, err)
		}
		var ids []int
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				t.Fatalf("scan %s: %v", table, err)
			}
			ids = append(ids, id)
		}
		if err := rows.Close(); err != nil {
			t.Fatalf("close %s: %v", table, err)
		}
		out[table] = ids
	}
	for _, table := range []string{"pendientes", "pending_items"} {
		var n int
		if err := db.QueryRowContext(ctx, `select count(*) from `+pg.QuoteIdent(table)).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		out[table] = []int{n}
	}
	return out
}

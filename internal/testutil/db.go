package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"backend-booking/migrations"
)

const (
	defaultTestDSN = "booking:booking@tcp(localhost:3306)/booking_test?parseTime=true&loc=UTC"
	testDBLockName = "backend_booking_tests"
)

// NewTestDB connects to TEST_MYSQL_DSN and skips the test when MySQL is not
// reachable. The connection holds a named lock so packages do not race on
// the shared schema.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	db.SetMaxOpenConns(4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("skipping MySQL integration tests: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	lockTestDB(t, db)
	return db
}

func ApplyMigrations(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
}

func TruncateAll(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	for _, table := range []string{"bookings", "loyalty_ledgers"} {
		if _, err := db.ExecContext(ctx, `TRUNCATE TABLE `+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

func lockTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 30)`, testDBLockName).Scan(&got); err != nil || got.Int64 != 1 {
		conn.Close()
		t.Fatalf("acquire test lock: %v", err)
	}

	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, testDBLockName)
		conn.Close()
	})
}

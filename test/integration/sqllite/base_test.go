package sqllite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"
	"testing"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/opskit/flowline/internal/migrations"
)

var dbSeq int32

// runTestWithSetup gives each test its own migrated SQLite file and removes
// it afterwards.
func runTestWithSetup(t *testing.T, testFunc func(t *testing.T, db *sql.DB)) {
	filename := fmt.Sprintf("flowline-test-%d.db", atomic.AddInt32(&dbSeq, 1))
	defer os.Remove(filename)

	if err := migrateSqlLite(filename); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	testFunc(t, db)
}

func migrateSqlLite(filename string) error {
	sub, err := fs.Sub(migrations.FS, "sqllite3")
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite3://"+filename)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func countRows(t *testing.T, db *sql.DB, table string, where string, args ...interface{}) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

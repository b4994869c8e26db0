// Package storagetest opens migrated in-memory SQLite databases for tests.
package storagetest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/tenantgate/pkg/storage"
)

// NewSQLite returns a fresh, fully migrated in-memory database closed at test cleanup
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := storage.Open(context.Background(), storage.Config{
		Dialect: storage.DialectSQLite,
		URL:     dsn,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	quiet := logrus.New()
	quiet.SetLevel(logrus.WarnLevel)
	if err := storage.RunMigrations(context.Background(), db, storage.DialectSQLite, quiet); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return db
}

// InsertProfile adds a row to the profiles table, which the identity service owns in production
func InsertProfile(t testing.TB, db *sql.DB, name string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowContext(context.Background(),
		"INSERT INTO profiles (name) VALUES ($1) RETURNING id", name).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert profile %q: %v", name, err)
	}
	return id
}

// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"

	"kutable/internal/database"
)

// NewDB opens a migrated in-memory sqlite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:kutable_%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{DriverName: "sqlite", DSN: dsn}),
		&gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			NowFunc:        func() time.Time { return time.Now().UTC() },
			TranslateError: true,
		},
	)
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	// one connection keeps sqlite from reporting table locks under concurrent writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

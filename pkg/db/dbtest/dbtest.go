// Package dbtest opens an isolated sqlite database with every model migrated.
package dbtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/foodapp-backend/pkg/db"
	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
)

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&models.Meal{},
		&models.DeliveryType{},
		&models.Location{},
		&models.GiftDetails{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OutboxEvent{},
	}
}

// Open returns a client over a fresh in-memory database. SQLite has no row
// locks and no enforced foreign keys here: the single pooled connection
// serializes transactions, so concurrency tests prove one winner but not that
// FOR UPDATE is emitted. Lock clauses are asserted with DryRun instead.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := conn.AutoMigrate(Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.NewFromGorm(conn)
}

// Statements collects the SQL a DryRun session renders.
type Statements struct {
	gormlogger.Interface
	mu  sync.Mutex
	sql []string
}

func (s *Statements) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sql = append(s.sql, sql)
}

// All returns the statements rendered so far.
func (s *Statements) All() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sql...)
}

// DryRunPostgres returns a handle that renders postgres SQL without a server.
func DryRunPostgres(t testing.TB) (*gorm.DB, *Statements) {
	t.Helper()
	rec := &Statements{Interface: gormlogger.Discard}
	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 user=dryrun dbname=dryrun sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               rec,
	})
	if err != nil {
		t.Fatalf("open dry-run postgres: %v", err)
	}
	return conn, rec
}

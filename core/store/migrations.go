package store

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"cityfix/core/utils"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// goose keeps dialect and base FS in package globals.
var gooseMu sync.Mutex

func ApplyMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dialect, dir := "postgres", "migrations/postgres"
	if db.Dialect() == DialectSQLite {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}
	goose.SetBaseFS(migrationsFS)
	if logger != nil {
		goose.SetLogger(logger)
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("apply %s migrations: %w", dialect, err)
	}
	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err == nil && logger != nil {
		logger.Printf("migrations applied (dialect=%s version=%d)", dialect, version)
	}
	return nil
}

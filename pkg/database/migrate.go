package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"account-service/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate applies every pending migration found at the root of migrations.
// goose needs database/sql, so a short-lived pgx stdlib handle is opened for it.
func Migrate(ctx context.Context, config utils.DatabaseConfig, migrations fs.FS) error {
	db, err := sql.Open("pgx", ConnString(config))
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

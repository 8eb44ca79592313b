package repository

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

func prepareGoose() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Migrate applies all pending migrations.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrationStatus logs the applied state of every migration through goose's logger.
func (r *Repository) MigrationStatus(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	return goose.StatusContext(ctx, db, migrationsDir)
}

// MigrateDown rolls back the most recent migration.
func (r *Repository) MigrateDown(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	return goose.DownContext(ctx, db, migrationsDir)
}

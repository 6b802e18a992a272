package database

import (
	"context"
	"embed"
	"fmt"
	"path"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations for the connection's dialect.
func Migrate(ctx context.Context, db *DB, log *logrus.Entry) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(log)
	if err := goose.SetDialect(db.driver); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, path.Join("migrations", db.driver)); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed queries/schema.sql
var schemaDDL string

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

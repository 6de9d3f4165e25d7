package sqlstore

import (
	"context"
	"database/sql"
)

func applyMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

// Column names match the node_counter table layout shared by every backend.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS node_counter (
  nid        INTEGER PRIMARY KEY,
  daycount   INTEGER NOT NULL DEFAULT 0,
  weekcount  INTEGER NOT NULL DEFAULT 0,
  monthcount INTEGER NOT NULL DEFAULT 0,
  yearcount  INTEGER NOT NULL DEFAULT 0,
  totalcount INTEGER NOT NULL DEFAULT 0,
  timestamp  INTEGER NOT NULL DEFAULT 0
);
`

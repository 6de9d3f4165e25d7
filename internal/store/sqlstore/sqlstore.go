// Package sqlstore keeps counters in SQLite through the pure-Go modernc driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tckz/go-viewcount/internal/counter"
)

var _ counter.Store = (*Store)(nil)

// The conflict branch only fires while every counter is still a
// non-negative integer below int64 max (x + 1 would turn REAL). A row that fails the check is left untouched and the
// statement reports zero changes.
const upsertSQL = `
INSERT INTO node_counter (nid, daycount, weekcount, monthcount, yearcount, totalcount, timestamp)
VALUES (?, 1, 1, 1, 1, 1, ?)
ON CONFLICT(nid) DO UPDATE SET
  daycount   = daycount + 1,
  weekcount  = weekcount + 1,
  monthcount = monthcount + 1,
  yearcount  = yearcount + 1,
  totalcount = totalcount + 1,
  timestamp  = excluded.timestamp
WHERE typeof(daycount) = 'integer' AND daycount >= 0 AND daycount < 9223372036854775807
  AND typeof(weekcount) = 'integer' AND weekcount >= 0 AND weekcount < 9223372036854775807
  AND typeof(monthcount) = 'integer' AND monthcount >= 0 AND monthcount < 9223372036854775807
  AND typeof(yearcount) = 'integer' AND yearcount >= 0 AND yearcount < 9223372036854775807
  AND typeof(totalcount) = 'integer' AND totalcount >= 0 AND totalcount < 9223372036854775807;`

const selectSQL = `
SELECT daycount, weekcount, monthcount, yearcount, totalcount, timestamp
FROM node_counter
WHERE nid = ?;`

type Store struct {
	db    *sql.DB
	clock counter.Clock
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, clock counter.Clock) (*Store, error) {
	if clock == nil {
		clock = counter.RealClock{}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	// One connection: SQLite serialises writers anyway, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applyMigrations: %w", err)
	}
	return &Store{db: db, clock: clock}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) UpsertIncrement(ctx context.Context, id int64) error {
	if !counter.ValidID(id) {
		return counter.InvalidKey(id)
	}
	if err := ctx.Err(); err != nil {
		return counter.Unavailable(id, err)
	}

	res, err := s.db.ExecContext(ctx, upsertSQL, id, s.clock.Now().Unix())
	if err != nil {
		return classify(id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(id, err)
	}
	if n == 0 {
		return counter.Corrupt(id, errors.New("node_counter row holds non-integer or negative counters"))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*counter.Record, error) {
	if !counter.ValidID(id) {
		return nil, counter.InvalidKey(id)
	}

	// Scanned as any so that a non-integer column is told apart from a
	// failing database.
	var cols [6]any
	err := s.db.QueryRowContext(ctx, selectSQL, id).Scan(
		&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, counter.ErrNotFound
		}
		return nil, classify(id, err)
	}

	var vals [6]int64
	for i, c := range cols {
		v, ok := c.(int64)
		if !ok {
			return nil, counter.Corrupt(id, fmt.Errorf("column %d holds %T", i, c))
		}
		vals[i] = v
	}
	return &counter.Record{
		ID:         id,
		DayCount:   vals[0],
		WeekCount:  vals[1],
		MonthCount: vals[2],
		YearCount:  vals[3],
		TotalCount: vals[4],
		LastSeenAt: time.Unix(vals[5], 0).UTC(),
	}, nil
}

func classify(id int64, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_MISMATCH:
			return counter.Corrupt(id, err)
		}
	}
	return counter.Unavailable(id, err)
}

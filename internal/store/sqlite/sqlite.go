// Package sqlite provides the SQLite-backed store.Store implementation for
// the queues table. It uses modernc.org/sqlite (pure Go, no CGO) so both
// binaries build and run without a C toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dec112/prf/internal/store"
)

// DB implements store.Store using SQLite via database/sql.
type DB struct {
	db       *sql.DB
	readOnly bool
}

// Open opens (or creates) the database at path for read-write use and
// applies the schema migration. Intended for qngin, the sole writer.
func Open(path string) (*DB, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// SQLite serialises writes; one connection avoids SQLITE_BUSY.
	sdb.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &DB{db: sdb}
	if err := s.migrate(); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// OpenReadOnly opens an existing database at path without creating it and
// without running migrations. Intended for rngin, which only ever reads the
// queues table that qngin owns.
func OpenReadOnly(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s (ro): %w", path, err)
	}
	if err := sdb.Ping(); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("ping %s (ro): %w", path, err)
	}
	return &DB{db: sdb, readOnly: true}, nil
}

// migrate applies the schema. New versions should only ADD statements here
// so existing databases keep working without a migration tool.
func (s *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS queues (
			uri      TEXT NOT NULL,
			state    TEXT NOT NULL,
			dequeuer TEXT NOT NULL,
			max      INTEGER NOT NULL DEFAULT 0,
			length   INTEGER NOT NULL DEFAULT 0,
			UNIQUE (dequeuer, uri)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queues_uri ON queues(uri)`,
		`CREATE INDEX IF NOT EXISTS idx_queues_dequeuer ON queues(dequeuer)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *DB) ListByDequeuer(ctx context.Context, dequeuer string) ([]store.Queue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uri, state, dequeuer, max, length FROM queues WHERE dequeuer = ?`, dequeuer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Queue
	for rows.Next() {
		var q store.Queue
		if err := rows.Scan(&q.URI, &q.State, &q.Dequeuer, &q.Max, &q.Length); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Apply writes each tagged item inside its own transaction. A failing item
// is recorded as the returned error (the first one encountered) but does not
// stop the remaining items from being attempted, matching the source's
// "log and continue" reconciliation error policy (spec.md §4.2, §7).
func (s *DB) Apply(ctx context.Context, items []store.Item) error {
	var firstErr error
	for _, it := range items {
		if it.Action == store.ActionNone {
			continue
		}
		if err := s.applyOne(ctx, it); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *DB) applyOne(ctx context.Context, it store.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	q := it.Queue
	switch it.Action {
	case store.ActionCreate:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO queues (uri, state, dequeuer, max, length) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(dequeuer, uri) DO UPDATE SET state = excluded.state, max = excluded.max, length = excluded.length`,
			q.URI, string(q.State), q.Dequeuer, q.Max, q.Length)
	case store.ActionUpdate:
		_, err = tx.ExecContext(ctx,
			`UPDATE queues SET state = ?, max = ?, length = ? WHERE dequeuer = ? AND uri = ?`,
			string(q.State), q.Max, q.Length, q.Dequeuer, q.URI)
	case store.ActionDelete, store.ActionPurge:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM queues WHERE dequeuer = ? AND uri = ?`, q.Dequeuer, q.URI)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply %v %s/%s: %w", it.Action, q.Dequeuer, q.URI, err)
	}
	return tx.Commit()
}

func (s *DB) PurgeDequeuer(ctx context.Context, dequeuer string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queues WHERE dequeuer = ?`, dequeuer)
	if err != nil {
		return fmt.Errorf("purge %s: %w", dequeuer, err)
	}
	return nil
}

func (s *DB) QueryQueue(ctx context.Context, uri string) (store.Queue, bool, error) {
	var q store.Queue
	row := s.db.QueryRowContext(ctx,
		`SELECT uri, state, dequeuer, max, length FROM queues WHERE uri = ?`, uri)
	err := row.Scan(&q.URI, &q.State, &q.Dequeuer, &q.Max, &q.Length)
	if err == sql.ErrNoRows {
		return store.Queue{}, false, nil
	}
	if err != nil {
		return store.Queue{}, false, err
	}
	return q, true, nil
}

func (s *DB) Close() error { return s.db.Close() }

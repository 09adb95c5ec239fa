// Package store is the thin contract over the backing SQLite engine.
// All coordination between producers, consumers and the dispatcher
// flows through it; nothing above this package speaks SQL dialects.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Stmt is one parameterized statement of a batch.
type Stmt struct {
	SQL  string
	Args []any
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
// ":memory:" yields a private in-memory database, good for tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY churn between the producer and the pumps.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Execute runs a single statement and returns the driver result,
// which carries LastInsertId for inserts.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: exec: %w", err)
	}
	return res, nil
}

// Query runs a row-returning statement. The caller owns the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	return rows, nil
}

// QueryRow runs a statement expected to return at most one row.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// Batch executes all statements inside one transaction and returns the
// per-statement last-insert rowids in order. Either every statement
// commits or none does.
func (s *Store) Batch(ctx context.Context, stmts []Stmt) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	ids := make([]int64, 0, len(stmts))
	for _, st := range stmts {
		res, err := tx.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("store: batch exec: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("store: batch rowid: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return ids, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IsNoSuchTable reports whether err is SQLite's complaint about a
// missing table. Fetching from a never-produced topic hits this and is
// not an error for the caller.
func IsNoSuchTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// OffsetTable is the shared consumer-offset table name.
const OffsetTable = "klite_consumer_offsets"

// TableName forms the quoted log-table identifier for a (topic,
// partition) pair. Topics land verbatim inside the identifier, so the
// result is always double-quoted; topics carrying a quote character
// cannot be expressed safely and are rejected.
func TableName(topic string, partition int) (string, error) {
	if strings.ContainsAny(topic, `"`) {
		return "", fmt.Errorf("store: topic %q contains a quote character", topic)
	}
	return fmt.Sprintf(`"klite_%s_%d"`, topic, partition), nil
}

package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteBackend persists history in a local SQLite database so sessions
// survive restarts of a single-host deployment.
type SQLiteBackend struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns ~/.docchat/sessions.db, creating the directory if
// needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("session: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("session: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteBackend at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY under concurrent writes and keeps
	// one ":memory:" database per backend.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// migrate creates the schema if it does not already exist.
func (b *SQLiteBackend) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT    PRIMARY KEY,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS turns (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL REFERENCES sessions(id),
    user_text   TEXT    NOT NULL,
    answer_text TEXT    NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session_seq ON turns (session_id, seq);
`
	if _, err := b.db.Exec(ddl); err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

// Ensure registers id.
func (b *SQLiteBackend) Ensure(ctx context.Context, id string) error {
	const q = `INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`
	if _, err := b.db.ExecContext(ctx, q, id, time.Now().Unix()); err != nil {
		return fmt.Errorf("session: ensure: %w", err)
	}
	return nil
}

// Append stores t as the newest turn of id.
func (b *SQLiteBackend) Append(ctx context.Context, id string, t Turn) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: append begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`,
		id, t.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("session: append: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, user_text, answer_text, created_at) VALUES (?, ?, ?, ?)`,
		id, t.User, t.Assistant, t.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("session: append: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: append commit: %w", err)
	}
	return nil
}

// Recent returns the k newest turns of id, oldest-first. The subquery selects
// the tail, the outer query restores chronological order.
func (b *SQLiteBackend) Recent(ctx context.Context, id string, k int) ([]Turn, error) {
	const q = `
SELECT user_text, answer_text, created_at FROM (
    SELECT seq, user_text, answer_text, created_at
    FROM   turns
    WHERE  session_id = ?
    ORDER  BY seq DESC
    LIMIT  ?
) ORDER BY seq ASC`

	rows, err := b.db.QueryContext(ctx, q, id, k)
	if err != nil {
		return nil, fmt.Errorf("session: recent: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var ts int64
		if err := rows.Scan(&t.User, &t.Assistant, &ts); err != nil {
			return nil, fmt.Errorf("session: recent scan: %w", err)
		}
		t.CreatedAt = time.Unix(ts, 0).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: recent rows: %w", err)
	}
	return turns, nil
}

// IDs returns every known session id.
func (b *SQLiteBackend) IDs(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("session: ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("session: ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: ids rows: %w", err)
	}
	return ids, nil
}

// Close releases the database connection pool.
func (b *SQLiteBackend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	return nil
}

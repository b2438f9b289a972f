package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"oncallcheck/internal/model"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrAlreadyRecorded is returned by Record when the message ID already has a ticket.
var ErrAlreadyRecorded = errors.New("message already recorded")

// SQLiteStore is the dedup ledger: one row per voicemail that got a ticket.
// It implements poller.Ledger.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One poller, one connection; avoids SQLITE_BUSY between pooled conns.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// OpenReadOnly opens an existing ledger without creating, migrating or
// changing its journal mode. A missing file is an error.
func OpenReadOnly(dbPath string) (*SQLiteStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	u := url.URL{Scheme: "file", Path: abs, RawQuery: "mode=ro"}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS messages (
	message_id  TEXT PRIMARY KEY,
	ticket_id   TEXT NOT NULL,
	recorded_at TEXT NOT NULL DEFAULT ''
);
`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HasSeen reports whether a ticket was already recorded for messageID.
func (s *SQLiteStore) HasSeen(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM messages WHERE message_id = ?", messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %v", model.ErrPersistence, messageID, err)
	}
	return true, nil
}

// Record stores the ticket created for messageID. The primary key makes a
// second Record for the same ID fail with ErrAlreadyRecorded.
func (s *SQLiteStore) Record(ctx context.Context, messageID, ticketID string) error {
	if messageID == "" || ticketID == "" {
		return fmt.Errorf("%w: message and ticket IDs are required", model.ErrPersistence)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (message_id, ticket_id, recorded_at) VALUES (?, ?, ?)",
		messageID, ticketID, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("record %s: %w", messageID, ErrAlreadyRecorded)
		}
		return fmt.Errorf("%w: record %s: %v", model.ErrPersistence, messageID, err)
	}
	return nil
}

// LoadEntries returns every ledger row, newest first.
func (s *SQLiteStore) LoadEntries(ctx context.Context) ([]model.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT message_id, ticket_id, recorded_at FROM messages ORDER BY recorded_at DESC, message_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var recorded string
		if err := rows.Scan(&e.MessageID, &e.TicketID, &recorded); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339, recorded); err == nil {
			e.RecordedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) CountEntries(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count)
	return count, err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

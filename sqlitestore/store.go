// Copyright (c) The Threadline Authors. All rights reserved.

// Package sqlitestore provides a SQLite-backed history store. Histories
// survive process restarts and can be shared by multiple invokers in the
// same process.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	tl "github.com/threadline-ai/threadline"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	scope    TEXT NOT NULL,
	message  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_scope ON messages(scope, id);
`

// Store is a [tl.HistoryStore] backed by a SQLite database. Ordering within a
// scope follows insertion order via the rowid.
type Store struct {
	db *sql.DB
}

var _ tl.HistoryStore = (*Store)(nil)

// Open opens (creating if needed) a SQLite database at path and prepares the
// history schema. WAL mode keeps concurrent readers from blocking appends.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db)
}

// New prepares the history schema on an existing database handle. The caller
// retains ownership of db unless [Store.Close] is used.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Messages returns the scope's history in insertion order.
func (s *Store) Messages(ctx context.Context, scope tl.ScopeKey) ([]tl.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM messages WHERE scope = ? ORDER BY id`, scope.String())
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var msgs []tl.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var m tl.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode stored message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return msgs, nil
}

// Append adds messages to the end of the scope's history in one transaction,
// so a partial batch is never visible.
func (s *Store) Append(ctx context.Context, scope tl.ScopeKey, msgs ...tl.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO messages (scope, message) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	key := scope.String()
	for i := range msgs {
		raw, err := json.Marshal(msgs[i])
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, key, string(raw)); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Scopes returns the number of distinct histories held.
func (s *Store) Scopes(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT scope) FROM messages`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count scopes: %w", err)
	}
	return n, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

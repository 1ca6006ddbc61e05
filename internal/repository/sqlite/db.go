package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	msqlite "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		owner      TEXT NOT NULL,
		title      TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_owner_updated ON conversations (owner, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS conversation_messages (
		conversation_id TEXT NOT NULL,
		position        INTEGER NOT NULL,
		sender          TEXT NOT NULL,
		content         TEXT NOT NULL,
		timestamp       INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS guest_conversations (
		id         TEXT PRIMARY KEY,
		owner      TEXT NOT NULL UNIQUE,
		title      TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guest_conversation_messages (
		conversation_id TEXT NOT NULL,
		position        INTEGER NOT NULL,
		sender          TEXT NOT NULL,
		content         TEXT NOT NULL,
		timestamp       INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, position)
	)`,
}

// foldFunc is a Unicode-aware replacement for lower(), which only folds ASCII
const foldFunc = "fold_case"

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions makes fold_case available to every connection opened afterwards
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = msqlite.RegisterDeterministicScalarFunction(foldFunc, 1,
			func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case string:
					return foldCase(v), nil
				case []byte:
					return foldCase(string(v)), nil
				default:
					return v, nil
				}
			})
	})
	return registerErr
}

func foldCase(s string) string {
	return strings.ToLower(s)
}

// DB is an embedded conversation database
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database file at path and applies the schema.
// Pass MemoryPath for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("failed to register sql functions: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single writer, and an in-memory database lives only as long as its connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &DB{conn: conn}, nil
}

// Ping verifies the connection is alive
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Close closes the connection
func (d *DB) Close() error {
	return d.conn.Close()
}

package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable
func (db *DB) Ping() error {
	if db == nil || db.conn == nil {
		return fmt.Errorf("database is not connected")
	}
	return db.conn.Ping()
}

// createTables creates the necessary tables
func (db *DB) createTables() error {
	// last_active is ISO-8601 text; rows written by older deployments may
	// lack zone info and are read as UTC.
	query := `CREATE TABLE IF NOT EXISTS activity (
		user_id BIGINT PRIMARY KEY,
		last_active TEXT NOT NULL
	)`

	if _, err := db.conn.Exec(query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

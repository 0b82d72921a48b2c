package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ActuationRecord is one relay command issued through the device link,
// whether from the scheduler loop or a manual web command.
type ActuationRecord struct {
	At      time.Time `json:"at"`
	Source  string    `json:"source"` // "scheduler", "override", "manual"
	Command string    `json:"command"`
	Value   bool      `json:"value"`
	OK      bool      `json:"ok"`
}

// FetchRecord is one price-feed refresh attempt.
type FetchRecord struct {
	At    time.Time `json:"at"`
	Day   string    `json:"day"`
	Hours int       `json:"hours"`
	Error string    `json:"error,omitempty"`
}

func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer; a second pooled connection would
	// also see a different database entirely for :memory: paths.
	conn.SetMaxOpenConns(1)
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`CREATE TABLE IF NOT EXISTS actuations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TIMESTAMP NOT NULL,
		source TEXT NOT NULL,
		command TEXT NOT NULL,
		value INTEGER NOT NULL,
		ok INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create actuations table: %w", err)
	}

	_, err = conn.Exec(`CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TIMESTAMP NOT NULL,
		day TEXT NOT NULL,
		hours INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return fmt.Errorf("failed to create fetches table: %w", err)
	}
	return nil
}

func RecordActuation(conn *sql.DB, rec ActuationRecord) error {
	_, err := conn.Exec(`INSERT INTO actuations (at, source, command, value, ok) VALUES (?, ?, ?, ?, ?)`,
		rec.At, rec.Source, rec.Command, rec.Value, rec.OK)
	if err != nil {
		return fmt.Errorf("failed to record actuation: %w", err)
	}
	return nil
}

func RecordFetch(conn *sql.DB, rec FetchRecord) error {
	_, err := conn.Exec(`INSERT INTO fetches (at, day, hours, error) VALUES (?, ?, ?, ?)`,
		rec.At, rec.Day, rec.Hours, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}
	return nil
}

func RecentActuations(conn *sql.DB, limit int) ([]ActuationRecord, error) {
	rows, err := conn.Query(`SELECT at, source, command, value, ok FROM actuations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query actuations: %w", err)
	}
	defer rows.Close()

	var out []ActuationRecord
	for rows.Next() {
		var rec ActuationRecord
		if err := rows.Scan(&rec.At, &rec.Source, &rec.Command, &rec.Value, &rec.OK); err != nil {
			return nil, fmt.Errorf("failed to scan actuation row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func RecentFetches(conn *sql.DB, limit int) ([]FetchRecord, error) {
	rows, err := conn.Query(`SELECT at, day, hours, error FROM fetches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetches: %w", err)
	}
	defer rows.Close()

	var out []FetchRecord
	for rows.Next() {
		var rec FetchRecord
		if err := rows.Scan(&rec.At, &rec.Day, &rec.Hours, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan fetch row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Package ledger keeps a local sqlite record of booking attempts so that
// payments captured without a confirmed booking can be reconciled later.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"brainbridge/internal/apiclient"
	"brainbridge/internal/booking"
)

// ErrNotFound is returned when an attempt is not in the ledger.
var ErrNotFound = errors.New("attempt not found")

// Entry is a recorded booking attempt.
type Entry struct {
	AttemptID       string
	Resource        string
	ResourceID      int64
	ScheduledDate   string
	PointsToUse     int
	Amount          float64
	Currency        string
	PaymentIntentID string
	Collected       bool
	BookingID       string
	State           booking.State
	ErrorKind       apiclient.Kind
	Message         string
	Reconciled      bool
	Note            string
	StartedAt       time.Time
	UpdatedAt       time.Time
}

// Ledger wraps sql.DB for booking attempts.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens the ledger at path and runs migrations.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db, path: path}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path is the database file.
func (l *Ledger) Path() string {
	return l.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS booking_attempts (
            attempt_id TEXT PRIMARY KEY,
            resource TEXT NOT NULL,
            resource_id INTEGER NOT NULL,
            scheduled_date TEXT,
            points_to_use INTEGER NOT NULL DEFAULT 0,
            amount REAL NOT NULL DEFAULT 0,
            currency TEXT,
            payment_intent_id TEXT,
            payment_collected BOOLEAN NOT NULL DEFAULT 0,
            booking_id TEXT,
            state TEXT NOT NULL,
            error_kind TEXT,
            message TEXT,
            reconciled BOOLEAN NOT NULL DEFAULT 0,
            note TEXT,
            started_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_booking_attempts_kind ON booking_attempts(error_kind, reconciled)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_attempts_updated ON booking_attempts(updated_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Ping checks the database connection.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

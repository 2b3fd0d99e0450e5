package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"brainbridge/internal/apiclient"
	"brainbridge/internal/booking"
)

const entryColumns = `attempt_id, resource, resource_id, scheduled_date, points_to_use, amount, currency,
    payment_intent_id, payment_collected, booking_id, state, error_kind, message, reconciled, note,
    started_at, updated_at`

var _ booking.AttemptRecorder = (*Ledger)(nil)

// Record inserts or updates the attempt. Reconciliation fields are preserved.
func (l *Ledger) Record(ctx context.Context, a *booking.Attempt) error {
	_, err := l.db.ExecContext(ctx, `
        INSERT INTO booking_attempts (attempt_id, resource, resource_id, scheduled_date, points_to_use,
            amount, currency, payment_intent_id, payment_collected, booking_id, state, error_kind, message,
            started_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(attempt_id) DO UPDATE SET
            scheduled_date = excluded.scheduled_date,
            points_to_use = excluded.points_to_use,
            amount = excluded.amount,
            currency = excluded.currency,
            payment_intent_id = excluded.payment_intent_id,
            payment_collected = excluded.payment_collected,
            booking_id = excluded.booking_id,
            state = excluded.state,
            error_kind = excluded.error_kind,
            message = excluded.message,
            updated_at = excluded.updated_at`,
		a.ID, a.Resource, a.ResourceID, a.ScheduledDate, a.PointsToUse,
		a.Amount, a.Currency, a.PaymentIntentID, a.PaymentCollected, a.BookingID,
		string(a.State), string(a.ErrorKind), a.Message,
		a.StartedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record attempt %s: %w", a.ID, err)
	}
	return nil
}

// Get returns one attempt.
func (l *Ledger) Get(ctx context.Context, attemptID string) (*Entry, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM booking_attempts WHERE attempt_id = ?`, attemptID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt %s: %w", attemptID, err)
	}
	return e, nil
}

// List returns the most recent attempts first. limit <= 0 means no limit.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM booking_attempts ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return l.query(ctx, q, args...)
}

// ListUnreconciled returns payments that were captured without a confirmed
// booking and have not been resolved yet, oldest first. Attempts interrupted
// after payment, still in payment_collected, are included.
func (l *Ledger) ListUnreconciled(ctx context.Context) ([]Entry, error) {
	return l.query(ctx, `SELECT `+entryColumns+` FROM booking_attempts
        WHERE (error_kind = ? OR state = ?) AND reconciled = 0
        ORDER BY started_at ASC`, string(apiclient.KindPaymentUnconfirmed), string(booking.StatePaymentCollected))
}

// MarkReconciled records that support resolved the attempt.
func (l *Ledger) MarkReconciled(ctx context.Context, attemptID, note string) error {
	res, err := l.db.ExecContext(ctx, `
        UPDATE booking_attempts SET reconciled = 1, note = ?, updated_at = ?
        WHERE attempt_id = ?`, note, time.Now().UTC(), attemptID)
	if err != nil {
		return fmt.Errorf("reconcile attempt %s: %w", attemptID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOlderThan removes attempts last updated before now minus age.
// Unresolved captured payments are kept.
func (l *Ledger) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).UTC()
	res, err := l.db.ExecContext(ctx, `
        DELETE FROM booking_attempts
        WHERE updated_at < ?
          AND (state = ? OR reconciled = 1
               OR (COALESCE(error_kind, '') != ? AND state != ?))`,
		cutoff, string(booking.StateConfirmed), string(apiclient.KindPaymentUnconfirmed), string(booking.StatePaymentCollected))
	if err != nil {
		return 0, fmt.Errorf("delete old attempts: %w", err)
	}
	return res.RowsAffected()
}

func (l *Ledger) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e                                                          Entry
		date, currency, pi, bookingID, state, kind, message, note sql.NullString
	)
	err := s.Scan(&e.AttemptID, &e.Resource, &e.ResourceID, &date, &e.PointsToUse, &e.Amount, &currency,
		&pi, &e.Collected, &bookingID, &state, &kind, &message, &e.Reconciled, &note,
		&e.StartedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.ScheduledDate = date.String
	e.Currency = currency.String
	e.PaymentIntentID = pi.String
	e.BookingID = bookingID.String
	e.State = booking.State(state.String)
	e.ErrorKind = apiclient.Kind(kind.String)
	e.Message = message.String
	e.Note = note.String
	return &e, nil
}

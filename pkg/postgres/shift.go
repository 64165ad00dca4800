package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/evercare/careshift/pkg/db"
)

// GetShift retrieves one shift record by id.
func (d *DB) GetShift(ctx context.Context, shiftID string) (*db.Shift, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, group_id, elder_id, elder_name, shift_date, start_time, end_time,
		       status, caregiver_id, caregiver_name, cascade_state, revision
		FROM shift
		WHERE id = $1
	`, shiftID)

	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrShiftNotFound
		}
		return nil, fmt.Errorf("failed to query shift: %w", err)
	}
	return shift, nil
}

// InsertShift inserts a new shift record.
func (d *DB) InsertShift(ctx context.Context, shift *db.Shift) error {
	cascadeJSON, expiresAt, err := encodeCascade(shift.Cascade)
	if err != nil {
		return err
	}

	date, err := time.Parse("2006-01-02", shift.Date)
	if err != nil {
		return fmt.Errorf("invalid shift date %q: %w", shift.Date, err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO shift (id, group_id, elder_id, elder_name, shift_date, start_time, end_time,
		                   status, caregiver_id, caregiver_name, cascade_state, offer_expires_at, revision)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, shift.ID, shift.GroupID, shift.ElderID, shift.ElderName, date, shift.StartTime, shift.EndTime,
		shift.Status, nullable(shift.CaregiverID), nullable(shift.CaregiverName), cascadeJSON, expiresAt, shift.Revision)
	if err != nil {
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

// ListShifts retrieves the shifts for a group, newest date first.
func (d *DB) ListShifts(ctx context.Context, groupID string) ([]db.Shift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, group_id, elder_id, elder_name, shift_date, start_time, end_time,
		       status, caregiver_id, caregiver_name, cascade_state, revision
		FROM shift
		WHERE group_id = $1
		ORDER BY shift_date DESC, start_time
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	return collectShifts(rows)
}

// ListDueOffers retrieves offered shifts whose offer window closed at or
// before the given time. The expiry lives both inside cascade_state and in
// the indexed offer_expires_at column so the sweep does not scan JSONB.
func (d *DB) ListDueOffers(ctx context.Context, now time.Time) ([]db.Shift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, group_id, elder_id, elder_name, shift_date, start_time, end_time,
		       status, caregiver_id, caregiver_name, cascade_state, revision
		FROM shift
		WHERE status = 'offered' AND offer_expires_at IS NOT NULL AND offer_expires_at <= $1
	`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query due offers: %w", err)
	}
	defer rows.Close()

	return collectShifts(rows)
}

// MutateShift runs fn against the current shift record inside a transaction.
// The update is guarded by the revision the snapshot was read at; a zero row
// count means another writer committed first, so the transaction is rolled
// back and fn re-runs on a fresh snapshot. Notifications returned by fn are
// inserted in the same transaction as the shift update.
func (d *DB) MutateShift(ctx context.Context, shiftID string, fn db.ShiftMutation) error {
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		committed, err := d.tryMutateShift(ctx, shiftID, fn)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
	}
	return fmt.Errorf("mutating shift %s: %w", shiftID, db.ErrRevisionConflict)
}

func (d *DB) tryMutateShift(ctx context.Context, shiftID string, fn db.ShiftMutation) (bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, group_id, elder_id, elder_name, shift_date, start_time, end_time,
		       status, caregiver_id, caregiver_name, cascade_state, revision
		FROM shift
		WHERE id = $1
	`, shiftID)
	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, db.ErrShiftNotFound
		}
		return false, fmt.Errorf("failed to read shift: %w", err)
	}
	readRevision := shift.Revision

	notifications, err := fn(shift)
	if err != nil {
		return false, err
	}

	cascadeJSON, expiresAt, err := encodeCascade(shift.Cascade)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE shift
		SET status = $2, caregiver_id = $3, caregiver_name = $4, cascade_state = $5,
		    offer_expires_at = $6, revision = revision + 1, updated_at = NOW()
		WHERE id = $1 AND revision = $7
	`, shiftID, shift.Status, nullable(shift.CaregiverID), nullable(shift.CaregiverName),
		cascadeJSON, expiresAt, readRevision)
	if err != nil {
		return false, fmt.Errorf("failed to update shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the race; retry on a fresh snapshot.
		return false, nil
	}

	for _, n := range notifications {
		if err := insertNotification(ctx, tx, &n); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit shift update: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShift(row rowScanner) (*db.Shift, error) {
	var s db.Shift
	var date time.Time
	var caregiverID, caregiverName *string
	var cascadeJSON []byte

	if err := row.Scan(&s.ID, &s.GroupID, &s.ElderID, &s.ElderName, &date, &s.StartTime, &s.EndTime,
		&s.Status, &caregiverID, &caregiverName, &cascadeJSON, &s.Revision); err != nil {
		return nil, err
	}

	s.Date = date.Format("2006-01-02")
	if caregiverID != nil {
		s.CaregiverID = *caregiverID
	}
	if caregiverName != nil {
		s.CaregiverName = *caregiverName
	}
	if len(cascadeJSON) > 0 {
		var cs db.CascadeState
		if err := json.Unmarshal(cascadeJSON, &cs); err != nil {
			return nil, fmt.Errorf("failed to decode cascade state: %w", err)
		}
		s.Cascade = &cs
	}
	return &s, nil
}

func collectShifts(rows pgx.Rows) ([]db.Shift, error) {
	var shifts []db.Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, *shift)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}
	return shifts, nil
}

func encodeCascade(cs *db.CascadeState) ([]byte, *time.Time, error) {
	if cs == nil {
		return nil, nil, nil
	}
	data, err := json.Marshal(cs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode cascade state: %w", err)
	}
	return data, cs.CurrentOfferExpiresAt, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

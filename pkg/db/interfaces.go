package db

import (
	"context"
	"errors"
	"time"
)

// ErrShiftNotFound is returned by shift lookups when no record exists.
var ErrShiftNotFound = errors.New("shift not found")

// ErrRevisionConflict is returned by a single mutation attempt whose
// compare-and-swap write lost to a concurrent commit. MutateShift retries it
// internally; callers only see it wrapped once retries are exhausted.
var ErrRevisionConflict = errors.New("shift revision conflict")

// ShiftMutation inspects and mutates one shift snapshot inside a transaction.
// It returns the notifications to write atomically with the updated shift.
// Returning an error aborts the transaction with no writes.
type ShiftMutation func(shift *Shift) ([]Notification, error)

// ShiftStore defines shift persistence with transactional update discipline.
type ShiftStore interface {
	GetShift(ctx context.Context, shiftID string) (*Shift, error)
	InsertShift(ctx context.Context, shift *Shift) error
	ListShifts(ctx context.Context, groupID string) ([]Shift, error)

	// ListDueOffers returns shifts in status offered whose offer window has
	// closed at the given time.
	ListDueOffers(ctx context.Context, now time.Time) ([]Shift, error)

	// MutateShift runs fn against the current shift record inside a single
	// read-modify-write transaction guarded by the record's revision. On a
	// write conflict fn is re-run on a fresh snapshot, up to a bounded number
	// of attempts. The notifications fn returns are committed with the shift
	// update or not at all.
	MutateShift(ctx context.Context, shiftID string, fn ShiftMutation) error
}

// CaregiverStore provides caregiver profiles for ranking. Profiles are
// resolved against a specific elder so PriorAssignments counts that elder's
// completed shifts.
type CaregiverStore interface {
	ListCaregiversForElder(ctx context.Context, groupID, elderID string) ([]Caregiver, error)
}

// NotificationStore is the read side of the notification sink.
type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string) ([]Notification, error)
}

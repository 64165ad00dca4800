package services

import (
	"context"
	"errors"
	"time"

	"github.com/evercare/careshift/pkg/db"
)

// fakeStore implements db.ShiftStore and db.CaregiverStore for service tests.
// Mutations are applied directly; the CAS retry contract is exercised by the
// cascade package's own tests.
type fakeStore struct {
	shifts        map[string]*db.Shift
	caregivers    []db.Caregiver
	notifications []db.Notification

	listShiftsErr error
	insertErr     error
}

func newFakeStore(shifts ...*db.Shift) *fakeStore {
	s := &fakeStore{shifts: make(map[string]*db.Shift)}
	for _, shift := range shifts {
		s.shifts[shift.ID] = shift
	}
	return s
}

func (f *fakeStore) GetShift(ctx context.Context, shiftID string) (*db.Shift, error) {
	shift, ok := f.shifts[shiftID]
	if !ok {
		return nil, db.ErrShiftNotFound
	}
	copied := *shift
	return &copied, nil
}

func (f *fakeStore) InsertShift(ctx context.Context, shift *db.Shift) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	copied := *shift
	f.shifts[shift.ID] = &copied
	return nil
}

func (f *fakeStore) ListShifts(ctx context.Context, groupID string) ([]db.Shift, error) {
	if f.listShiftsErr != nil {
		return nil, f.listShiftsErr
	}
	var out []db.Shift
	for _, s := range f.shifts {
		if s.GroupID == groupID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDueOffers(ctx context.Context, now time.Time) ([]db.Shift, error) {
	var out []db.Shift
	for _, s := range f.shifts {
		if s.Status == db.ShiftOffered && s.Cascade != nil && s.Cascade.OfferDue(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) MutateShift(ctx context.Context, shiftID string, fn db.ShiftMutation) error {
	shift, ok := f.shifts[shiftID]
	if !ok {
		return db.ErrShiftNotFound
	}
	notifs, err := fn(shift)
	if err != nil {
		return err
	}
	f.notifications = append(f.notifications, notifs...)
	return nil
}

func (f *fakeStore) ListCaregiversForElder(ctx context.Context, groupID, elderID string) ([]db.Caregiver, error) {
	return f.caregivers, nil
}

var errBoom = errors.New("boom")

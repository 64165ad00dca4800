package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evercare/careshift/pkg/core/cascade"
	"github.com/evercare/careshift/pkg/db"
)

func allWeek() db.DayAvailability {
	days := db.DayAvailability{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[d] = true
	}
	return days
}

func TestBeginCascade(t *testing.T) {
	store := newFakeStore(&db.Shift{
		ID: "shift-1", GroupID: "group-1", ElderID: "elder-1", ElderName: "Margaret",
		Date: "2026-03-02", StartTime: "09:00", EndTime: "17:00",
		Status: db.ShiftOpen,
	})
	store.caregivers = []db.Caregiver{
		{ID: "cg-a", Name: "Alice", ElderAccess: []string{"elder-1"}, Availability: allWeek(), PriorAssignments: 3},
		{ID: "cg-b", Name: "Bob", ElderAccess: []string{"elder-1"}, Availability: allWeek()},
		{ID: "cg-x", Name: "Xavier", ElderAccess: []string{"elder-9"}, Availability: allWeek()},
	}
	engine := cascade.NewEngine(store, zap.NewNop())

	result, err := BeginCascade(context.Background(), store, store, engine, zap.NewNop(), "shift-1")
	require.NoError(t, err)
	require.NotNil(t, result)

	// cg-x lacks an access grant; cg-a outranks cg-b on prior assignments.
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "cg-a", result.Candidates[0].CaregiverID)
	assert.Equal(t, "cg-b", result.Candidates[1].CaregiverID)

	assert.Equal(t, db.ShiftOffered, result.Shift.Status)
	require.NotNil(t, result.Shift.Cascade)
	assert.Equal(t, 0, result.Shift.Cascade.CurrentOfferIndex)
	require.Len(t, store.notifications, 1)
	assert.Equal(t, "cg-a", store.notifications[0].UserID)
}

func TestBeginCascade_NoEligibleCaregivers(t *testing.T) {
	store := newFakeStore(&db.Shift{
		ID: "shift-1", GroupID: "group-1", ElderID: "elder-1",
		Date: "2026-03-02", Status: db.ShiftOpen,
	})
	store.caregivers = []db.Caregiver{
		{ID: "cg-x", Name: "Xavier", ElderAccess: []string{"elder-9"}, Availability: allWeek()},
	}
	engine := cascade.NewEngine(store, zap.NewNop())

	_, err := BeginCascade(context.Background(), store, store, engine, zap.NewNop(), "shift-1")
	assert.ErrorIs(t, err, cascade.ErrNoCandidates)
}

func TestBeginCascade_ShiftNotFound(t *testing.T) {
	store := newFakeStore()
	engine := cascade.NewEngine(store, zap.NewNop())

	_, err := BeginCascade(context.Background(), store, store, engine, zap.NewNop(), "missing")
	assert.ErrorIs(t, err, db.ErrShiftNotFound)
}

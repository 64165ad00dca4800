package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evercare/careshift/pkg/db"
)

// memStore is an in-memory db.ShiftStore with the same compare-and-swap
// contract as the postgres store: mutations run against a snapshot and only
// commit if the revision is unchanged, retrying on conflict.
type memStore struct {
	mu            sync.Mutex
	shifts        map[string]*db.Shift
	notifications []db.Notification
	failCommits   bool // force every commit to conflict
}

const memStoreMaxAttempts = 5

func newMemStore(shifts ...*db.Shift) *memStore {
	s := &memStore{shifts: make(map[string]*db.Shift)}
	for _, shift := range shifts {
		s.shifts[shift.ID] = cloneShift(shift)
	}
	return s
}

func cloneShift(s *db.Shift) *db.Shift {
	clone := *s
	if s.Cascade != nil {
		cs := *s.Cascade
		cs.RankedCandidates = append([]db.Candidate(nil), s.Cascade.RankedCandidates...)
		cs.OfferHistory = append([]db.OfferRecord(nil), s.Cascade.OfferHistory...)
		if s.Cascade.CurrentOfferExpiresAt != nil {
			t := *s.Cascade.CurrentOfferExpiresAt
			cs.CurrentOfferExpiresAt = &t
		}
		clone.Cascade = &cs
	}
	return &clone
}

func (m *memStore) GetShift(ctx context.Context, shiftID string) (*db.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shift, ok := m.shifts[shiftID]
	if !ok {
		return nil, db.ErrShiftNotFound
	}
	return cloneShift(shift), nil
}

func (m *memStore) InsertShift(ctx context.Context, shift *db.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[shift.ID] = cloneShift(shift)
	return nil
}

func (m *memStore) ListShifts(ctx context.Context, groupID string) ([]db.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Shift
	for _, s := range m.shifts {
		if groupID == "" || s.GroupID == groupID {
			out = append(out, *cloneShift(s))
		}
	}
	return out, nil
}

func (m *memStore) ListDueOffers(ctx context.Context, now time.Time) ([]db.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Shift
	for _, s := range m.shifts {
		if s.Status == db.ShiftOffered && s.Cascade != nil && s.Cascade.OfferDue(now) {
			out = append(out, *cloneShift(s))
		}
	}
	return out, nil
}

func (m *memStore) MutateShift(ctx context.Context, shiftID string, fn db.ShiftMutation) error {
	for attempt := 0; attempt < memStoreMaxAttempts; attempt++ {
		m.mu.Lock()
		stored, ok := m.shifts[shiftID]
		if !ok {
			m.mu.Unlock()
			return db.ErrShiftNotFound
		}
		snapshot := cloneShift(stored)
		m.mu.Unlock()

		notifs, err := fn(snapshot)
		if err != nil {
			return err
		}

		m.mu.Lock()
		stored, ok = m.shifts[shiftID]
		if !ok {
			m.mu.Unlock()
			return db.ErrShiftNotFound
		}
		if m.failCommits || stored.Revision != snapshot.Revision {
			m.mu.Unlock()
			continue
		}
		snapshot.Revision++
		m.shifts[shiftID] = snapshot
		m.notifications = append(m.notifications, notifs...)
		m.mu.Unlock()
		return nil
	}
	return fmt.Errorf("mutating shift %s: %w", shiftID, db.ErrRevisionConflict)
}

func (m *memStore) notificationsOfType(kind string) []db.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Notification
	for _, n := range m.notifications {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

var candidatesABC = []db.Candidate{
	{CaregiverID: "cg-a", CaregiverName: "Alice"},
	{CaregiverID: "cg-b", CaregiverName: "Bob"},
	{CaregiverID: "cg-c", CaregiverName: "Carol"},
}

func offeredShift(expires time.Time) *db.Shift {
	return &db.Shift{
		ID:        "shift-1",
		GroupID:   "group-1",
		ElderID:   "elder-1",
		ElderName: "Margaret",
		Date:      "2026-03-02",
		StartTime: "09:00",
		EndTime:   "17:00",
		Status:    db.ShiftOffered,
		Cascade: &db.CascadeState{
			RankedCandidates:      append([]db.Candidate(nil), candidatesABC...),
			CurrentOfferIndex:     0,
			CurrentOfferExpiresAt: &expires,
			OfferHistory: []db.OfferRecord{
				{CaregiverID: "cg-a", Response: db.ResponsePending, OfferedAt: expires.Add(-DefaultOfferWindow)},
			},
		},
	}
}

func newTestEngine(store *memStore, opts ...Option) *Engine {
	return NewEngine(store, zap.NewNop(), opts...)
}

func TestBegin(t *testing.T) {
	store := newMemStore(&db.Shift{
		ID: "shift-1", GroupID: "group-1", ElderID: "elder-1", ElderName: "Margaret",
		Date: "2026-03-02", StartTime: "09:00", EndTime: "17:00",
		Status: db.ShiftOpen,
	})
	engine := newTestEngine(store)

	require.NoError(t, engine.Begin(context.Background(), "shift-1", candidatesABC))

	shift, err := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, db.ShiftOffered, shift.Status)
	require.NotNil(t, shift.Cascade)
	assert.Equal(t, 0, shift.Cascade.CurrentOfferIndex)
	require.NotNil(t, shift.Cascade.CurrentOfferExpiresAt)
	require.Len(t, shift.Cascade.OfferHistory, 1)
	assert.Equal(t, db.ResponsePending, shift.Cascade.OfferHistory[0].Response)
	assert.NoError(t, shift.Cascade.Validate(shift.Status))

	offers := store.notificationsOfType(db.NotificationShiftOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "cg-a", offers[0].UserID)
	assert.True(t, offers[0].ActionRequired)
	assert.Contains(t, offers[0].Message, "Margaret")
}

func TestBegin_NoCandidates(t *testing.T) {
	store := newMemStore(&db.Shift{ID: "shift-1", Status: db.ShiftOpen})
	engine := newTestEngine(store)

	err := engine.Begin(context.Background(), "shift-1", nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestBegin_NotOpen(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	engine := newTestEngine(store)

	err := engine.Begin(context.Background(), "shift-1", candidatesABC)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAccept(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	engine := newTestEngine(store)

	require.NoError(t, engine.Accept(context.Background(), "shift-1", "cg-a"))

	shift, err := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, db.ShiftScheduled, shift.Status)
	assert.Equal(t, "cg-a", shift.CaregiverID)
	assert.Equal(t, "Alice", shift.CaregiverName)
	assert.Nil(t, shift.Cascade.CurrentOfferExpiresAt)
	assert.Equal(t, db.ResponseAccepted, shift.Cascade.OfferHistory[0].Response)
	require.NotNil(t, shift.Cascade.OfferHistory[0].RespondedAt)
	assert.NoError(t, shift.Cascade.Validate(shift.Status))

	assigned := store.notificationsOfType(db.NotificationShiftAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, "cg-a", assigned[0].UserID)
	assert.Equal(t, "group-1", assigned[0].GroupID)
	assert.False(t, assigned[0].Read)
	assert.False(t, assigned[0].Dismissed)
	assert.False(t, assigned[0].ActionRequired)
	assert.Contains(t, assigned[0].Message, "Monday, 2 Mar 2026")
	assert.Contains(t, assigned[0].Message, "09:00")
	assert.Contains(t, assigned[0].Message, "17:00")
}

func TestAccept_NotCurrentOfferee(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	engine := newTestEngine(store)

	// Caller B appears later in rankedCandidates but does not hold the offer.
	err := engine.Accept(context.Background(), "shift-1", "cg-b")
	assert.ErrorIs(t, err, ErrNotCurrentOfferee)

	shift, getErr := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, getErr)
	assert.Equal(t, db.ShiftOffered, shift.Status)
	assert.Empty(t, shift.CaregiverID)
	assert.Equal(t, db.ResponsePending, shift.Cascade.OfferHistory[0].Response)
	assert.Empty(t, store.notifications)
}

func TestAccept_Expired(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(-time.Minute)))
	engine := newTestEngine(store)

	err := engine.Accept(context.Background(), "shift-1", "cg-a")
	assert.ErrorIs(t, err, ErrExpiredOffer)

	shift, getErr := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, getErr)
	assert.Equal(t, db.ShiftOffered, shift.Status)
	assert.Equal(t, db.ResponsePending, shift.Cascade.OfferHistory[0].Response)
	assert.Empty(t, store.notifications)
}

func TestAccept_NotFound(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)

	err := engine.Accept(context.Background(), "missing", "cg-a")
	assert.ErrorIs(t, err, db.ErrShiftNotFound)
}

func TestAccept_StaleAfterScheduled(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	engine := newTestEngine(store)

	require.NoError(t, engine.Accept(context.Background(), "shift-1", "cg-a"))

	err := engine.Accept(context.Background(), "shift-1", "cg-a")
	assert.ErrorIs(t, err, ErrStaleOffer)
}

func TestAccept_AcceptRace(t *testing.T) {
	// Two concurrent accepts from the current offeree: exactly one commits,
	// the other re-reads a scheduled shift and observes a stale offer.
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	engine := newTestEngine(store)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- engine.Accept(context.Background(), "shift-1", "cg-a")
		}()
	}
	wg.Wait()
	close(errs)

	var wins, stale int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrStaleOffer):
			stale++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, stale)

	shift, err := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, db.ShiftScheduled, shift.Status)
	assert.Len(t, store.notificationsOfType(db.NotificationShiftAssigned), 1)
}

func TestDecline_Advances(t *testing.T) {
	firstExpiry := time.Now().Add(10 * time.Minute)
	store := newMemStore(offeredShift(firstExpiry))
	engine := newTestEngine(store)

	require.NoError(t, engine.Decline(context.Background(), "shift-1", "cg-a"))

	shift, err := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, db.ShiftOffered, shift.Status)
	assert.Equal(t, 1, shift.Cascade.CurrentOfferIndex)
	assert.Equal(t, db.ResponseDeclined, shift.Cascade.OfferHistory[0].Response)
	require.Len(t, shift.Cascade.OfferHistory, 2)
	assert.Equal(t, "cg-b", shift.Cascade.OfferHistory[1].CaregiverID)
	assert.Equal(t, db.ResponsePending, shift.Cascade.OfferHistory[1].Response)
	require.NotNil(t, shift.Cascade.CurrentOfferExpiresAt)
	assert.True(t, shift.Cascade.CurrentOfferExpiresAt.After(firstExpiry))
	assert.NoError(t, shift.Cascade.Validate(shift.Status))

	offers := store.notificationsOfType(db.NotificationShiftOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "cg-b", offers[0].UserID)
}

func TestDecline_DeclinedCandidateCannotAccept(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	engine := newTestEngine(store)

	require.NoError(t, engine.Decline(context.Background(), "shift-1", "cg-a"))

	err := engine.Accept(context.Background(), "shift-1", "cg-a")
	assert.ErrorIs(t, err, ErrNotCurrentOfferee)

	// The new offeree can still accept.
	require.NoError(t, engine.Accept(context.Background(), "shift-1", "cg-b"))
	shift, getErr := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, getErr)
	assert.Equal(t, "cg-b", shift.CaregiverID)
}

func TestDecline_Exhaustion(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	engine := newTestEngine(store, WithEscalationUser("coordinator-1"))
	ctx := context.Background()

	require.NoError(t, engine.Decline(ctx, "shift-1", "cg-a"))
	require.NoError(t, engine.Decline(ctx, "shift-1", "cg-b"))
	require.NoError(t, engine.Decline(ctx, "shift-1", "cg-c"))

	shift, err := store.GetShift(ctx, "shift-1")
	require.NoError(t, err)
	assert.Equal(t, db.ShiftOpen, shift.Status)
	assert.Empty(t, shift.CaregiverID)
	assert.True(t, shift.Cascade.Exhausted())
	assert.Nil(t, shift.Cascade.CurrentOfferExpiresAt)
	for _, rec := range shift.Cascade.OfferHistory {
		assert.Equal(t, db.ResponseDeclined, rec.Response)
	}

	exhausted := store.notificationsOfType(db.NotificationCascadeExhausted)
	require.Len(t, exhausted, 1)
	assert.Equal(t, "coordinator-1", exhausted[0].UserID)
	assert.True(t, exhausted[0].ActionRequired)
}

func TestExpire_Advances(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(-time.Minute)))
	engine := newTestEngine(store)

	advanced, err := engine.Expire(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.True(t, advanced)

	shift, err := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, 1, shift.Cascade.CurrentOfferIndex)
	assert.Equal(t, db.ResponseExpired, shift.Cascade.OfferHistory[0].Response)
	assert.Equal(t, db.ResponsePending, shift.Cascade.OfferHistory[1].Response)
	assert.NoError(t, shift.Cascade.Validate(shift.Status))

	offers := store.notificationsOfType(db.NotificationShiftOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "cg-b", offers[0].UserID)
}

func TestExpire_SkipsWhenNotDue(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	engine := newTestEngine(store)

	advanced, err := engine.Expire(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.False(t, advanced)

	shift, getErr := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, getErr)
	assert.Equal(t, 0, shift.Cascade.CurrentOfferIndex)
	assert.Empty(t, store.notifications)
}

func TestExpire_SkipsScheduledShift(t *testing.T) {
	// A sweep racing a successful accept must not double-advance.
	store := newMemStore(offeredShift(time.Now().Add(time.Second)))
	engine := newTestEngine(store)

	require.NoError(t, engine.Accept(context.Background(), "shift-1", "cg-a"))

	advanced, err := engine.Expire(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.False(t, advanced)

	shift, getErr := store.GetShift(context.Background(), "shift-1")
	require.NoError(t, getErr)
	assert.Equal(t, db.ShiftScheduled, shift.Status)
	assert.Equal(t, "cg-a", shift.CaregiverID)
}

func TestAccept_RetriesExhausted(t *testing.T) {
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	store.failCommits = true
	engine := newTestEngine(store)

	err := engine.Accept(context.Background(), "shift-1", "cg-a")
	assert.ErrorIs(t, err, db.ErrRevisionConflict)
}

func TestScenario_FullCascadeWalk(t *testing.T) {
	// S1 with candidates [A, B, C]: B fails to accept, A accepts.
	store := newMemStore(offeredShift(time.Now().Add(time.Hour)))
	engine := newTestEngine(store)
	ctx := context.Background()

	err := engine.Accept(ctx, "shift-1", "cg-b")
	assert.ErrorIs(t, err, ErrNotCurrentOfferee)

	require.NoError(t, engine.Accept(ctx, "shift-1", "cg-a"))

	shift, err := store.GetShift(ctx, "shift-1")
	require.NoError(t, err)
	assert.Equal(t, db.ShiftScheduled, shift.Status)
	assert.Equal(t, "cg-a", shift.CaregiverID)
	assert.Nil(t, shift.Cascade.CurrentOfferExpiresAt)

	assigned := store.notificationsOfType(db.NotificationShiftAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, "cg-a", assigned[0].UserID)
}

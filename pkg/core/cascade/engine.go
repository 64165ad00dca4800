package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evercare/careshift/pkg/db"
)

// DefaultOfferWindow is how long each candidate holds the live offer before
// the expiration sweep advances past them.
const DefaultOfferWindow = 30 * time.Minute

// Engine applies accept, decline, expire and begin transitions to a shift's
// cascade state. Every transition runs inside a single transactional
// read-modify-write against the shift record (db.ShiftStore.MutateShift), so
// concurrent callers racing on the same shift cannot both succeed.
type Engine struct {
	store  db.ShiftStore
	window time.Duration
	now    func() time.Time
	logger *zap.Logger

	// escalateTo is the user that receives cascade_exhausted notifications;
	// empty disables the record and exhaustion is only logged.
	escalateTo string
}

// Option configures an Engine.
type Option func(*Engine)

// WithOfferWindow overrides the offer window duration.
func WithOfferWindow(d time.Duration) Option {
	return func(e *Engine) { e.window = d }
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEscalationUser sets the coordinator account notified when a cascade
// exhausts its candidates.
func WithEscalationUser(userID string) Option {
	return func(e *Engine) { e.escalateTo = userID }
}

// NewEngine creates a transition engine over the given store.
func NewEngine(store db.ShiftStore, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		window: DefaultOfferWindow,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Begin starts the cascade for an open shift: the first candidate gets the
// live offer, a pending history entry and an offer notification.
func (e *Engine) Begin(ctx context.Context, shiftID string, candidates []db.Candidate) error {
	if len(candidates) == 0 {
		return ErrNoCandidates
	}

	err := e.store.MutateShift(ctx, shiftID, func(shift *db.Shift) ([]db.Notification, error) {
		if shift.Status != db.ShiftOpen {
			return nil, fmt.Errorf("cannot start offers on %s shift: %w", shift.Status, ErrInvalidState)
		}

		now := e.now()
		expires := now.Add(e.window)
		shift.Status = db.ShiftOffered
		shift.Cascade = &db.CascadeState{
			RankedCandidates:      candidates,
			CurrentOfferIndex:     0,
			CurrentOfferExpiresAt: &expires,
			OfferHistory: []db.OfferRecord{
				{CaregiverID: candidates[0].CaregiverID, Response: db.ResponsePending, OfferedAt: now},
			},
		}

		notif := e.offerNotification(shift, candidates[0], now)
		return []db.Notification{notif}, nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Cascade started",
		zap.String("shift_id", shiftID),
		zap.Int("candidates", len(candidates)),
		zap.String("first_offeree", candidates[0].CaregiverID))
	return nil
}

// Accept records the current offeree taking the shift. On success the shift
// is scheduled for the caller, the pending history entry is resolved, the
// offer window is closed and a shift_assigned notification is written, all in
// one transaction.
func (e *Engine) Accept(ctx context.Context, shiftID, callerID string) error {
	err := e.store.MutateShift(ctx, shiftID, func(shift *db.Shift) ([]db.Notification, error) {
		now := e.now()
		candidate, err := e.checkOfferee(shift, callerID)
		if err != nil {
			return nil, err
		}
		if shift.Cascade.CurrentOfferExpiresAt != nil && shift.Cascade.CurrentOfferExpiresAt.Before(now) {
			return nil, ErrExpiredOffer
		}

		idx, lookup := shift.Cascade.FindHistory(callerID)
		if lookup != db.HistoryPending {
			return nil, fmt.Errorf("no pending offer entry for caregiver %s: %w", callerID, ErrInvalidState)
		}

		shift.Status = db.ShiftScheduled
		shift.CaregiverID = candidate.CaregiverID
		shift.CaregiverName = candidate.CaregiverName
		shift.Cascade.OfferHistory[idx].Response = db.ResponseAccepted
		shift.Cascade.OfferHistory[idx].RespondedAt = &now
		shift.Cascade.CurrentOfferExpiresAt = nil

		notif := db.Notification{
			ID:        uuid.New().String(),
			UserID:    candidate.CaregiverID,
			GroupID:   shift.GroupID,
			ElderID:   shift.ElderID,
			Type:      db.NotificationShiftAssigned,
			Title:     "Shift assigned",
			Message:   fmt.Sprintf("You are scheduled to care for %s on %s.", shift.ElderName, shiftWhen(shift)),
			CreatedAt: now,
		}
		return []db.Notification{notif}, nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Offer accepted",
		zap.String("shift_id", shiftID),
		zap.String("caregiver_id", callerID))
	return nil
}

// Decline records the current offeree turning the shift down and advances the
// offer to the next ranked candidate.
func (e *Engine) Decline(ctx context.Context, shiftID, callerID string) error {
	err := e.store.MutateShift(ctx, shiftID, func(shift *db.Shift) ([]db.Notification, error) {
		if _, err := e.checkOfferee(shift, callerID); err != nil {
			return nil, err
		}
		return e.advance(shift, db.ResponseDeclined)
	})
	if err != nil {
		return err
	}

	e.logger.Info("Offer declined",
		zap.String("shift_id", shiftID),
		zap.String("caregiver_id", callerID))
	return nil
}

// Expire treats a closed offer window as a decline-by-timeout for the current
// offeree. It reports whether the shift was advanced; a shift whose offer is
// no longer due when re-read inside the transaction (a concurrent accept or
// decline won the race) is left untouched.
func (e *Engine) Expire(ctx context.Context, shiftID string) (bool, error) {
	advanced := false
	err := e.store.MutateShift(ctx, shiftID, func(shift *db.Shift) ([]db.Notification, error) {
		advanced = false
		if shift.Status != db.ShiftOffered || shift.Cascade == nil {
			return nil, nil
		}
		if !shift.Cascade.OfferDue(e.now()) {
			return nil, nil
		}
		if shift.Cascade.CurrentCandidate() == nil {
			return nil, fmt.Errorf("offered shift has no current candidate: %w", ErrInvalidState)
		}

		notifs, err := e.advance(shift, db.ResponseExpired)
		if err != nil {
			return nil, err
		}
		advanced = true
		return notifs, nil
	})
	if err != nil {
		return false, err
	}

	if advanced {
		e.logger.Info("Offer expired, cascade advanced", zap.String("shift_id", shiftID))
	} else {
		e.logger.Debug("Expire skipped, offer no longer due", zap.String("shift_id", shiftID))
	}
	return advanced, nil
}

// checkOfferee validates the shared accept/decline preconditions: the shift
// is offered, carries cascade state, and the caller is the current offeree.
func (e *Engine) checkOfferee(shift *db.Shift, callerID string) (*db.Candidate, error) {
	if shift.Status != db.ShiftOffered {
		return nil, ErrStaleOffer
	}
	if shift.Cascade == nil {
		return nil, ErrInvalidState
	}
	candidate := shift.Cascade.CurrentCandidate()
	if candidate == nil {
		return nil, fmt.Errorf("offered shift has no current candidate: %w", ErrInvalidState)
	}
	if candidate.CaregiverID != callerID {
		return nil, ErrNotCurrentOfferee
	}
	return candidate, nil
}

// advance resolves the pending history entry with the given response and
// moves the live offer to the next candidate. When no candidates remain the
// shift goes back to open for human re-planning and the coordinator is
// notified.
func (e *Engine) advance(shift *db.Shift, response db.OfferResponse) ([]db.Notification, error) {
	cs := shift.Cascade
	now := e.now()

	current := cs.CurrentCandidate()
	idx, lookup := cs.FindHistory(current.CaregiverID)
	if lookup != db.HistoryPending {
		return nil, fmt.Errorf("no pending offer entry for caregiver %s: %w", current.CaregiverID, ErrInvalidState)
	}
	cs.OfferHistory[idx].Response = response
	cs.OfferHistory[idx].RespondedAt = &now

	cs.CurrentOfferIndex++
	if cs.Exhausted() {
		cs.CurrentOfferExpiresAt = nil
		shift.Status = db.ShiftOpen

		e.logger.Warn("Cascade exhausted, shift needs re-planning",
			zap.String("shift_id", shift.ID),
			zap.Int("candidates_tried", len(cs.OfferHistory)))

		if e.escalateTo == "" {
			return nil, nil
		}
		notif := db.Notification{
			ID:             uuid.New().String(),
			UserID:         e.escalateTo,
			GroupID:        shift.GroupID,
			ElderID:        shift.ElderID,
			Type:           db.NotificationCascadeExhausted,
			Title:          "Shift could not be filled",
			Message:        fmt.Sprintf("All %d caregivers were offered the shift for %s on %s without accepting.", len(cs.RankedCandidates), shift.ElderName, shiftWhen(shift)),
			ActionRequired: true,
			CreatedAt:      now,
		}
		return []db.Notification{notif}, nil
	}

	next := cs.RankedCandidates[cs.CurrentOfferIndex]
	expires := now.Add(e.window)
	cs.CurrentOfferExpiresAt = &expires
	cs.OfferHistory = append(cs.OfferHistory, db.OfferRecord{
		CaregiverID: next.CaregiverID,
		Response:    db.ResponsePending,
		OfferedAt:   now,
	})

	return []db.Notification{e.offerNotification(shift, next, now)}, nil
}

func (e *Engine) offerNotification(shift *db.Shift, candidate db.Candidate, now time.Time) db.Notification {
	return db.Notification{
		ID:             uuid.New().String(),
		UserID:         candidate.CaregiverID,
		GroupID:        shift.GroupID,
		ElderID:        shift.ElderID,
		Type:           db.NotificationShiftOffer,
		Title:          "New shift offer",
		Message:        fmt.Sprintf("You have been offered a shift caring for %s on %s. Accept before the offer expires.", shift.ElderName, shiftWhen(shift)),
		ActionRequired: true,
		CreatedAt:      now,
	}
}

// shiftWhen renders the shift's date and time range for notification messages.
func shiftWhen(shift *db.Shift) string {
	when := shift.Date
	if parsed, err := time.Parse("2006-01-02", shift.Date); err == nil {
		when = parsed.Format("Monday, 2 Jan 2006")
	}
	return fmt.Sprintf("%s from %s to %s", when, shift.StartTime, shift.EndTime)
}

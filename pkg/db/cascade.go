package db

import (
	"fmt"
	"time"
)

// HistoryLookup tags the result of searching the offer history for a caregiver.
type HistoryLookup int

const (
	// HistoryMissing means the caregiver has no entry in the offer history.
	HistoryMissing HistoryLookup = iota
	// HistoryPending means the caregiver's entry is still awaiting a response.
	HistoryPending
	// HistoryResolved means the caregiver's entry was already answered
	// (accepted, declined or expired).
	HistoryResolved
)

// FindHistory locates the offer history entry for the given caregiver and
// reports its state. When a caregiver appears more than once (re-offered after
// an earlier expiry) the latest entry wins. The returned index is -1 when the
// lookup is HistoryMissing.
func (cs *CascadeState) FindHistory(caregiverID string) (int, HistoryLookup) {
	for i := len(cs.OfferHistory) - 1; i >= 0; i-- {
		if cs.OfferHistory[i].CaregiverID != caregiverID {
			continue
		}
		if cs.OfferHistory[i].Response == ResponsePending {
			return i, HistoryPending
		}
		return i, HistoryResolved
	}
	return -1, HistoryMissing
}

// CurrentCandidate returns the candidate holding the live offer, or nil when
// the offer cursor is out of range (cascade not started or exhausted).
func (cs *CascadeState) CurrentCandidate() *Candidate {
	if cs.CurrentOfferIndex < 0 || cs.CurrentOfferIndex >= len(cs.RankedCandidates) {
		return nil
	}
	return &cs.RankedCandidates[cs.CurrentOfferIndex]
}

// Exhausted reports whether the offer cursor has advanced past the last
// ranked candidate.
func (cs *CascadeState) Exhausted() bool {
	return cs.CurrentOfferIndex >= len(cs.RankedCandidates)
}

// OfferDue reports whether the live offer window has closed at the given time.
func (cs *CascadeState) OfferDue(now time.Time) bool {
	return cs.CurrentOfferExpiresAt != nil && !cs.CurrentOfferExpiresAt.After(now)
}

// Validate checks the cascade invariants for a shift in the given status:
// the offer cursor in range while offered, at most one pending history entry,
// and that entry belonging to the current offeree.
func (cs *CascadeState) Validate(status ShiftStatus) error {
	pending := -1
	for i, rec := range cs.OfferHistory {
		if rec.Response != ResponsePending {
			continue
		}
		if pending >= 0 {
			return fmt.Errorf("offer history has multiple pending entries (%d and %d)", pending, i)
		}
		pending = i
	}

	if status != ShiftOffered {
		if pending >= 0 {
			return fmt.Errorf("pending offer history entry on %s shift", status)
		}
		return nil
	}

	current := cs.CurrentCandidate()
	if current == nil {
		return fmt.Errorf("offer cursor %d out of range (%d candidates)", cs.CurrentOfferIndex, len(cs.RankedCandidates))
	}
	if pending < 0 {
		return fmt.Errorf("offered shift has no pending offer history entry")
	}
	if cs.OfferHistory[pending].CaregiverID != current.CaregiverID {
		return fmt.Errorf("pending entry belongs to %s, current offeree is %s",
			cs.OfferHistory[pending].CaregiverID, current.CaregiverID)
	}
	return nil
}

package cascade

import "errors"

// Offer transition errors. Handlers surface these messages verbatim to the
// caller, so they are phrased for end users.
var (
	// ErrStaleOffer means the shift is no longer in status offered; some other
	// transition (an accept, a cancellation) already closed the offer.
	ErrStaleOffer = errors.New("this shift is no longer available")

	// ErrNotCurrentOfferee means the caller is not the candidate currently
	// holding the live offer.
	ErrNotCurrentOfferee = errors.New("this offer is not currently assigned to you")

	// ErrExpiredOffer means the caller's offer window has already closed.
	ErrExpiredOffer = errors.New("this offer has expired")

	// ErrInvalidState means the shift record has no usable cascade state.
	ErrInvalidState = errors.New("shift has no active offer workflow")

	// ErrNoCandidates means ranking produced nobody to offer the shift to.
	ErrNoCandidates = errors.New("no eligible caregivers for this shift")
)

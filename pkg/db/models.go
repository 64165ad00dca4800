package db

import "time"

// ShiftStatus is the lifecycle state of a shift.
type ShiftStatus string

const (
	ShiftOpen      ShiftStatus = "open"
	ShiftOffered   ShiftStatus = "offered"
	ShiftScheduled ShiftStatus = "scheduled"
	ShiftCancelled ShiftStatus = "cancelled"
)

// OfferResponse is the outcome recorded for one offered candidate.
type OfferResponse string

const (
	ResponsePending  OfferResponse = "pending"
	ResponseAccepted OfferResponse = "accepted"
	ResponseDeclined OfferResponse = "declined"
	ResponseExpired  OfferResponse = "expired"
)

// Shift represents one schedulable unit of care work.
//
// CaregiverID is set exactly when Status is ShiftScheduled. Revision is the
// compare-and-swap token for the record; every store mutation must match the
// revision it read or be retried on a fresh snapshot.
type Shift struct {
	ID            string
	GroupID       string
	ElderID       string
	ElderName     string
	Date          string // 2006-01-02
	StartTime     string // 15:04
	EndTime       string // 15:04
	Status        ShiftStatus
	CaregiverID   string
	CaregiverName string
	Cascade       *CascadeState
	Revision      int64
}

// Candidate identifies one caregiver in the ranked offer order.
type Candidate struct {
	CaregiverID   string `json:"caregiverId"`
	CaregiverName string `json:"caregiverName"`
}

// OfferRecord is one append-only entry in a cascade's offer history.
type OfferRecord struct {
	CaregiverID string        `json:"caregiverId"`
	Response    OfferResponse `json:"response"`
	OfferedAt   time.Time     `json:"offeredAt"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`
}

// CascadeState is the in-progress offer workflow embedded in a shift.
//
// RankedCandidates is fixed once computed; insertion order is priority order.
// While the shift is offered, CurrentOfferIndex addresses the active offeree
// and exactly one history entry is pending for that caregiver. Once the
// cascade ends CurrentOfferIndex may sit one past the last candidate
// (exhausted) and CurrentOfferExpiresAt is nil.
type CascadeState struct {
	RankedCandidates      []Candidate   `json:"rankedCandidates"`
	CurrentOfferIndex     int           `json:"currentOfferIndex"`
	CurrentOfferExpiresAt *time.Time    `json:"currentOfferExpiresAt,omitempty"`
	OfferHistory          []OfferRecord `json:"offerHistory"`
}

// Notification kinds produced by cascade transitions.
const (
	NotificationShiftOffer       = "shift_offer"
	NotificationShiftAssigned    = "shift_assigned"
	NotificationCascadeExhausted = "cascade_exhausted"
)

// Notification is a record informing a user of a cascade outcome. It is
// written once, in the same transaction as the state transition that caused
// it, and never mutated by this subsystem afterwards.
type Notification struct {
	ID             string
	UserID         string
	GroupID        string
	ElderID        string
	Type           string
	Title          string
	Message        string
	Read           bool
	Dismissed      bool
	ActionRequired bool
	CreatedAt      time.Time
}

// DayAvailability marks the weekdays a caregiver can work.
type DayAvailability map[time.Weekday]bool

// Caregiver is the ranking-relevant view of a caregiver profile.
type Caregiver struct {
	ID               string
	Name             string
	Availability     DayAvailability
	DistanceKm       float64  // distance to the elder's home
	PriorAssignments int      // completed shifts for this elder
	AgencyMember     bool
	ElderAccess      []string // elder ids this caregiver is granted access to
}

// HasAccessTo reports whether the caregiver holds an access grant for the elder.
func (c *Caregiver) HasAccessTo(elderID string) bool {
	for _, id := range c.ElderAccess {
		if id == elderID {
			return true
		}
	}
	return false
}

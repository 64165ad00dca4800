package ranker

// Built-in scoring weights for candidate prioritization
const (
	// WeightPriorAssignments is the weight applied per completed shift the
	// caregiver has worked for this elder. Continuity of care dominates the
	// ranking, so a familiar caregiver outranks a closer stranger.
	WeightPriorAssignments = 2.0

	// WeightProximity is the weight applied to the inverse of the caregiver's
	// distance to the elder's home. Contribution decays towards zero for
	// far-away caregivers rather than going negative.
	WeightProximity = 1.0

	// WeightAgencyMember is the flat bonus for caregivers employed by the
	// group's agency over independent family caregivers.
	WeightAgencyMember = 0.5

	// proximityScaleKm controls how quickly the proximity contribution decays.
	// A caregiver at this distance scores half the proximity weight.
	proximityScaleKm = 10.0
)

package ranker

import (
	"sort"
	"time"

	"github.com/evercare/careshift/pkg/db"
)

// Rank produces the ordered candidate list for a shift from the caregiver
// pool. Caregivers without an access grant for the shift's elder, or not
// available on the shift's weekday, are excluded. The remainder are ordered
// by score, highest first; ties break on caregiver id so the ordering is
// deterministic for a given input snapshot.
func Rank(shift *db.Shift, caregivers []db.Caregiver) []db.Candidate {
	type scored struct {
		caregiver *db.Caregiver
		score     float64
	}

	weekday, weekdayKnown := shiftWeekday(shift)

	var eligible []scored
	for i := range caregivers {
		cg := &caregivers[i]
		if !cg.HasAccessTo(shift.ElderID) {
			continue
		}
		if weekdayKnown && cg.Availability != nil && !cg.Availability[weekday] {
			continue
		}
		eligible = append(eligible, scored{caregiver: cg, score: score(cg)})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].score != eligible[j].score {
			return eligible[i].score > eligible[j].score
		}
		return eligible[i].caregiver.ID < eligible[j].caregiver.ID
	})

	candidates := make([]db.Candidate, len(eligible))
	for i, s := range eligible {
		candidates[i] = db.Candidate{
			CaregiverID:   s.caregiver.ID,
			CaregiverName: s.caregiver.Name,
		}
	}
	return candidates
}

// score computes the ranking score for one eligible caregiver by summing the
// weighted criteria contributions. Higher scores are offered first.
func score(cg *db.Caregiver) float64 {
	total := 0.0

	// Continuity: prior completed shifts for this elder.
	total += float64(cg.PriorAssignments) * WeightPriorAssignments

	// Proximity: decays with distance, never negative.
	total += WeightProximity * proximityScaleKm / (proximityScaleKm + cg.DistanceKm)

	if cg.AgencyMember {
		total += WeightAgencyMember
	}

	return total
}

func shiftWeekday(shift *db.Shift) (time.Weekday, bool) {
	parsed, err := time.Parse("2006-01-02", shift.Date)
	if err != nil {
		return 0, false
	}
	return parsed.Weekday(), true
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/evercare/careshift/pkg/db"
)

// ListCaregiversForElder retrieves the group's caregiver profiles with their
// elder access grants and, for ranking, the count of completed shifts each
// caregiver has worked for the given elder.
func (d *DB) ListCaregiversForElder(ctx context.Context, groupID, elderID string) ([]db.Caregiver, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT c.id, c.name, c.available_weekdays, c.distance_km, c.agency_member,
		       COALESCE(array_agg(ea.elder_id) FILTER (WHERE ea.elder_id IS NOT NULL), '{}'),
		       (SELECT COUNT(*) FROM shift s
		        WHERE s.caregiver_id = c.id AND s.elder_id = $2 AND s.status = 'scheduled')
		FROM caregiver c
		LEFT JOIN elder_access ea ON ea.caregiver_id = c.id
		WHERE c.group_id = $1
		GROUP BY c.id
		ORDER BY c.id
	`, groupID, elderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query caregivers: %w", err)
	}
	defer rows.Close()

	var caregivers []db.Caregiver
	for rows.Next() {
		var c db.Caregiver
		var weekdays []int16
		var priorAssignments int64
		if err := rows.Scan(&c.ID, &c.Name, &weekdays, &c.DistanceKm, &c.AgencyMember,
			&c.ElderAccess, &priorAssignments); err != nil {
			return nil, fmt.Errorf("failed to scan caregiver: %w", err)
		}
		c.PriorAssignments = int(priorAssignments)
		c.Availability = db.DayAvailability{}
		for _, day := range weekdays {
			c.Availability[time.Weekday(day)] = true
		}
		caregivers = append(caregivers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating caregivers: %w", err)
	}

	return caregivers, nil
}

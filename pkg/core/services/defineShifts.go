package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/evercare/careshift/internal/config"
	"github.com/evercare/careshift/pkg/db"
)

// DefineResult represents the outcome of expanding shift templates
type DefineResult struct {
	Created []db.Shift
	Skipped int // dates that already had a shift for the elder
}

// DefineShifts expands the configured recurring templates into open shifts
// between from and until (inclusive). Dates that already carry a shift for
// the template's elder are skipped so re-running is safe.
func DefineShifts(ctx context.Context, shifts db.ShiftStore, logger *zap.Logger, templates []config.ShiftTemplate, from, until time.Time) (*DefineResult, error) {
	logger.Info("Defining shifts from templates",
		zap.Int("templates", len(templates)),
		zap.Time("from", from),
		zap.Time("until", until))

	result := &DefineResult{}
	existingByGroup := make(map[string]map[string]bool)

	for i, template := range templates {
		rule, err := rrule.StrToRRule(template.RRule)
		if err != nil {
			return nil, fmt.Errorf("invalid rrule in template %d: %w", i, err)
		}
		rule.DTStart(from)

		existing, ok := existingByGroup[template.GroupID]
		if !ok {
			current, err := shifts.ListShifts(ctx, template.GroupID)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch existing shifts: %w", err)
			}
			existing = make(map[string]bool, len(current))
			for _, s := range current {
				existing[s.ElderID+"|"+s.Date] = true
			}
			existingByGroup[template.GroupID] = existing
		}

		dates := rule.Between(from, until, true)
		logger.Debug("Template expanded",
			zap.String("elder_id", template.ElderID),
			zap.String("rrule", template.RRule),
			zap.Int("dates", len(dates)))

		for _, date := range dates {
			key := template.ElderID + "|" + date.Format("2006-01-02")
			if existing[key] {
				result.Skipped++
				continue
			}

			shift := db.Shift{
				ID:        uuid.New().String(),
				GroupID:   template.GroupID,
				ElderID:   template.ElderID,
				ElderName: template.ElderName,
				Date:      date.Format("2006-01-02"),
				StartTime: template.StartTime,
				EndTime:   template.EndTime,
				Status:    db.ShiftOpen,
			}
			if err := shifts.InsertShift(ctx, &shift); err != nil {
				return nil, fmt.Errorf("failed to insert shift: %w", err)
			}
			existing[key] = true
			result.Created = append(result.Created, shift)
		}
	}

	logger.Info("Shift definition complete",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evercare/careshift/pkg/core/cascade"
	"github.com/evercare/careshift/pkg/db"
)

// SweepResult represents one run of the expiration sweep
type SweepResult struct {
	Advanced []string // shifts whose cascade moved to the next candidate
	Skipped  []string // shifts whose offer was no longer due when re-read
	Failed   []string // shifts whose expire transition errored
}

// ExpireDueOffers scans offered shifts whose offer window closed at or before
// now and advances each cascade past the timed-out offeree. Each shift is a
// separate transaction; one shift failing does not stop the sweep.
func ExpireDueOffers(ctx context.Context, shifts db.ShiftStore, engine *cascade.Engine, logger *zap.Logger, now time.Time) (*SweepResult, error) {
	logger.Debug("Running expiration sweep", zap.Time("now", now))

	due, err := shifts.ListDueOffers(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due offers: %w", err)
	}

	result := &SweepResult{}
	for _, shift := range due {
		advanced, err := engine.Expire(ctx, shift.ID)
		switch {
		case err != nil:
			logger.Error("Failed to expire offer",
				zap.String("shift_id", shift.ID),
				zap.Error(err))
			result.Failed = append(result.Failed, shift.ID)
		case advanced:
			result.Advanced = append(result.Advanced, shift.ID)
		default:
			result.Skipped = append(result.Skipped, shift.ID)
		}
	}

	if len(due) > 0 {
		logger.Info("Expiration sweep complete",
			zap.Int("due", len(due)),
			zap.Int("advanced", len(result.Advanced)),
			zap.Int("skipped", len(result.Skipped)),
			zap.Int("failed", len(result.Failed)))
	}

	return result, nil
}

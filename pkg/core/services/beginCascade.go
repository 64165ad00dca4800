package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/evercare/careshift/pkg/core/cascade"
	"github.com/evercare/careshift/pkg/core/ranker"
	"github.com/evercare/careshift/pkg/db"
)

// BeginResult represents the outcome of starting a cascade for a shift
type BeginResult struct {
	Shift      *db.Shift
	Candidates []db.Candidate
}

// BeginCascade ranks the eligible caregivers for an open shift and starts the
// offer cascade with the first candidate. The caregiver pool is the shift's
// group, ranked against the shift's elder.
func BeginCascade(ctx context.Context, shifts db.ShiftStore, caregivers db.CaregiverStore, engine *cascade.Engine, logger *zap.Logger, shiftID string) (*BeginResult, error) {
	logger.Info("Starting offer cascade", zap.String("shift_id", shiftID))

	shift, err := shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shift: %w", err)
	}

	logger.Debug("Fetching caregiver pool",
		zap.String("group_id", shift.GroupID),
		zap.String("elder_id", shift.ElderID))
	pool, err := caregivers.ListCaregiversForElder(ctx, shift.GroupID, shift.ElderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch caregivers: %w", err)
	}

	candidates := ranker.Rank(shift, pool)
	logger.Info("Candidates ranked",
		zap.String("shift_id", shiftID),
		zap.Int("pool_size", len(pool)),
		zap.Int("eligible", len(candidates)))

	if err := engine.Begin(ctx, shiftID, candidates); err != nil {
		return nil, err
	}

	shift, err = shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-fetch shift: %w", err)
	}

	return &BeginResult{Shift: shift, Candidates: candidates}, nil
}

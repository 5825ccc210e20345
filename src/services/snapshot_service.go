package services

import (
	"context"
	"time"

	"cryptofolio/src/models"
	"cryptofolio/src/repositories"
	"cryptofolio/src/schemas"
	"cryptofolio/src/utils"
)

// SnapshotService owns the history write path: single snapshots, scheduled
// sweeps over all non-zero balances, and retention pruning. The cron that
// triggers sweeps lives in the worker; this service only exposes the
// operations it invokes.
type SnapshotService struct {
	balanceRepo repositories.BalanceRepository
	historyRepo repositories.BalanceHistoryRepository

	hourlyRetentionDays  int
	historyRetentionDays int
}

func NewSnapshotService(
	balanceRepo repositories.BalanceRepository,
	historyRepo repositories.BalanceHistoryRepository,
	hourlyRetentionDays int,
	historyRetentionDays int,
) *SnapshotService {
	return &SnapshotService{
		balanceRepo:          balanceRepo,
		historyRepo:          historyRepo,
		hourlyRetentionDays:  hourlyRetentionDays,
		historyRetentionDays: historyRetentionDays,
	}
}

// Snapshot appends one immutable copy of the balance to the history store.
func (s *SnapshotService) Snapshot(ctx context.Context, balance *models.Balance, snapshotType schemas.SnapshotType, triggeredBy string) (*models.BalanceHistory, error) {
	record := models.SnapshotOf(balance, snapshotType, time.Now().UTC(), triggeredBy)
	if err := s.historyRepo.Append(ctx, record, nil); err != nil {
		return nil, err
	}
	return record, nil
}

// Sweep writes one snapshot per non-zero balance. Re-running a sweep is safe:
// history rows are never deduplicated, a duplicate cron firing just inflates
// snapshot volume.
func (s *SnapshotService) Sweep(ctx context.Context, snapshotType schemas.SnapshotType) (int, error) {
	balances, err := s.balanceRepo.ListNonZero(ctx)
	if err != nil {
		return 0, err
	}

	logger := utils.LoggerFromContext(ctx)
	triggeredBy := "scheduled_" + string(snapshotType)
	written := 0

	for i := range balances {
		record := models.SnapshotOf(&balances[i], snapshotType, time.Now().UTC(), triggeredBy)
		if err := s.historyRepo.Append(ctx, record, nil); err != nil {
			logger.WithError(err).WithField("balance_id", balances[i].ID).Error("snapshot sweep append failed")
			continue
		}
		written++
	}

	logger.WithFields(map[string]interface{}{
		"snapshot_type": snapshotType,
		"written":       written,
		"balances":      len(balances),
	}).Info("snapshot sweep finished")

	return written, nil
}

// Prune removes snapshots past their retention window: hourly rows age out
// quickly, everything else is kept for the long window.
func (s *SnapshotService) Prune(ctx context.Context) (int64, error) {
	now := time.Now().UTC()

	hourly, err := s.historyRepo.PruneBefore(ctx,
		[]schemas.SnapshotType{schemas.SnapshotHourly},
		now.AddDate(0, 0, -s.hourlyRetentionDays))
	if err != nil {
		return 0, err
	}

	rest, err := s.historyRepo.PruneBefore(ctx,
		[]schemas.SnapshotType{
			schemas.SnapshotTransaction,
			schemas.SnapshotDaily,
			schemas.SnapshotWeekly,
			schemas.SnapshotMonthly,
		},
		now.AddDate(0, 0, -s.historyRetentionDays))
	if err != nil {
		return hourly, err
	}

	return hourly + rest, nil
}

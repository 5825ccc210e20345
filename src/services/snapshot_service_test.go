package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptofolio/src/models"
	"cryptofolio/src/schemas"
	"cryptofolio/src/services"
)

func seedBalance(t *testing.T, repo *fakeBalanceRepo, walletID, tokenID int64, amount int64) *models.Balance {
	t.Helper()
	b := &models.Balance{
		WalletID:       &walletID,
		TokenID:        tokenID,
		LedgerPosition: models.ZeroPosition(),
	}
	b.RawAmount = decimal.NewFromInt(amount)
	b.DecimalAmount = decimal.NewFromInt(amount)
	require.NoError(t, repo.Create(context.Background(), b, nil))
	return b
}

func TestSnapshotCopiesBalanceState(t *testing.T) {
	balances := newFakeBalanceRepo()
	history := &fakeHistoryRepo{}
	svc := services.NewSnapshotService(balances, history, 7, 90)

	b := seedBalance(t, balances, 1, 1, 5)
	price := decimal.NewFromInt(40)
	b.CurrentPriceUSD = &price

	record, err := svc.Snapshot(context.Background(), b, schemas.SnapshotTransaction, "recalculation")
	require.NoError(t, err)

	assert.True(t, record.DecimalAmount.Equal(b.DecimalAmount))
	require.NotNil(t, record.TriggeredBy)
	assert.Equal(t, "recalculation", *record.TriggeredBy)
	assert.Equal(t, schemas.SnapshotTransaction, record.SnapshotType)
	require.Len(t, history.rows, 1)
}

func TestSweepSnapshotsNonZeroBalancesOnly(t *testing.T) {
	balances := newFakeBalanceRepo()
	history := &fakeHistoryRepo{}
	svc := services.NewSnapshotService(balances, history, 7, 90)

	seedBalance(t, balances, 1, 1, 5)
	seedBalance(t, balances, 1, 2, 3)
	seedBalance(t, balances, 1, 3, 0)

	written, err := svc.Sweep(context.Background(), schemas.SnapshotHourly)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	require.Len(t, history.rows, 2)

	for _, row := range history.rows {
		assert.Equal(t, schemas.SnapshotHourly, row.SnapshotType)
		require.NotNil(t, row.TriggeredBy)
		assert.Equal(t, "scheduled_hourly", *row.TriggeredBy)
	}
}

func TestPruneAppliesPerTypeRetention(t *testing.T) {
	balances := newFakeBalanceRepo()
	history := &fakeHistoryRepo{}
	svc := services.NewSnapshotService(balances, history, 7, 90)

	now := time.Now().UTC()
	seed := func(snapshotType schemas.SnapshotType, age time.Duration) {
		trigger := "scheduled_" + string(snapshotType)
		history.rows = append(history.rows, models.BalanceHistory{
			TokenID:      1,
			SnapshotDate: now.Add(-age),
			SnapshotType: snapshotType,
			TriggeredBy:  &trigger,
		})
	}

	seed(schemas.SnapshotHourly, 10*24*time.Hour) // past hourly retention
	seed(schemas.SnapshotHourly, 24*time.Hour)
	seed(schemas.SnapshotDaily, 100*24*time.Hour) // past long retention
	seed(schemas.SnapshotDaily, 10*24*time.Hour)  // old for hourly, fine for daily
	seed(schemas.SnapshotTransaction, 120*24*time.Hour)

	pruned, err := svc.Prune(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, pruned)

	require.Len(t, history.rows, 2)
	for _, row := range history.rows {
		if row.SnapshotType == schemas.SnapshotHourly {
			assert.True(t, row.SnapshotDate.After(now.AddDate(0, 0, -7)))
		} else {
			assert.True(t, row.SnapshotDate.After(now.AddDate(0, 0, -90)))
		}
	}
}

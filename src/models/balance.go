package models

import (
	"time"

	"github.com/shopspring/decimal"

	"cryptofolio/src/schemas"
)

// LedgerPosition is the numeric state shared by Balance and BalanceHistory.
// It is embedded by value in both so a snapshot is a plain copy.
type LedgerPosition struct {
	// RawAmount is the held quantity in the token's smallest unit.
	RawAmount decimal.Decimal `db:"amount"`
	// DecimalAmount is RawAmount / 10^decimals.
	DecimalAmount decimal.Decimal `db:"amount_decimal"`

	// AvgAcquisitionPriceUSD is the weighted average cost basis of the
	// currently held quantity.
	AvgAcquisitionPriceUSD decimal.Decimal `db:"avg_acquisition_price_usd"`
	// AvgDisposalPriceUSD is the weighted average price realized across all
	// disposals.
	AvgDisposalPriceUSD decimal.Decimal `db:"avg_disposal_price_usd"`

	// Lifetime cumulative counters; monotonically non-decreasing.
	TotalAcquiredDecimal decimal.Decimal `db:"total_acquired_decimal"`
	TotalDisposedDecimal decimal.Decimal `db:"total_disposed_decimal"`

	CurrentPriceUSD *decimal.Decimal `db:"price_usd"`
	LastPriceUpdate *time.Time       `db:"last_price_update"`
}

// ZeroPosition returns a fresh all-zero position, the starting state for a
// replay.
func ZeroPosition() LedgerPosition {
	return LedgerPosition{
		RawAmount:              decimal.Zero,
		DecimalAmount:          decimal.Zero,
		AvgAcquisitionPriceUSD: decimal.Zero,
		AvgDisposalPriceUSD:    decimal.Zero,
		TotalAcquiredDecimal:   decimal.Zero,
		TotalDisposedDecimal:   decimal.Zero,
	}
}

// Balance is the mutable row per (account, token, chain). It is created
// lazily on the first confirmed transaction for its key and deleted when a
// recalculation finds no transactions left.
type Balance struct {
	ID int64 `db:"id"`

	WalletID     *int64 `db:"wallet_id"`
	CexAccountID *int64 `db:"cex_account_id"`
	TokenID      int64  `db:"token_id"`
	ChainID      *int64 `db:"chain_id"`

	LedgerPosition

	// PreviousDecimalAmount holds the amount before the most recent
	// mutation, for delta display.
	PreviousDecimalAmount *decimal.Decimal `db:"previous_amount_decimal"`

	// Version is the optimistic-concurrency counter checked on update.
	Version int64 `db:"version"`

	LastUpdatedAt time.Time `db:"last_updated_at"`
	CreatedAt     time.Time `db:"created_at"`
}

func (b *Balance) Key() BalanceKey {
	return BalanceKey{
		WalletID:     b.WalletID,
		CexAccountID: b.CexAccountID,
		TokenID:      b.TokenID,
		ChainID:      b.ChainID,
	}
}

// BalanceHistory is an immutable snapshot of a balance. (snapshot_date) is
// part of the primary key to allow time-partitioned storage; rows are only
// ever removed by retention pruning.
type BalanceHistory struct {
	ID int64 `db:"id"`

	WalletID     *int64 `db:"wallet_id"`
	CexAccountID *int64 `db:"cex_account_id"`
	TokenID      int64  `db:"token_id"`
	ChainID      *int64 `db:"chain_id"`

	LedgerPosition

	SnapshotDate time.Time            `db:"snapshot_date"`
	SnapshotType schemas.SnapshotType `db:"snapshot_type"`
	TriggeredBy  *string              `db:"triggered_by"`
}

// SnapshotOf copies a balance's numeric state into a new history record.
func SnapshotOf(b *Balance, snapshotType schemas.SnapshotType, at time.Time, triggeredBy string) *BalanceHistory {
	return &BalanceHistory{
		WalletID:       b.WalletID,
		CexAccountID:   b.CexAccountID,
		TokenID:        b.TokenID,
		ChainID:        b.ChainID,
		LedgerPosition: b.LedgerPosition,
		SnapshotDate:   at,
		SnapshotType:   snapshotType,
		TriggeredBy:    &triggeredBy,
	}
}

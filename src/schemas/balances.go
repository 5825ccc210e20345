package schemas

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SnapshotType string

const (
	SnapshotTransaction SnapshotType = "transaction"
	SnapshotHourly      SnapshotType = "hourly"
	SnapshotDaily       SnapshotType = "daily"
	SnapshotWeekly      SnapshotType = "weekly"
	SnapshotMonthly     SnapshotType = "monthly"
)

func (s SnapshotType) Valid() bool {
	switch s {
	case SnapshotTransaction, SnapshotHourly, SnapshotDaily, SnapshotWeekly, SnapshotMonthly:
		return true
	}
	return false
}

type BalanceResponse struct {
	WalletUUID     *uuid.UUID `json:"wallet_uuid,omitempty"`
	CexAccountUUID *uuid.UUID `json:"cex_account_uuid,omitempty"`
	TokenID        int64      `json:"token_id"`
	TokenSymbol    string     `json:"token_symbol,omitempty"`
	ChainID        *int64     `json:"chain_id,omitempty"`

	RawAmount              decimal.Decimal  `json:"amount"`
	DecimalAmount          decimal.Decimal  `json:"amount_decimal"`
	AvgAcquisitionPriceUSD decimal.Decimal  `json:"avg_acquisition_price_usd"`
	AvgDisposalPriceUSD    decimal.Decimal  `json:"avg_disposal_price_usd"`
	TotalAcquiredDecimal   decimal.Decimal  `json:"total_acquired_decimal"`
	TotalDisposedDecimal   decimal.Decimal  `json:"total_disposed_decimal"`
	CurrentPriceUSD        *decimal.Decimal `json:"price_usd,omitempty"`
	LastPriceUpdate        *time.Time       `json:"last_price_update,omitempty"`
	PreviousDecimalAmount  *decimal.Decimal `json:"previous_amount_decimal,omitempty"`
	LastUpdatedAt          time.Time        `json:"last_updated_at"`

	Totals *BalanceCalculatedTotals `json:"totals,omitempty"`
}

// BalanceCalculatedTotals is the read-time P&L derivation of a balance.
// Nothing here is stored; it is recomputed from the balance row on demand.
type BalanceCalculatedTotals struct {
	ValueUSD             decimal.Decimal `json:"value_usd"`
	RealizedPnlUSD       decimal.Decimal `json:"realized_pnl_usd"`
	UnrealizedPnlUSD     decimal.Decimal `json:"unrealized_pnl_usd"`
	UnrealizedPnlPercent decimal.Decimal `json:"unrealized_pnl_percent"`
}

type PortfolioTotals struct {
	TotalValueUSD    decimal.Decimal `json:"total_value_usd"`
	RealizedPnlUSD   decimal.Decimal `json:"realized_pnl_usd"`
	UnrealizedPnlUSD decimal.Decimal `json:"unrealized_pnl_usd"`
	TokenCount       int             `json:"token_count"`
}

type BalanceHistoryResponse struct {
	TokenID       int64            `json:"token_id"`
	ChainID       *int64           `json:"chain_id,omitempty"`
	RawAmount     decimal.Decimal  `json:"amount"`
	DecimalAmount decimal.Decimal  `json:"amount_decimal"`
	PriceUSD      *decimal.Decimal `json:"price_usd,omitempty"`
	SnapshotDate  time.Time        `json:"snapshot_date"`
	SnapshotType  SnapshotType     `json:"snapshot_type"`
	TriggeredBy   *string          `json:"triggered_by,omitempty"`
}

// RecalculationReport collects per-triple results of a wallet-level replay so
// a batch caller can report partial success.
type RecalculationReport struct {
	Recalculated int      `json:"recalculated"`
	Deleted      int      `json:"deleted"`
	Errors       []string `json:"errors,omitempty"`
}

type PriceUpdateRequest struct {
	PriceUSD        decimal.Decimal `json:"price_usd"`
	CreateSnapshots bool            `json:"create_snapshots"`
}

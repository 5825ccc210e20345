package schemas

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Buy         TransactionType = "buy"
	Sell        TransactionType = "sell"
	TransferIn  TransactionType = "transfer_in"
	TransferOut TransactionType = "transfer_out"
)

// IsAcquisition reports whether the kind increases held quantity.
func (t TransactionType) IsAcquisition() bool {
	return t == Buy || t == TransferIn
}

// IsDisposal reports whether the kind decreases held quantity.
func (t TransactionType) IsDisposal() bool {
	return t == Sell || t == TransferOut
}

func (t TransactionType) Valid() bool {
	return t.IsAcquisition() || t.IsDisposal()
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

var validStatusTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:   {StatusConfirmed, StatusFailed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
}

// CanTransitionTo reports whether a status change is allowed. Confirmed
// transactions are immutable except for cancellation, which forces a
// recalculation of the affected balance.
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	for _, allowed := range validStatusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CreateTransactionRequest is the ingestion contract for a single candidate
// transaction. Exactly one of WalletUUID and CexAccountUUID must be set.
type CreateTransactionRequest struct {
	WalletUUID     *uuid.UUID `json:"wallet_uuid,omitempty"`
	CexAccountUUID *uuid.UUID `json:"cex_account_uuid,omitempty"`

	TokenID int64  `json:"token_id"`
	ChainID *int64 `json:"chain_id,omitempty"`

	TransactionHash *string           `json:"transaction_hash,omitempty"`
	BlockNumber     *int64            `json:"block_number,omitempty"`
	Type            TransactionType   `json:"transaction_type"`
	Status          TransactionStatus `json:"status"`
	CounterpartyAdr *string           `json:"counterparty_addr,omitempty"`

	// RawAmount is an unsigned integer in the token's smallest unit.
	RawAmount   decimal.Decimal  `json:"amount"`
	PriceUSD    *decimal.Decimal `json:"price_usd,omitempty"`
	FeeValue    decimal.Decimal  `json:"fee_value"`
	FeeCurrency string           `json:"fee_currency"`

	Timestamp  time.Time  `json:"timestamp"`
	DetectedAt *time.Time `json:"detected_at,omitempty"`
}

// TransactionPatch carries the only mutation allowed on a stored
// transaction: a status transition.
type TransactionPatch struct {
	Status *TransactionStatus `json:"status,omitempty"`
}

type TransactionResponse struct {
	UUID            uuid.UUID         `json:"uuid"`
	WalletUUID      *uuid.UUID        `json:"wallet_uuid,omitempty"`
	CexAccountUUID  *uuid.UUID        `json:"cex_account_uuid,omitempty"`
	TokenID         int64             `json:"token_id"`
	ChainID         *int64            `json:"chain_id,omitempty"`
	TransactionHash *string           `json:"transaction_hash,omitempty"`
	Type            TransactionType   `json:"transaction_type"`
	Status          TransactionStatus `json:"status"`
	RawAmount       decimal.Decimal   `json:"amount"`
	PriceUSD        *decimal.Decimal  `json:"price_usd,omitempty"`
	FeeValue        decimal.Decimal   `json:"fee_value"`
	FeeCurrency     string            `json:"fee_currency"`
	Timestamp       time.Time         `json:"timestamp"`
	DetectedAt      time.Time         `json:"detected_at"`
	CreatedAt       time.Time         `json:"created_at"`
}

// BulkIngestResult reports the per-group outcome of a bulk ingestion pass.
type BulkIngestResult struct {
	Accepted   int      `json:"accepted"`
	Duplicates int      `json:"duplicates"`
	Rejected   int      `json:"rejected"`
	Errors     []string `json:"errors,omitempty"`
}

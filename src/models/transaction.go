package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cryptofolio/src/schemas"
)

// Transaction is an immutable ledger event once confirmed; the only allowed
// mutation afterwards is a status transition performed by the ledger service.
type Transaction struct {
	ID   int64     `db:"id"`
	UUID uuid.UUID `db:"uuid"`

	// Exactly one of WalletID and CexAccountID is set.
	WalletID     *int64 `db:"wallet_id"`
	CexAccountID *int64 `db:"cex_account_id"`
	TokenID      int64  `db:"token_id"`
	ChainID      *int64 `db:"chain_id"`

	TransactionHash *string                   `db:"transaction_hash"`
	BlockNumber     *int64                    `db:"block_number"`
	Type            schemas.TransactionType   `db:"transaction_type"`
	Status          schemas.TransactionStatus `db:"status"`
	CounterpartyAdr *string                   `db:"counterparty_addr"`

	// RawAmount is an unsigned integer in the token's smallest unit
	// (numeric(38,0) in storage).
	RawAmount   decimal.Decimal  `db:"amount"`
	PriceUSD    *decimal.Decimal `db:"price_usd"`
	FeeValue    decimal.Decimal  `db:"fee_value"`
	FeeCurrency string           `db:"fee_currency"`

	Timestamp  time.Time `db:"timestamp"`
	DetectedAt time.Time `db:"detected_at"`

	CreatedAt time.Time  `db:"created_at"`
	Deleted   bool       `db:"deleted"`
	DeletedAt *time.Time `db:"deleted_at"`
}

// BalanceKey identifies the mutable balance row a transaction settles into:
// one row per (account, token, chain).
type BalanceKey struct {
	WalletID     *int64
	CexAccountID *int64
	TokenID      int64
	ChainID      *int64
}

func (t *Transaction) BalanceKey() BalanceKey {
	return BalanceKey{
		WalletID:     t.WalletID,
		CexAccountID: t.CexAccountID,
		TokenID:      t.TokenID,
		ChainID:      t.ChainID,
	}
}

// String renders a stable representation used as the serialization key for
// per-balance locking.
func (k BalanceKey) String() string {
	wallet, cex, chain := int64(0), int64(0), int64(0)
	if k.WalletID != nil {
		wallet = *k.WalletID
	}
	if k.CexAccountID != nil {
		cex = *k.CexAccountID
	}
	if k.ChainID != nil {
		chain = *k.ChainID
	}
	return fmt.Sprintf("w%d:c%d:t%d:n%d", wallet, cex, k.TokenID, chain)
}

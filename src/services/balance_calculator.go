package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cryptofolio/src/models"
	"cryptofolio/src/schemas"
)

// BalanceCalculator is the pure arithmetic core of the ledger. It has no
// storage access: callers hand it a balance row and one confirmed
// transaction, and it produces the next balance state. Replaying the same
// ordered transaction list always yields identical output.
type BalanceCalculator struct {
	dustThreshold decimal.Decimal
}

func NewBalanceCalculator(dustThreshold decimal.Decimal) *BalanceCalculator {
	return &BalanceCalculator{dustThreshold: dustThreshold}
}

// Apply folds one confirmed transaction into the balance. tokenDecimals is
// the token's smallest-unit exponent, used to derive the human-readable
// amount from the raw integer amount.
//
// The balance is mutated in place only on success; any error leaves it
// exactly as it was.
func (c *BalanceCalculator) Apply(balance *models.Balance, tx *models.Transaction, tokenDecimals int32) error {
	if tx.Status != schemas.StatusConfirmed {
		return fmt.Errorf("transaction %s is %s, only confirmed transactions affect balances",
			tx.UUID, tx.Status)
	}

	amountDecimal := tx.RawAmount.Shift(-tokenDecimals)
	price := decimal.Zero
	if tx.PriceUSD != nil {
		price = *tx.PriceUSD
	}

	previous := balance.DecimalAmount

	switch {
	case tx.Type.IsAcquisition():
		c.applyAcquisition(balance, tx.RawAmount, amountDecimal, price)
	case tx.Type.IsDisposal():
		if err := c.applyDisposal(balance, tx.RawAmount, amountDecimal, price); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedTransactionKind, tx.Type)
	}

	balance.PreviousDecimalAmount = &previous
	if tx.PriceUSD != nil {
		balance.CurrentPriceUSD = tx.PriceUSD
		ts := tx.Timestamp
		balance.LastPriceUpdate = &ts
	}

	return nil
}

// applyAcquisition increases the held amount and folds the transaction price
// into the weighted-average cost basis. The weight base is the currently held
// quantity, which keeps the average economically meaningful after disposals.
func (c *BalanceCalculator) applyAcquisition(balance *models.Balance, rawAmount, amountDecimal, price decimal.Decimal) {
	currentValue := balance.DecimalAmount.Mul(balance.AvgAcquisitionPriceUSD)
	acquiredValue := amountDecimal.Mul(price)
	totalAmount := balance.DecimalAmount.Add(amountDecimal)

	if totalAmount.IsPositive() {
		balance.AvgAcquisitionPriceUSD = currentValue.Add(acquiredValue).Div(totalAmount)
	} else {
		balance.AvgAcquisitionPriceUSD = price
	}

	balance.DecimalAmount = balance.DecimalAmount.Add(amountDecimal)
	balance.RawAmount = balance.RawAmount.Add(rawAmount)
	balance.TotalAcquiredDecimal = balance.TotalAcquiredDecimal.Add(amountDecimal)
}

// applyDisposal decreases the held amount, folds the transaction price into
// the weighted-average disposal price, and zeroes the position when only
// dust remains. Cost-basis fields survive the dust reset so reporting stays
// continuous.
func (c *BalanceCalculator) applyDisposal(balance *models.Balance, rawAmount, amountDecimal, price decimal.Decimal) error {
	if amountDecimal.GreaterThan(balance.DecimalAmount) {
		return fmt.Errorf("%w: have %s, trying to dispose %s",
			ErrInsufficientBalance, balance.DecimalAmount, amountDecimal)
	}

	disposedBase := balance.TotalDisposedDecimal.Add(amountDecimal)
	if disposedBase.IsPositive() {
		weighted := balance.TotalDisposedDecimal.Mul(balance.AvgDisposalPriceUSD).
			Add(amountDecimal.Mul(price))
		balance.AvgDisposalPriceUSD = weighted.Div(disposedBase)
	}

	balance.DecimalAmount = balance.DecimalAmount.Sub(amountDecimal)
	balance.RawAmount = balance.RawAmount.Sub(rawAmount)
	balance.TotalDisposedDecimal = disposedBase

	if balance.DecimalAmount.LessThanOrEqual(c.dustThreshold) {
		balance.DecimalAmount = decimal.Zero
		balance.RawAmount = decimal.Zero
	}

	return nil
}

// Totals derives the read-time P&L figures from a balance row. Nothing here
// is persisted; the stored averages are the only cost-basis state.
func (c *BalanceCalculator) Totals(balance *models.Balance) *schemas.BalanceCalculatedTotals {
	price := decimal.Zero
	if balance.CurrentPriceUSD != nil {
		price = *balance.CurrentPriceUSD
	}

	valueUSD := balance.DecimalAmount.Mul(price)
	unrealized := price.Sub(balance.AvgAcquisitionPriceUSD).Mul(balance.DecimalAmount)

	unrealizedPercent := decimal.Zero
	if balance.AvgAcquisitionPriceUSD.IsPositive() {
		unrealizedPercent = price.Sub(balance.AvgAcquisitionPriceUSD).
			Div(balance.AvgAcquisitionPriceUSD).
			Mul(decimal.NewFromInt(100))
	}

	realized := decimal.Zero
	if balance.TotalDisposedDecimal.IsPositive() {
		realized = balance.AvgDisposalPriceUSD.Sub(balance.AvgAcquisitionPriceUSD).
			Mul(balance.TotalDisposedDecimal)
	}

	return &schemas.BalanceCalculatedTotals{
		ValueUSD:             valueUSD.Round(4),
		RealizedPnlUSD:       realized.Round(4),
		UnrealizedPnlUSD:     unrealized.Round(4),
		UnrealizedPnlPercent: unrealizedPercent.Round(4),
	}
}

// DustThreshold exposes the configured epsilon, mainly for logging.
func (c *BalanceCalculator) DustThreshold() decimal.Decimal {
	return c.dustThreshold
}

package controllers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cryptofolio/src/schemas"
)

func (c *Controller) GetWalletBalances(ctx context.Context, walletUUID uuid.UUID, includeZero bool) ([]schemas.BalanceResponse, error) {
	balances, err := c.Ledger.WalletBalances(ctx, walletUUID, includeZero)
	if err != nil {
		return nil, err
	}

	responses := make([]schemas.BalanceResponse, 0, len(balances))
	for i := range balances {
		resp, err := c.toBalanceResponse(ctx, &balances[i])
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

func (c *Controller) GetWalletHistory(ctx context.Context, walletUUID uuid.UUID, from, to time.Time) ([]schemas.BalanceHistoryResponse, error) {
	history, err := c.Ledger.WalletHistory(ctx, walletUUID, from, to)
	if err != nil {
		return nil, err
	}

	responses := make([]schemas.BalanceHistoryResponse, 0, len(history))
	for i := range history {
		responses = append(responses, *toHistoryResponse(&history[i]))
	}
	return responses, nil
}

func (c *Controller) GetPortfolioTotals(ctx context.Context, walletUUID uuid.UUID) (*schemas.PortfolioTotals, error) {
	return c.Ledger.PortfolioTotals(ctx, walletUUID)
}

// RecalculateWallet replays every balance key the wallet has confirmed
// transactions for.
func (c *Controller) RecalculateWallet(ctx context.Context, walletUUID uuid.UUID, createSnapshots bool) (*schemas.RecalculationReport, error) {
	return c.Ledger.RecalculateWallet(ctx, walletUUID, createSnapshots)
}

// SetTokenPrice applies a manual quote to every balance holding the token.
func (c *Controller) SetTokenPrice(ctx context.Context, tokenID int64, req schemas.PriceUpdateRequest) (int, error) {
	return c.Prices.SetTokenPrice(ctx, tokenID, req)
}

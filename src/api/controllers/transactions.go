package controllers

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"cryptofolio/src/schemas"
	"cryptofolio/src/services"
)

// CreateTransaction records one candidate transaction. The returned flag is
// false when the candidate was a (hash, chain) duplicate; in that case the
// stored transaction is returned unchanged.
func (c *Controller) CreateTransaction(ctx context.Context, req *schemas.CreateTransactionRequest) (*schemas.TransactionResponse, bool, error) {
	tx, err := c.Ledger.RecordTransaction(ctx, req)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateTransaction) && tx != nil {
			resp, mapErr := c.toTransactionResponse(ctx, tx)
			if mapErr != nil {
				return nil, false, mapErr
			}
			return resp, false, nil
		}
		return nil, false, err
	}

	resp, err := c.toTransactionResponse(ctx, tx)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

func (c *Controller) GetTransaction(ctx context.Context, txUUID uuid.UUID) (*schemas.TransactionResponse, error) {
	tx, err := c.Ledger.GetTransaction(ctx, txUUID)
	if err != nil {
		return nil, err
	}
	return c.toTransactionResponse(ctx, tx)
}

func (c *Controller) GetWalletTransactions(ctx context.Context, walletUUID uuid.UUID) ([]schemas.TransactionResponse, error) {
	transactions, err := c.Ledger.WalletTransactions(ctx, walletUUID)
	if err != nil {
		return nil, err
	}

	responses := make([]schemas.TransactionResponse, 0, len(transactions))
	for i := range transactions {
		resp, err := c.toTransactionResponse(ctx, &transactions[i])
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

// PatchTransaction applies a status transition and maps the updated row.
func (c *Controller) PatchTransaction(ctx context.Context, txUUID uuid.UUID, patch *schemas.TransactionPatch) (*schemas.TransactionResponse, error) {
	tx, err := c.Ledger.UpdateTransactionStatus(ctx, txUUID, patch)
	if err != nil {
		return nil, err
	}
	return c.toTransactionResponse(ctx, tx)
}

func (c *Controller) BulkIngestTransactions(ctx context.Context, candidates []schemas.CreateTransactionRequest) (*schemas.BulkIngestResult, error) {
	return c.Ledger.BulkIngest(ctx, candidates)
}

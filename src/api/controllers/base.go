package controllers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cryptofolio/src/models"
	"cryptofolio/src/schemas"
	"cryptofolio/src/services"
	"cryptofolio/src/utils"
)

// Controller bundles the CRUD surface (gorm) with the ledger services (pgx).
type Controller struct {
	DB        *gorm.DB
	Ledger    *services.LedgerService
	Snapshots *services.SnapshotService
	Prices    *services.PriceService
	Reports   *services.ReportService
}

func NewController(
	db *gorm.DB,
	ledger *services.LedgerService,
	snapshots *services.SnapshotService,
	prices *services.PriceService,
	reports *services.ReportService,
) *Controller {
	return &Controller{
		DB:        db,
		Ledger:    ledger,
		Snapshots: snapshots,
		Prices:    prices,
		Reports:   reports,
	}
}

// ownerUUIDs resolves the internal owner ids of a transaction or balance row
// back to the public UUIDs used in responses.
func (c *Controller) ownerUUIDs(ctx context.Context, walletID, cexAccountID *int64) (*uuid.UUID, *uuid.UUID, error) {
	var walletUUID, cexUUID *uuid.UUID

	if walletID != nil {
		var wallet models.Wallet
		err := c.DB.WithContext(ctx).Where("id = ?", *walletID).First(&wallet).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, utils.NotFound("wallet not found")
			}
			return nil, nil, err
		}
		walletUUID = &wallet.UUID
	}

	if cexAccountID != nil {
		var account models.CexAccount
		err := c.DB.WithContext(ctx).Where("id = ?", *cexAccountID).First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, utils.NotFound("cex account not found")
			}
			return nil, nil, err
		}
		cexUUID = &account.UUID
	}

	return walletUUID, cexUUID, nil
}

func (c *Controller) toTransactionResponse(ctx context.Context, tx *models.Transaction) (*schemas.TransactionResponse, error) {
	walletUUID, cexUUID, err := c.ownerUUIDs(ctx, tx.WalletID, tx.CexAccountID)
	if err != nil {
		return nil, err
	}

	return &schemas.TransactionResponse{
		UUID:            tx.UUID,
		WalletUUID:      walletUUID,
		CexAccountUUID:  cexUUID,
		TokenID:         tx.TokenID,
		ChainID:         tx.ChainID,
		TransactionHash: tx.TransactionHash,
		Type:            tx.Type,
		Status:          tx.Status,
		RawAmount:       tx.RawAmount,
		PriceUSD:        tx.PriceUSD,
		FeeValue:        tx.FeeValue,
		FeeCurrency:     tx.FeeCurrency,
		Timestamp:       tx.Timestamp,
		DetectedAt:      tx.DetectedAt,
		CreatedAt:       tx.CreatedAt,
	}, nil
}

func (c *Controller) toBalanceResponse(ctx context.Context, balance *models.Balance) (*schemas.BalanceResponse, error) {
	walletUUID, cexUUID, err := c.ownerUUIDs(ctx, balance.WalletID, balance.CexAccountID)
	if err != nil {
		return nil, err
	}

	symbol := ""
	var token models.Token
	if err := c.DB.WithContext(ctx).Where("id = ?", balance.TokenID).First(&token).Error; err == nil {
		symbol = token.Symbol
	}

	return &schemas.BalanceResponse{
		WalletUUID:             walletUUID,
		CexAccountUUID:         cexUUID,
		TokenID:                balance.TokenID,
		TokenSymbol:            symbol,
		ChainID:                balance.ChainID,
		RawAmount:              balance.RawAmount,
		DecimalAmount:          balance.DecimalAmount,
		AvgAcquisitionPriceUSD: balance.AvgAcquisitionPriceUSD,
		AvgDisposalPriceUSD:    balance.AvgDisposalPriceUSD,
		TotalAcquiredDecimal:   balance.TotalAcquiredDecimal,
		TotalDisposedDecimal:   balance.TotalDisposedDecimal,
		CurrentPriceUSD:        balance.CurrentPriceUSD,
		LastPriceUpdate:        balance.LastPriceUpdate,
		PreviousDecimalAmount:  balance.PreviousDecimalAmount,
		LastUpdatedAt:          balance.LastUpdatedAt,
		Totals:                 c.Ledger.DeriveTotals(balance),
	}, nil
}

func toHistoryResponse(record *models.BalanceHistory) *schemas.BalanceHistoryResponse {
	return &schemas.BalanceHistoryResponse{
		TokenID:       record.TokenID,
		ChainID:       record.ChainID,
		RawAmount:     record.RawAmount,
		DecimalAmount: record.DecimalAmount,
		PriceUSD:      record.CurrentPriceUSD,
		SnapshotDate:  record.SnapshotDate,
		SnapshotType:  record.SnapshotType,
		TriggeredBy:   record.TriggeredBy,
	}
}

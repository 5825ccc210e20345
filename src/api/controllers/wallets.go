package controllers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cryptofolio/src/models"
	"cryptofolio/src/schemas"
	"cryptofolio/src/utils"
)

func toWalletResponse(wallet *models.Wallet) *schemas.WalletResponse {
	return &schemas.WalletResponse{
		UUID:          wallet.UUID,
		Address:       wallet.Address,
		Name:          wallet.Name,
		TotalValueUSD: wallet.TotalValueUSD,
		Active:        wallet.Active,
		CreatedAt:     wallet.CreatedAt,
		UpdatedAt:     wallet.UpdatedAt,
	}
}

func (c *Controller) CreateWallet(ctx context.Context, req *schemas.CreateWalletRequest) (*schemas.WalletResponse, error) {
	if req.Address == "" {
		return nil, utils.BadRequest("address is required")
	}

	wallet := models.Wallet{
		UUID:    uuid.New(),
		Address: req.Address,
		Name:    req.Name,
		Active:  true,
	}
	if err := c.DB.WithContext(ctx).Create(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.Conflict("wallet address already registered")
		}
		return nil, err
	}
	return toWalletResponse(&wallet), nil
}

func (c *Controller) GetAllWallets(ctx context.Context) ([]schemas.WalletResponse, error) {
	var wallets []models.Wallet
	err := c.DB.WithContext(ctx).Where("deleted = false").Order("created_at").Find(&wallets).Error
	if err != nil {
		return nil, err
	}

	responses := make([]schemas.WalletResponse, 0, len(wallets))
	for i := range wallets {
		responses = append(responses, *toWalletResponse(&wallets[i]))
	}
	return responses, nil
}

func (c *Controller) GetWalletByUUID(ctx context.Context, walletUUID uuid.UUID) (*schemas.WalletResponse, error) {
	var wallet models.Wallet
	err := c.DB.WithContext(ctx).Where("uuid = ? AND deleted = false", walletUUID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("wallet not found")
		}
		return nil, err
	}
	return toWalletResponse(&wallet), nil
}

func (c *Controller) UpdateWallet(ctx context.Context, walletUUID uuid.UUID, patch *schemas.WalletPatch) (*schemas.WalletResponse, error) {
	var wallet models.Wallet
	err := c.DB.WithContext(ctx).Where("uuid = ? AND deleted = false", walletUUID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("wallet not found")
		}
		return nil, err
	}

	if patch.Name != nil {
		wallet.Name = *patch.Name
	}
	if patch.Active != nil {
		wallet.Active = *patch.Active
	}

	if err := c.DB.WithContext(ctx).Save(&wallet).Error; err != nil {
		return nil, err
	}
	return toWalletResponse(&wallet), nil
}

// DeleteWallet tombstones the wallet; ledger rows stay untouched so a restore
// keeps its full history.
func (c *Controller) DeleteWallet(ctx context.Context, walletUUID uuid.UUID) error {
	result := c.DB.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("uuid = ? AND deleted = false", walletUUID).
		Updates(map[string]interface{}{"deleted": true, "deleted_at": gorm.Expr("NOW()")})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound("wallet not found")
	}
	return nil
}

func toCexAccountResponse(account *models.CexAccount) *schemas.CexAccountResponse {
	return &schemas.CexAccountResponse{
		UUID:      account.UUID,
		Exchange:  account.Exchange,
		Label:     account.Label,
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
	}
}

func (c *Controller) CreateCexAccount(ctx context.Context, req *schemas.CreateCexAccountRequest) (*schemas.CexAccountResponse, error) {
	if req.Exchange == "" {
		return nil, utils.BadRequest("exchange is required")
	}

	account := models.CexAccount{
		UUID:     uuid.New(),
		Exchange: req.Exchange,
		Label:    req.Label,
		Active:   true,
	}
	if err := c.DB.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return toCexAccountResponse(&account), nil
}

func (c *Controller) GetAllCexAccounts(ctx context.Context) ([]schemas.CexAccountResponse, error) {
	var accounts []models.CexAccount
	err := c.DB.WithContext(ctx).Where("deleted = false").Order("created_at").Find(&accounts).Error
	if err != nil {
		return nil, err
	}

	responses := make([]schemas.CexAccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, *toCexAccountResponse(&accounts[i]))
	}
	return responses, nil
}

func (c *Controller) UpdateCexAccount(ctx context.Context, accountUUID uuid.UUID, patch *schemas.CexAccountPatch) (*schemas.CexAccountResponse, error) {
	var account models.CexAccount
	err := c.DB.WithContext(ctx).Where("uuid = ? AND deleted = false", accountUUID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("cex account not found")
		}
		return nil, err
	}

	if patch.Label != nil {
		account.Label = *patch.Label
	}
	if patch.Active != nil {
		account.Active = *patch.Active
	}

	if err := c.DB.WithContext(ctx).Save(&account).Error; err != nil {
		return nil, err
	}
	return toCexAccountResponse(&account), nil
}

func (c *Controller) DeleteCexAccount(ctx context.Context, accountUUID uuid.UUID) error {
	result := c.DB.WithContext(ctx).
		Model(&models.CexAccount{}).
		Where("uuid = ? AND deleted = false", accountUUID).
		Updates(map[string]interface{}{"deleted": true, "deleted_at": gorm.Expr("NOW()")})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound("cex account not found")
	}
	return nil
}

package controllers

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"cryptofolio/src/models"
	"cryptofolio/src/schemas"
	"cryptofolio/src/utils"
)

func toTokenResponse(token *models.Token) *schemas.TokenResponse {
	return &schemas.TokenResponse{
		ID:              token.ID,
		Symbol:          token.Symbol,
		Name:            token.Name,
		Decimals:        token.Decimals,
		ContractAddress: token.ContractAddress,
	}
}

func (c *Controller) CreateToken(ctx context.Context, req *schemas.CreateTokenRequest) (*schemas.TokenResponse, error) {
	if req.Symbol == "" {
		return nil, utils.BadRequest("symbol is required")
	}
	if req.Decimals < 0 {
		return nil, utils.BadRequest("decimals must be non-negative")
	}

	token := models.Token{
		Symbol:          req.Symbol,
		Name:            req.Name,
		Decimals:        req.Decimals,
		ContractAddress: req.ContractAddress,
	}
	if err := c.DB.WithContext(ctx).Create(&token).Error; err != nil {
		return nil, err
	}
	return toTokenResponse(&token), nil
}

func (c *Controller) GetAllTokens(ctx context.Context) ([]schemas.TokenResponse, error) {
	var tokens []models.Token
	err := c.DB.WithContext(ctx).Where("deleted = false").Order("symbol").Find(&tokens).Error
	if err != nil {
		return nil, err
	}

	responses := make([]schemas.TokenResponse, 0, len(tokens))
	for i := range tokens {
		responses = append(responses, *toTokenResponse(&tokens[i]))
	}
	return responses, nil
}

func (c *Controller) GetTokenByID(ctx context.Context, id int64) (*schemas.TokenResponse, error) {
	var token models.Token
	err := c.DB.WithContext(ctx).Where("id = ? AND deleted = false", id).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("token not found")
		}
		return nil, err
	}
	return toTokenResponse(&token), nil
}

// UpdateToken patches mutable token metadata. Decimals are deliberately not
// patchable: stored raw amounts are scaled by them.
func (c *Controller) UpdateToken(ctx context.Context, id int64, patch *schemas.TokenPatch) (*schemas.TokenResponse, error) {
	var token models.Token
	err := c.DB.WithContext(ctx).Where("id = ? AND deleted = false", id).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("token not found")
		}
		return nil, err
	}

	if patch.Name != nil {
		token.Name = *patch.Name
	}
	if patch.ContractAddress != nil {
		token.ContractAddress = patch.ContractAddress
	}

	if err := c.DB.WithContext(ctx).Save(&token).Error; err != nil {
		return nil, err
	}
	return toTokenResponse(&token), nil
}

func (c *Controller) DeleteToken(ctx context.Context, id int64) error {
	result := c.DB.WithContext(ctx).
		Model(&models.Token{}).
		Where("id = ? AND deleted = false", id).
		Updates(map[string]interface{}{"deleted": true, "deleted_at": gorm.Expr("NOW()")})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound("token not found")
	}
	return nil
}

func toChainResponse(chain *models.Chain) *schemas.ChainResponse {
	return &schemas.ChainResponse{
		ID:         chain.ID,
		Name:       chain.Name,
		ExternalID: chain.ExternalID,
		Symbol:     chain.Symbol,
	}
}

func (c *Controller) CreateChain(ctx context.Context, req *schemas.CreateChainRequest) (*schemas.ChainResponse, error) {
	if req.Name == "" {
		return nil, utils.BadRequest("name is required")
	}

	chain := models.Chain{
		Name:       req.Name,
		ExternalID: req.ExternalID,
		Symbol:     req.Symbol,
	}
	if err := c.DB.WithContext(ctx).Create(&chain).Error; err != nil {
		return nil, err
	}
	return toChainResponse(&chain), nil
}

func (c *Controller) GetAllChains(ctx context.Context) ([]schemas.ChainResponse, error) {
	var chains []models.Chain
	err := c.DB.WithContext(ctx).Where("deleted = false").Order("id").Find(&chains).Error
	if err != nil {
		return nil, err
	}

	responses := make([]schemas.ChainResponse, 0, len(chains))
	for i := range chains {
		responses = append(responses, *toChainResponse(&chains[i]))
	}
	return responses, nil
}

package schemas

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateWalletRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// WalletPatch is an explicit field-by-field patch; nil fields are untouched.
type WalletPatch struct {
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type WalletResponse struct {
	UUID          uuid.UUID       `json:"uuid"`
	Address       string          `json:"address"`
	Name          string          `json:"name"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type CreateCexAccountRequest struct {
	Exchange string `json:"exchange"`
	Label    string `json:"label"`
}

type CexAccountPatch struct {
	Label  *string `json:"label,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type CexAccountResponse struct {
	UUID      uuid.UUID `json:"uuid"`
	Exchange  string    `json:"exchange"`
	Label     string    `json:"label"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateTokenRequest struct {
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	Decimals        int32   `json:"decimals"`
	ContractAddress *string `json:"contract_address,omitempty"`
}

type TokenPatch struct {
	Name            *string `json:"name,omitempty"`
	ContractAddress *string `json:"contract_address,omitempty"`
}

type TokenResponse struct {
	ID              int64   `json:"id"`
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	Decimals        int32   `json:"decimals"`
	ContractAddress *string `json:"contract_address,omitempty"`
}

type CreateChainRequest struct {
	Name       string `json:"name"`
	ExternalID int64  `json:"external_id"`
	Symbol     string `json:"symbol"`
}

type ChainResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ExternalID int64  `json:"external_id"`
	Symbol     string `json:"symbol"`
}

type AuthTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID            int64           `gorm:"primaryKey;column:id" db:"id"`
	UUID          uuid.UUID       `gorm:"column:uuid;uniqueIndex" db:"uuid"`
	Address       string          `gorm:"column:address;uniqueIndex" db:"address"`
	Name          string          `gorm:"column:name" db:"name"`
	TotalValueUSD decimal.Decimal `gorm:"column:total_value_usd;type:numeric(20,4)" db:"total_value_usd"`
	Active        bool            `gorm:"column:active;default:true" db:"active"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" db:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" db:"updated_at"`
	Deleted       bool            `gorm:"column:deleted;default:false" db:"deleted"`
	DeletedAt     *time.Time      `gorm:"column:deleted_at" db:"deleted_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

type CexAccount struct {
	ID        int64      `gorm:"primaryKey;column:id" db:"id"`
	UUID      uuid.UUID  `gorm:"column:uuid;uniqueIndex" db:"uuid"`
	Exchange  string     `gorm:"column:exchange" db:"exchange"`
	Label     string     `gorm:"column:label" db:"label"`
	Active    bool       `gorm:"column:active;default:true" db:"active"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" db:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" db:"updated_at"`
	Deleted   bool       `gorm:"column:deleted;default:false" db:"deleted"`
	DeletedAt *time.Time `gorm:"column:deleted_at" db:"deleted_at"`
}

func (CexAccount) TableName() string {
	return "cex_accounts"
}

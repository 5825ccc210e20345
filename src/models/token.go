package models

import "time"

type Token struct {
	ID              int64      `gorm:"primaryKey;column:id" db:"id"`
	Symbol          string     `gorm:"column:symbol" db:"symbol"`
	Name            string     `gorm:"column:name" db:"name"`
	Decimals        int32      `gorm:"column:decimals" db:"decimals"`
	ContractAddress *string    `gorm:"column:contract_address" db:"contract_address"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" db:"created_at"`
	Deleted         bool       `gorm:"column:deleted;default:false" db:"deleted"`
	DeletedAt       *time.Time `gorm:"column:deleted_at" db:"deleted_at"`
}

func (Token) TableName() string {
	return "tokens"
}

type Chain struct {
	ID         int64      `gorm:"primaryKey;column:id" db:"id"`
	Name       string     `gorm:"column:name" db:"name"`
	ExternalID int64      `gorm:"column:external_id;uniqueIndex" db:"external_id"`
	Symbol     string     `gorm:"column:symbol" db:"symbol"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" db:"created_at"`
	Deleted    bool       `gorm:"column:deleted;default:false" db:"deleted"`
	DeletedAt  *time.Time `gorm:"column:deleted_at" db:"deleted_at"`
}

func (Chain) TableName() string {
	return "chains"
}

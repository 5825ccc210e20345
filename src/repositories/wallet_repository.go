package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"cryptofolio/src/models"
)

var (
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrCexAccountNotFound = errors.New("cex account not found")
)

type WalletRepository interface {
	GetByUUID(ctx context.Context, u uuid.UUID) (*models.Wallet, error)
	GetByID(ctx context.Context, id int64) (*models.Wallet, error)
	UpdateTotalValue(ctx context.Context, id int64, total decimal.Decimal) error
	GetCexAccountByUUID(ctx context.Context, u uuid.UUID) (*models.CexAccount, error)
}

type walletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) WalletRepository {
	return &walletRepo{db: db}
}

const walletColumns = `id, uuid, address, name, total_value_usd, active, created_at, updated_at, deleted, deleted_at`

func (r *walletRepo) GetByUUID(ctx context.Context, u uuid.UUID) (*models.Wallet, error) {
	return r.get(ctx, `SELECT `+walletColumns+` FROM wallets WHERE uuid = $1 AND deleted = false`, u)
}

func (r *walletRepo) GetByID(ctx context.Context, id int64) (*models.Wallet, error) {
	return r.get(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 AND deleted = false`, id)
}

func (r *walletRepo) get(ctx context.Context, query string, arg interface{}) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&w.ID, &w.UUID, &w.Address, &w.Name, &w.TotalValueUSD, &w.Active,
		&w.CreatedAt, &w.UpdatedAt, &w.Deleted, &w.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepo) UpdateTotalValue(ctx context.Context, id int64, total decimal.Decimal) error {
	_, err := r.db.Exec(ctx,
		`UPDATE wallets SET total_value_usd = $1, updated_at = NOW() WHERE id = $2`,
		total, id)
	return err
}

func (r *walletRepo) GetCexAccountByUUID(ctx context.Context, u uuid.UUID) (*models.CexAccount, error) {
	var a models.CexAccount
	err := r.db.QueryRow(ctx,
		`SELECT id, uuid, exchange, label, active, created_at, updated_at, deleted, deleted_at
		FROM cex_accounts WHERE uuid = $1 AND deleted = false`, u).Scan(
		&a.ID, &a.UUID, &a.Exchange, &a.Label, &a.Active,
		&a.CreatedAt, &a.UpdatedAt, &a.Deleted, &a.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCexAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"cryptofolio/src/models"
)

var (
	ErrBalanceNotFound = errors.New("balance not found")
	// ErrStorageConflict signals a lost optimistic-concurrency race; the
	// caller retries the whole read-modify-write cycle.
	ErrStorageConflict = errors.New("balance row version conflict")
)

type BalanceRepository interface {
	Get(ctx context.Context, key models.BalanceKey) (*models.Balance, error)
	Create(ctx context.Context, b *models.Balance, tx pgx.Tx) error
	UpdateVersioned(ctx context.Context, b *models.Balance, tx pgx.Tx) error
	Replace(ctx context.Context, b *models.Balance, tx pgx.Tx) error
	Delete(ctx context.Context, key models.BalanceKey, tx pgx.Tx) error
	ListNonZero(ctx context.Context) ([]models.Balance, error)
	ListByWallet(ctx context.Context, walletID int64, includeZero bool) ([]models.Balance, error)
	ListByToken(ctx context.Context, tokenID int64) ([]models.Balance, error)
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal, at time.Time) error
}

type balanceRepo struct {
	db *pgxpool.Pool
}

func NewBalanceRepository(db *pgxpool.Pool) BalanceRepository {
	return &balanceRepo{db: db}
}

const balanceColumns = `id, wallet_id, cex_account_id, token_id, chain_id,
	amount, amount_decimal, avg_acquisition_price_usd, avg_disposal_price_usd,
	total_acquired_decimal, total_disposed_decimal, price_usd, last_price_update,
	previous_amount_decimal, version, last_updated_at, created_at`

func scanBalance(row pgx.Row) (*models.Balance, error) {
	var b models.Balance
	err := row.Scan(
		&b.ID, &b.WalletID, &b.CexAccountID, &b.TokenID, &b.ChainID,
		&b.RawAmount, &b.DecimalAmount, &b.AvgAcquisitionPriceUSD, &b.AvgDisposalPriceUSD,
		&b.TotalAcquiredDecimal, &b.TotalDisposedDecimal, &b.CurrentPriceUSD, &b.LastPriceUpdate,
		&b.PreviousDecimalAmount, &b.Version, &b.LastUpdatedAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *balanceRepo) Get(ctx context.Context, key models.BalanceKey) (*models.Balance, error) {
	b, err := scanBalance(r.db.QueryRow(ctx,
		`SELECT `+balanceColumns+`
		FROM balances
		WHERE wallet_id IS NOT DISTINCT FROM $1
			AND cex_account_id IS NOT DISTINCT FROM $2
			AND token_id = $3
			AND chain_id IS NOT DISTINCT FROM $4`,
		key.WalletID, key.CexAccountID, key.TokenID, key.ChainID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBalanceNotFound
	}
	return b, err
}

func (r *balanceRepo) Create(ctx context.Context, b *models.Balance, tx pgx.Tx) error {
	query := `
		INSERT INTO balances (wallet_id, cex_account_id, token_id, chain_id,
			amount, amount_decimal, avg_acquisition_price_usd, avg_disposal_price_usd,
			total_acquired_decimal, total_disposed_decimal, price_usd, last_price_update,
			previous_amount_decimal, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, last_updated_at, created_at`

	args := []interface{}{
		b.WalletID, b.CexAccountID, b.TokenID, b.ChainID,
		b.RawAmount, b.DecimalAmount, b.AvgAcquisitionPriceUSD, b.AvgDisposalPriceUSD,
		b.TotalAcquiredDecimal, b.TotalDisposedDecimal, b.CurrentPriceUSD, b.LastPriceUpdate,
		b.PreviousDecimalAmount, b.Version,
	}

	if tx != nil {
		return tx.QueryRow(ctx, query, args...).Scan(&b.ID, &b.LastUpdatedAt, &b.CreatedAt)
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&b.ID, &b.LastUpdatedAt, &b.CreatedAt)
}

// UpdateVersioned writes the balance only if its stored version still matches
// the one the caller read. A zero row count means somebody else won the race.
func (r *balanceRepo) UpdateVersioned(ctx context.Context, b *models.Balance, tx pgx.Tx) error {
	query := `
		UPDATE balances SET
			amount = $1, amount_decimal = $2,
			avg_acquisition_price_usd = $3, avg_disposal_price_usd = $4,
			total_acquired_decimal = $5, total_disposed_decimal = $6,
			price_usd = $7, last_price_update = $8,
			previous_amount_decimal = $9,
			version = version + 1, last_updated_at = NOW()
		WHERE id = $10 AND version = $11`

	args := []interface{}{
		b.RawAmount, b.DecimalAmount,
		b.AvgAcquisitionPriceUSD, b.AvgDisposalPriceUSD,
		b.TotalAcquiredDecimal, b.TotalDisposedDecimal,
		b.CurrentPriceUSD, b.LastPriceUpdate,
		b.PreviousDecimalAmount,
		b.ID, b.Version,
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if tx != nil {
		tag, err = tx.Exec(ctx, query, args...)
	} else {
		tag, err = r.db.Exec(ctx, query, args...)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStorageConflict
	}
	b.Version++
	return nil
}

// Replace overwrites the whole numeric state of an existing row regardless of
// version. Used by recalculation, which serializes per key and commits the
// replay result all at once.
func (r *balanceRepo) Replace(ctx context.Context, b *models.Balance, tx pgx.Tx) error {
	query := `
		UPDATE balances SET
			amount = $1, amount_decimal = $2,
			avg_acquisition_price_usd = $3, avg_disposal_price_usd = $4,
			total_acquired_decimal = $5, total_disposed_decimal = $6,
			price_usd = $7, last_price_update = $8,
			previous_amount_decimal = $9,
			version = version + 1, last_updated_at = NOW()
		WHERE id = $10`

	args := []interface{}{
		b.RawAmount, b.DecimalAmount,
		b.AvgAcquisitionPriceUSD, b.AvgDisposalPriceUSD,
		b.TotalAcquiredDecimal, b.TotalDisposedDecimal,
		b.CurrentPriceUSD, b.LastPriceUpdate,
		b.PreviousDecimalAmount,
		b.ID,
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, query, args...)
	} else {
		_, err = r.db.Exec(ctx, query, args...)
	}
	return err
}

func (r *balanceRepo) Delete(ctx context.Context, key models.BalanceKey, tx pgx.Tx) error {
	query := `
		DELETE FROM balances
		WHERE wallet_id IS NOT DISTINCT FROM $1
			AND cex_account_id IS NOT DISTINCT FROM $2
			AND token_id = $3
			AND chain_id IS NOT DISTINCT FROM $4`

	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, query, key.WalletID, key.CexAccountID, key.TokenID, key.ChainID)
	} else {
		_, err = r.db.Exec(ctx, query, key.WalletID, key.CexAccountID, key.TokenID, key.ChainID)
	}
	return err
}

func (r *balanceRepo) ListNonZero(ctx context.Context) ([]models.Balance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE amount_decimal > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBalances(rows)
}

func (r *balanceRepo) ListByWallet(ctx context.Context, walletID int64, includeZero bool) ([]models.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE wallet_id = $1`
	if !includeZero {
		query += ` AND amount_decimal > 0`
	}

	rows, err := r.db.Query(ctx, query, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBalances(rows)
}

func (r *balanceRepo) ListByToken(ctx context.Context, tokenID int64) ([]models.Balance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE token_id = $1 AND amount_decimal > 0`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBalances(rows)
}

func (r *balanceRepo) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE balances SET price_usd = $1, last_price_update = $2, last_updated_at = NOW() WHERE id = $3`,
		price, at, id)
	return err
}

func collectBalances(rows pgx.Rows) ([]models.Balance, error) {
	var balances []models.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, *b)
	}
	return balances, rows.Err()
}

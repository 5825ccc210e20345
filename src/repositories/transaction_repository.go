package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cryptofolio/src/models"
	"cryptofolio/src/schemas"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type TransactionRepository interface {
	Create(ctx context.Context, t *models.Transaction, tx pgx.Tx) error
	GetByUUID(ctx context.Context, u uuid.UUID) (*models.Transaction, error)
	GetByHashAndChain(ctx context.Context, hash string, chainID *int64) (*models.Transaction, error)
	ListConfirmedByKey(ctx context.Context, key models.BalanceKey) ([]models.Transaction, error)
	ListByWallet(ctx context.Context, walletID int64) ([]models.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status schemas.TransactionStatus, tx pgx.Tx) error
	DistinctKeysForWallet(ctx context.Context, walletID int64) ([]models.BalanceKey, error)
}

type transactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionColumns = `id, uuid, wallet_id, cex_account_id, token_id, chain_id,
	transaction_hash, block_number, transaction_type, status, counterparty_addr,
	amount, price_usd, fee_value, fee_currency, timestamp, detected_at, created_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.UUID, &t.WalletID, &t.CexAccountID, &t.TokenID, &t.ChainID,
		&t.TransactionHash, &t.BlockNumber, &t.Type, &t.Status, &t.CounterpartyAdr,
		&t.RawAmount, &t.PriceUSD, &t.FeeValue, &t.FeeCurrency, &t.Timestamp, &t.DetectedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) Create(ctx context.Context, t *models.Transaction, tx pgx.Tx) error {
	query := `
		INSERT INTO transactions (uuid, wallet_id, cex_account_id, token_id, chain_id,
			transaction_hash, block_number, transaction_type, status, counterparty_addr,
			amount, price_usd, fee_value, fee_currency, timestamp, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	args := []interface{}{
		t.UUID, t.WalletID, t.CexAccountID, t.TokenID, t.ChainID,
		t.TransactionHash, t.BlockNumber, t.Type, t.Status, t.CounterpartyAdr,
		t.RawAmount, t.PriceUSD, t.FeeValue, t.FeeCurrency, t.Timestamp, t.DetectedAt,
	}

	if tx != nil {
		return tx.QueryRow(ctx, query, args...).Scan(&t.ID, &t.CreatedAt)
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&t.ID, &t.CreatedAt)
}

func (r *transactionRepo) GetByUUID(ctx context.Context, u uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE uuid = $1 AND deleted = false`, u))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

func (r *transactionRepo) GetByHashAndChain(ctx context.Context, hash string, chainID *int64) (*models.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+transactionColumns+`
		FROM transactions
		WHERE transaction_hash = $1 AND chain_id IS NOT DISTINCT FROM $2 AND deleted = false`,
		hash, chainID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

// ListConfirmedByKey returns every confirmed, non-deleted transaction for a
// balance key in replay order. The secondary id ordering keeps replay
// deterministic when two transactions share a timestamp.
func (r *transactionRepo) ListConfirmedByKey(ctx context.Context, key models.BalanceKey) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+transactionColumns+`
		FROM transactions
		WHERE wallet_id IS NOT DISTINCT FROM $1
			AND cex_account_id IS NOT DISTINCT FROM $2
			AND token_id = $3
			AND chain_id IS NOT DISTINCT FROM $4
			AND status = $5
			AND deleted = false
		ORDER BY timestamp ASC, id ASC`,
		key.WalletID, key.CexAccountID, key.TokenID, key.ChainID, schemas.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *transactionRepo) ListByWallet(ctx context.Context, walletID int64) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+transactionColumns+`
		FROM transactions
		WHERE wallet_id = $1 AND deleted = false
		ORDER BY timestamp DESC, id DESC`,
		walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, id int64, status schemas.TransactionStatus, tx pgx.Tx) error {
	query := `UPDATE transactions SET status = $1 WHERE id = $2`
	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, query, status, id)
	} else {
		_, err = r.db.Exec(ctx, query, status, id)
	}
	return err
}

// DistinctKeysForWallet lists the (token, chain) combinations a wallet has
// confirmed transactions for, one recalculation unit each.
func (r *transactionRepo) DistinctKeysForWallet(ctx context.Context, walletID int64) ([]models.BalanceKey, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT token_id, chain_id
		FROM transactions
		WHERE wallet_id = $1 AND status = $2 AND deleted = false`,
		walletID, schemas.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []models.BalanceKey
	for rows.Next() {
		key := models.BalanceKey{WalletID: &walletID}
		if err := rows.Scan(&key.TokenID, &key.ChainID); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

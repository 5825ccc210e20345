package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cryptofolio/src/models"
	"cryptofolio/src/schemas"
)

type BalanceHistoryRepository interface {
	Append(ctx context.Context, h *models.BalanceHistory, tx pgx.Tx) error
	ListByWallet(ctx context.Context, walletID int64, from, to time.Time) ([]models.BalanceHistory, error)
	ListByKey(ctx context.Context, key models.BalanceKey, from, to time.Time) ([]models.BalanceHistory, error)
	PruneBefore(ctx context.Context, types []schemas.SnapshotType, cutoff time.Time) (int64, error)
}

type balanceHistoryRepo struct {
	db *pgxpool.Pool
}

func NewBalanceHistoryRepository(db *pgxpool.Pool) BalanceHistoryRepository {
	return &balanceHistoryRepo{db: db}
}

const historyColumns = `id, wallet_id, cex_account_id, token_id, chain_id,
	amount, amount_decimal, avg_acquisition_price_usd, avg_disposal_price_usd,
	total_acquired_decimal, total_disposed_decimal, price_usd, last_price_update,
	snapshot_date, snapshot_type, triggered_by`

// Append inserts a snapshot row. History is append-only: there is no update
// or upsert path, duplicates from repeated sweeps are kept on purpose.
func (r *balanceHistoryRepo) Append(ctx context.Context, h *models.BalanceHistory, tx pgx.Tx) error {
	query := `
		INSERT INTO balances_history (wallet_id, cex_account_id, token_id, chain_id,
			amount, amount_decimal, avg_acquisition_price_usd, avg_disposal_price_usd,
			total_acquired_decimal, total_disposed_decimal, price_usd, last_price_update,
			snapshot_date, snapshot_type, triggered_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	args := []interface{}{
		h.WalletID, h.CexAccountID, h.TokenID, h.ChainID,
		h.RawAmount, h.DecimalAmount, h.AvgAcquisitionPriceUSD, h.AvgDisposalPriceUSD,
		h.TotalAcquiredDecimal, h.TotalDisposedDecimal, h.CurrentPriceUSD, h.LastPriceUpdate,
		h.SnapshotDate, h.SnapshotType, h.TriggeredBy,
	}

	if tx != nil {
		return tx.QueryRow(ctx, query, args...).Scan(&h.ID)
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&h.ID)
}

func (r *balanceHistoryRepo) ListByWallet(ctx context.Context, walletID int64, from, to time.Time) ([]models.BalanceHistory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+historyColumns+`
		FROM balances_history
		WHERE wallet_id = $1 AND snapshot_date BETWEEN $2 AND $3
		ORDER BY snapshot_date ASC`,
		walletID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectHistory(rows)
}

func (r *balanceHistoryRepo) ListByKey(ctx context.Context, key models.BalanceKey, from, to time.Time) ([]models.BalanceHistory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+historyColumns+`
		FROM balances_history
		WHERE wallet_id IS NOT DISTINCT FROM $1
			AND cex_account_id IS NOT DISTINCT FROM $2
			AND token_id = $3
			AND chain_id IS NOT DISTINCT FROM $4
			AND snapshot_date BETWEEN $5 AND $6
		ORDER BY snapshot_date ASC`,
		key.WalletID, key.CexAccountID, key.TokenID, key.ChainID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectHistory(rows)
}

// PruneBefore removes snapshots of the given types older than cutoff. This is
// the single mutation history allows besides insert.
func (r *balanceHistoryRepo) PruneBefore(ctx context.Context, types []schemas.SnapshotType, cutoff time.Time) (int64, error) {
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM balances_history WHERE snapshot_type = ANY($1) AND snapshot_date < $2`,
		typeNames, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectHistory(rows pgx.Rows) ([]models.BalanceHistory, error) {
	var history []models.BalanceHistory
	for rows.Next() {
		var h models.BalanceHistory
		err := rows.Scan(
			&h.ID, &h.WalletID, &h.CexAccountID, &h.TokenID, &h.ChainID,
			&h.RawAmount, &h.DecimalAmount, &h.AvgAcquisitionPriceUSD, &h.AvgDisposalPriceUSD,
			&h.TotalAcquiredDecimal, &h.TotalDisposedDecimal, &h.CurrentPriceUSD, &h.LastPriceUpdate,
			&h.SnapshotDate, &h.SnapshotType, &h.TriggeredBy,
		)
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cryptofolio/src/models"
)

var ErrTokenNotFound = errors.New("token not found")

type TokenRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Token, error)
	List(ctx context.Context) ([]models.Token, error)
}

type tokenRepo struct {
	db *pgxpool.Pool
}

func NewTokenRepository(db *pgxpool.Pool) TokenRepository {
	return &tokenRepo{db: db}
}

func (r *tokenRepo) GetByID(ctx context.Context, id int64) (*models.Token, error) {
	var t models.Token
	err := r.db.QueryRow(ctx,
		`SELECT id, symbol, name, decimals, contract_address, created_at, deleted, deleted_at
		FROM tokens WHERE id = $1 AND deleted = false`, id).Scan(
		&t.ID, &t.Symbol, &t.Name, &t.Decimals, &t.ContractAddress,
		&t.CreatedAt, &t.Deleted, &t.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepo) List(ctx context.Context) ([]models.Token, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, symbol, name, decimals, contract_address, created_at, deleted, deleted_at
		FROM tokens WHERE deleted = false ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.Token
	for rows.Next() {
		var t models.Token
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Name, &t.Decimals, &t.ContractAddress,
			&t.CreatedAt, &t.Deleted, &t.DeletedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

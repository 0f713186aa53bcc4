package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountStore struct {
	db *pgxpool.Pool
}

func NewAccountStore(db *pgxpool.Pool) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) LoadAccount(ctx context.Context, id int64) (*models.Account, error) {
	query := `
		SELECT id, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	acc := &models.Account{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&acc.ID,
		&acc.Balance,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return acc, nil
}

// SaveAccount inserts when ID is zero, otherwise writes the balance back.
func (s *AccountStore) SaveAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	saved := *acc

	if saved.ID == 0 {
		err := s.db.QueryRow(ctx, `
			INSERT INTO accounts (balance)
			VALUES ($1)
			RETURNING id, created_at, updated_at
		`, saved.Balance).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("could not create account: %w", err)
		}
		return &saved, nil
	}

	err := s.db.QueryRow(ctx, `
		UPDATE accounts
		SET balance = $2, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, saved.ID, saved.Balance).Scan(&saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %d: %w", saved.ID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	return &saved, nil
}

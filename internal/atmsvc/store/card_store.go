package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CardStore struct {
	db *pgxpool.Pool
}

func NewCardStore(db *pgxpool.Pool) *CardStore {
	return &CardStore{db: db}
}

func (s *CardStore) LoadCardByNumber(ctx context.Context, number string) (*models.Card, error) {
	query := `
		SELECT id, number, account_id, pin_digest, created_at, updated_at
		FROM cards
		WHERE number = $1
		LIMIT 1
	`

	var card models.Card
	err := s.db.QueryRow(ctx, query, number).Scan(
		&card.ID,
		&card.Number,
		&card.AccountID,
		&card.PinDigest,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("card %s: %w", models.MaskCardNumber(number), models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get card by number: %w", err)
	}

	return &card, nil
}

// SaveCard inserts when ID is zero, otherwise updates the PIN digest.
func (s *CardStore) SaveCard(ctx context.Context, card *models.Card) (*models.Card, error) {
	saved := *card

	if saved.ID == 0 {
		err := s.db.QueryRow(ctx, `
			INSERT INTO cards (number, account_id, pin_digest)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, saved.Number, saved.AccountID, saved.PinDigest).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				case "23505": // unique_violation
					return nil, fmt.Errorf("card %s: %w", models.MaskCardNumber(saved.Number), models.ErrCardExists)
				case "23503": // foreign_key_violation
					return nil, fmt.Errorf("account %d: %w", saved.AccountID, models.ErrNotFound)
				}
			}
			return nil, fmt.Errorf("could not create card: %w", err)
		}
		return &saved, nil
	}

	err := s.db.QueryRow(ctx, `
		UPDATE cards
		SET pin_digest = $2, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, saved.ID, saved.PinDigest).Scan(&saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("card %d: %w", saved.ID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to save card: %w", err)
	}

	return &saved, nil
}

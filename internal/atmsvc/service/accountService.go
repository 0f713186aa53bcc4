package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// AccountService is the account ledger. Every balance change is a
// load-modify-save under a per-account lock.
type AccountService struct {
	store AccountRepository
	locks *keyLock[int64]
}

func NewAccountService(store AccountRepository) *AccountService {
	return &AccountService{
		store: store,
		locks: newKeyLock[int64](),
	}
}

func (s *AccountService) Open(ctx context.Context, initial decimal.Decimal) (*models.Account, error) {
	if initial.IsNegative() {
		return nil, fmt.Errorf("initial balance %s: %w", initial, models.ErrInvalidAmount)
	}
	if err := checkCents("initial balance", initial); err != nil {
		return nil, err
	}

	acc, err := s.store.SaveAccount(ctx, &models.Account{Balance: initial})
	if err != nil {
		return nil, fmt.Errorf("failed to open account: %w", err)
	}

	log.WithField("account", acc.ID).Infof("account opened with balance %s", acc.Balance)
	return acc, nil
}

func (s *AccountService) Get(ctx context.Context, accountID int64) (*models.Account, error) {
	acc, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("account %d: %w", accountID, models.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return acc, nil
}

func (s *AccountService) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	acc, err := s.Get(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

func (s *AccountService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("deposit %s: %w", amount, models.ErrInvalidAmount)
	}
	if err := checkCents("deposit", amount); err != nil {
		return decimal.Zero, err
	}

	acc, err := s.update(ctx, accountID, func(acc *models.Account) error {
		acc.Balance = acc.Balance.Add(amount)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// Withdraw debits amount. A withdrawal equal to the balance is allowed and
// leaves zero.
func (s *AccountService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("withdraw %s: %w", amount, models.ErrInvalidAmount)
	}
	if err := checkCents("withdraw", amount); err != nil {
		return decimal.Zero, err
	}

	acc, err := s.update(ctx, accountID, func(acc *models.Account) error {
		if acc.Balance.LessThan(amount) {
			return fmt.Errorf("withdraw %s from balance %s: %w", amount, acc.Balance, models.ErrInsufficientFunds)
		}
		acc.Balance = acc.Balance.Sub(amount)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

func (s *AccountService) update(ctx context.Context, accountID int64, apply func(acc *models.Account) error) (*models.Account, error) {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	acc, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := apply(acc); err != nil {
		return nil, err
	}

	saved, err := s.store.SaveAccount(ctx, acc)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("account %d: %w", accountID, models.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	return saved, nil
}

// Balances are stored with two decimal places.
func checkCents(op string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(2)) {
		return fmt.Errorf("%s %s has more than two decimal places: %w", op, amount, models.ErrInvalidAmount)
	}
	return nil
}

package service

import (
	"context"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/shopspring/decimal"
)

// Storage collaborators. Missing records are reported with models.ErrNotFound.

type AccountRepository interface {
	LoadAccount(ctx context.Context, id int64) (*models.Account, error)
	SaveAccount(ctx context.Context, acc *models.Account) (*models.Account, error)
}

type CardRepository interface {
	LoadCardByNumber(ctx context.Context, number string) (*models.Card, error)
	SaveCard(ctx context.Context, card *models.Card) (*models.Card, error)
}

type MachineRepository interface {
	LoadMoneyBox(ctx context.Context, machineID string) (*models.MoneyBox, error)
	SaveMoneyBox(ctx context.Context, machineID string, box *models.MoneyBox) error
}

// Ledger is the account balance book the card layer debits and credits.
type Ledger interface {
	Balance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// Dispenser moves physical bills in and out of a machine.
type Dispenser interface {
	Withdraw(ctx context.Context, machine *models.CashMachine, amount decimal.Decimal) (models.Breakdown, error)
	Deposit(ctx context.Context, machine *models.CashMachine, counts ...int) (decimal.Decimal, error)
}

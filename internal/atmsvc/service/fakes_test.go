package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/avvvet/atm-services/internal/atmsvc/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errStorage = errors.New("storage unavailable")

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type ledgerCall struct {
	op        string
	accountID int64
	amount    decimal.Decimal
}

// spyLedger records every ledger call before delegating to a real ledger.
type spyLedger struct {
	Ledger
	mu         sync.Mutex
	calls      []ledgerCall
	depositErr error
}

func (l *spyLedger) record(op string, accountID int64, a decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ledgerCall{op: op, accountID: accountID, amount: a})
}

func (l *spyLedger) Calls() []ledgerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledgerCall(nil), l.calls...)
}

func (l *spyLedger) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	l.record("balance", accountID, decimal.Zero)
	return l.Ledger.Balance(ctx, accountID)
}

func (l *spyLedger) Deposit(ctx context.Context, accountID int64, a decimal.Decimal) (decimal.Decimal, error) {
	l.record("deposit", accountID, a)
	if l.depositErr != nil {
		return decimal.Zero, l.depositErr
	}
	return l.Ledger.Deposit(ctx, accountID, a)
}

func (l *spyLedger) Withdraw(ctx context.Context, accountID int64, a decimal.Decimal) (decimal.Decimal, error) {
	l.record("withdraw", accountID, a)
	return l.Ledger.Withdraw(ctx, accountID, a)
}

// flakyCards fails SaveCard once saveErr is set.
type flakyCards struct {
	CardRepository
	saveErr error
}

func (c *flakyCards) SaveCard(ctx context.Context, card *models.Card) (*models.Card, error) {
	if c.saveErr != nil {
		return nil, c.saveErr
	}
	return c.CardRepository.SaveCard(ctx, card)
}

// flakyMachines fails SaveMoneyBox once saveErr is set.
type flakyMachines struct {
	MachineRepository
	saveErr error
}

func (m *flakyMachines) SaveMoneyBox(ctx context.Context, machineID string, box *models.MoneyBox) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	return m.MachineRepository.SaveMoneyBox(ctx, machineID, box)
}

type fixture struct {
	store    *store.MemoryStore
	accounts *AccountService
	ledger   *spyLedger
	cards    *flakyCards
	digester PinDigester
	cardSvc  *CardService
	boxes    *MoneyBoxService
	cash     *CashMachineService
	machine  *models.CashMachine
}

// newFixture opens account 100 with balance and binds card "1111" with PIN
// "0000" to it. counts seed the machine's default-denomination box.
func newFixture(t *testing.T, policy DepositPolicy, balance int64, counts ...int) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{store: store.NewMemoryStore(), digester: NewSha3Digester("test")}
	f.store.PutAccount(models.Account{ID: 100, Balance: amount(balance)})
	_, err := f.store.SaveCard(ctx, &models.Card{Number: "1111", AccountID: 100, PinDigest: f.digester.Digest("0000")})
	require.NoError(t, err)

	f.accounts = NewAccountService(f.store)
	f.ledger = &spyLedger{Ledger: f.accounts}
	f.cards = &flakyCards{CardRepository: f.store}
	f.cardSvc = NewCardService(f.cards, f.ledger, f.digester)
	f.boxes = NewMoneyBoxService(f.store)

	box, err := models.NewMoneyBoxWithCounts(models.DefaultDenominations, counts)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveMoneyBox(ctx, "atm-1", box))
	f.machine, err = f.boxes.LoadMachine(ctx, "atm-1", models.DefaultDenominations)
	require.NoError(t, err)

	f.cash = NewCashMachineService(f.cardSvc, f.ledger, f.boxes, policy)
	return f
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	b, err := f.accounts.Balance(context.Background(), 100)
	require.NoError(t, err)
	return b
}

func (f *fixture) storedDigest(t *testing.T, number string) string {
	t.Helper()
	card, err := f.store.LoadCardByNumber(context.Background(), number)
	require.NoError(t, err)
	return card.PinDigest
}

// ctxAccounts refuses to touch storage once the request context is done,
// like the pgx store does.
type ctxAccounts struct {
	AccountRepository
}

func (a ctxAccounts) LoadAccount(ctx context.Context, id int64) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.AccountRepository.LoadAccount(ctx, id)
}

func (a ctxAccounts) SaveAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.AccountRepository.SaveAccount(ctx, acc)
}

// hookDispenser runs a hook before each bill movement.
type hookDispenser struct {
	Dispenser
	beforeWithdraw func()
	beforeDeposit  func()
}

func (d *hookDispenser) Withdraw(ctx context.Context, machine *models.CashMachine, a decimal.Decimal) (models.Breakdown, error) {
	if d.beforeWithdraw != nil {
		d.beforeWithdraw()
	}
	return d.Dispenser.Withdraw(ctx, machine, a)
}

func (d *hookDispenser) Deposit(ctx context.Context, machine *models.CashMachine, counts ...int) (decimal.Decimal, error) {
	if d.beforeDeposit != nil {
		d.beforeDeposit()
	}
	return d.Dispenser.Deposit(ctx, machine, counts...)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DepositPolicy decides whether a cash deposit needs the card PIN.
type DepositPolicy int

const (
	DepositRequirePin DepositPolicy = iota // verify the PIN before taking the bills
	DepositCardOnly                        // card must exist
)

// settleTimeout bounds the storage calls that run after the caller's context
// is detached.
const settleTimeout = 30 * time.Second

func (p DepositPolicy) String() string {
	if p == DepositCardOnly {
		return "card-only"
	}
	return "require-pin"
}

// CashMachineService coordinates the card layer and a machine's money box.
// A withdrawal holds the account lock from debit to dispense, so two requests
// on one account never interleave.
type CashMachineService struct {
	cards        *CardService
	ledger       Ledger
	boxes        Dispenser
	policy       DepositPolicy
	accountLocks *keyLock[int64]
}

func NewCashMachineService(cards *CardService, ledger Ledger, boxes Dispenser, policy DepositPolicy) *CashMachineService {
	return &CashMachineService{
		cards:        cards,
		ledger:       ledger,
		boxes:        boxes,
		policy:       policy,
		accountLocks: newKeyLock[int64](),
	}
}

// GetMoney debits the account and dispenses the bills. When the box cannot pay
// out, the debit is reversed once with a compensating deposit. The returned
// Withdrawal is never nil and tells the caller whether the account was left
// untouched, credited back, or left debited because the credit back failed
// (that error also matches models.ErrRollbackFailed).
//
// Once the account lock is held the debit, dispense and credit back run on a
// context detached from the caller, so a cancelled request cannot leave the
// account debited with no cash paid out.
func (s *CashMachineService) GetMoney(ctx context.Context, machine *models.CashMachine, number, pin string, amount decimal.Decimal) (*models.Withdrawal, error) {
	w := models.NewWithdrawal(machine.ID, amount)
	logger := log.WithFields(log.Fields{
		"ref":     w.Ref.String(),
		"machine": machine.ID,
		"card":    models.MaskCardNumber(number),
		"amount":  amount.String(),
	})

	card, err := s.cards.Lookup(ctx, number)
	if err != nil {
		return w.Finish(models.OutcomeFailed, err), err
	}
	w.AccountID = card.AccountID

	unlock := s.accountLocks.Lock(card.AccountID)
	defer unlock()

	ctx, cancel := settleContext(ctx)
	defer cancel()

	if _, err := s.cards.Withdraw(ctx, number, pin, amount); err != nil {
		if !errors.Is(err, models.ErrInvalidPin) && !errors.Is(err, models.ErrInvalidCard) {
			w.Advance(models.StatePinVerified)
		}
		logger.Warnf("withdrawal refused: %s", err)
		return w.Finish(models.OutcomeFailed, err), err
	}
	w.Advance(models.StatePinVerified)
	w.Advance(models.StateLedgerDebited)

	bd, err := s.boxes.Withdraw(ctx, machine, amount)
	if err != nil {
		w.Advance(models.StateDispenseFailed)

		if _, rerr := s.cards.Deposit(ctx, number, pin, amount); rerr != nil {
			ferr := fmt.Errorf("%w (dispense: %w, credit back: %w)", models.ErrRollbackFailed, err, rerr)
			logger.Errorf("Error [CashMachineService.GetMoney] %s", ferr)
			return w.Finish(models.OutcomeRollbackFailed, ferr), ferr
		}

		w.Advance(models.StateLedgerCreditedBack)
		logger.Warnf("dispense failed, account credited back: %s", err)
		return w.Finish(models.OutcomeFailedAfterRollback, err), err
	}

	w.Breakdown = bd
	w.Advance(models.StateDispensed)
	logger.Infof("cash dispensed %v", bd)
	return w.Finish(models.OutcomeDispensed, nil), nil
}

// PutMoney puts bills into the machine and credits their value to the card's
// account. The box is credited first since it cannot fail once the breakdown
// is valid. The PIN is checked once, before the bills are taken; the credit
// goes to the account resolved from the card.
func (s *CashMachineService) PutMoney(ctx context.Context, machine *models.CashMachine, number, pin string, counts ...int) (decimal.Decimal, error) {
	card, err := s.cards.Lookup(ctx, number)
	if err != nil {
		return decimal.Zero, err
	}

	amount, err := machine.Snapshot().Value(counts)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("deposit of %v: %w", counts, models.ErrInvalidAmount)
	}

	if s.policy == DepositRequirePin {
		if _, err := s.cards.Authenticate(ctx, number, pin); err != nil {
			return decimal.Zero, err
		}
	}

	unlock := s.accountLocks.Lock(card.AccountID)
	defer unlock()

	ctx, cancel := settleContext(ctx)
	defer cancel()

	credited, err := s.boxes.Deposit(ctx, machine, counts...)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := s.ledger.Deposit(ctx, card.AccountID, credited)
	if err != nil {
		log.WithFields(log.Fields{
			"machine": machine.ID,
			"card":    card.MaskedNumber(),
			"amount":  credited.String(),
		}).Errorf("Error [CashMachineService.PutMoney] bills accepted but account not credited: %s", err)
		return decimal.Zero, err
	}

	log.WithFields(log.Fields{"machine": machine.ID, "card": card.MaskedNumber()}).Infof("cash deposited %s", credited)
	return balance, nil
}

func (s *CashMachineService) CheckBalance(ctx context.Context, machine *models.CashMachine, number, pin string) (decimal.Decimal, error) {
	return s.cards.GetBalance(ctx, number, pin)
}

func (s *CashMachineService) ChangePin(ctx context.Context, machine *models.CashMachine, number, oldPin, newPin string) (bool, error) {
	return s.cards.ChangePin(ctx, number, oldPin, newPin)
}

func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

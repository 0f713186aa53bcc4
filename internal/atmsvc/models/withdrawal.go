package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalState string

const (
	StateStart              WithdrawalState = "START"
	StatePinVerified        WithdrawalState = "PIN_VERIFIED"
	StateLedgerDebited      WithdrawalState = "LEDGER_DEBITED"
	StateDispensed          WithdrawalState = "DISPENSED"
	StateDispenseFailed     WithdrawalState = "DISPENSE_FAILED"
	StateLedgerCreditedBack WithdrawalState = "LEDGER_CREDITED_BACK"
)

type WithdrawalOutcome string

const (
	OutcomePending             WithdrawalOutcome = "pending"
	OutcomeDispensed           WithdrawalOutcome = "dispensed"
	OutcomeFailed              WithdrawalOutcome = "failed"                // account never touched
	OutcomeFailedAfterRollback WithdrawalOutcome = "failed-after-rollback" // debited then credited back
	OutcomeRollbackFailed      WithdrawalOutcome = "rollback-failed"       // debited, credit back failed
)

// Withdrawal records one cash withdrawal as it moves through its states.
type Withdrawal struct {
	Ref       uuid.UUID         `json:"ref"`
	MachineID string            `json:"machine_id"`
	AccountID int64             `json:"account_id"`
	Amount    decimal.Decimal   `json:"amount"`
	State     WithdrawalState   `json:"state"`
	Outcome   WithdrawalOutcome `json:"outcome"`
	Breakdown Breakdown         `json:"breakdown,omitempty"`
	Err       error             `json:"-"`
}

func NewWithdrawal(machineID string, amount decimal.Decimal) *Withdrawal {
	return &Withdrawal{
		Ref:       uuid.New(),
		MachineID: machineID,
		Amount:    amount,
		State:     StateStart,
		Outcome:   OutcomePending,
	}
}

func (w *Withdrawal) Advance(state WithdrawalState) {
	w.State = state
}

func (w *Withdrawal) Finish(outcome WithdrawalOutcome, err error) *Withdrawal {
	w.Outcome = outcome
	w.Err = err
	return w
}

// AccountTouched reports whether the ledger has a net change from this withdrawal.
func (w *Withdrawal) AccountTouched() bool {
	return w.Outcome == OutcomeDispensed || w.Outcome == OutcomeRollbackFailed
}

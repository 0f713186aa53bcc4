package comm

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/shopspring/decimal"
)

// Message types on the atm.service subject. Replies carry the request type
// with a "-res" suffix.
const (
	TypeGetMoney     = "get-money"
	TypePutMoney     = "put-money"
	TypeCheckBalance = "check-balance"
	TypeChangePin    = "change-pin"
	TypeOpenAccount  = "open-account"
	TypeCreateCard   = "create-card"
	TypeLoadBox      = "load-box"
	TypeBoxStatus    = "box-status"
	TypeHeartbeat    = "machine-heartbeat"
)

func ResponseType(requestType string) string {
	return requestType + "-res"
}

type WSMessage struct {
	Type      string          `json:"type"` // e.g. "get-money", "get-money-res"
	Data      json.RawMessage `json:"data,omitempty"`
	SocketId  string          `json:"socketid,omitempty"` // correlation id echoed back to the caller
	Status    string          `json:"status,omitempty"`   // set on replies, see Status
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// CardRequest identifies the card in front of the machine. MachineID selects
// the machine; empty means the machine the service runs for.
type CardRequest struct {
	MachineID string `json:"machine_id,omitempty"`
	Card      string `json:"card"`
	Pin       string `json:"pin"`
}

type GetMoneyRequest struct {
	CardRequest
	Amount decimal.Decimal `json:"amount"`
}

type PutMoneyRequest struct {
	CardRequest
	Counts []int `json:"counts"` // bills per denomination, largest first
}

type ChangePinRequest struct {
	MachineID string `json:"machine_id,omitempty"`
	Card      string `json:"card"`
	OldPin    string `json:"old_pin"`
	NewPin    string `json:"new_pin"`
}

type OpenAccountRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

type CreateCardRequest struct {
	Number    string `json:"number"`
	AccountID int64  `json:"account_id"`
	Pin       string `json:"pin"`
}

type BoxRequest struct {
	MachineID string `json:"machine_id,omitempty"`
	Counts    []int  `json:"counts,omitempty"`
}

type WithdrawalData struct {
	Ref       string      `json:"ref"`
	MachineID string      `json:"machine_id"`
	Amount    string      `json:"amount"`
	State     string      `json:"state"`
	Outcome   string      `json:"outcome"`
	Breakdown []BillCount `json:"breakdown,omitempty"`
}

type BillCount struct {
	Value int64 `json:"value"`
	Count int   `json:"count"`
}

type BalanceData struct {
	Balance string `json:"balance"`
}

type PinData struct {
	Changed bool `json:"changed"`
}

type AccountData struct {
	ID      int64  `json:"id"`
	Balance string `json:"balance"`
}

type CardData struct {
	ID        int64  `json:"id"`
	Number    string `json:"number"` // masked
	AccountID int64  `json:"account_id"`
}

type BoxData struct {
	MachineID string      `json:"machine_id"`
	Bills     []BillCount `json:"bills"`
	Total     string      `json:"total"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// MachineHeartbeat is published periodically on atm.status.
type MachineHeartbeat struct {
	InstanceID string  `json:"instance_id"`
	Timestamp  int64   `json:"timestamp"`
	Box        BoxData `json:"box"`
}

func NewWithdrawalData(w *models.Withdrawal, denominations []int64) WithdrawalData {
	d := WithdrawalData{
		Ref:       w.Ref.String(),
		MachineID: w.MachineID,
		Amount:    w.Amount.StringFixed(2),
		State:     string(w.State),
		Outcome:   string(w.Outcome),
	}
	if w.Breakdown != nil {
		d.Breakdown = Bills(denominations, w.Breakdown)
	}
	return d
}

func NewBoxData(machineID string, box *models.MoneyBox) BoxData {
	return BoxData{
		MachineID: machineID,
		Bills:     Bills(box.Denominations(), box.Counts()),
		Total:     box.Total().StringFixed(2),
		UpdatedAt: time.Now().UTC(),
	}
}

func NewCardData(card *models.Card) CardData {
	return CardData{
		ID:        card.ID,
		Number:    card.MaskedNumber(),
		AccountID: card.AccountID,
	}
}

// Bills pairs counts with their face values. Missing counts are zero.
func Bills(denominations []int64, counts []int) []BillCount {
	bills := make([]BillCount, len(denominations))
	for i, d := range denominations {
		bills[i].Value = d
		if i < len(counts) {
			bills[i].Count = counts[i]
		}
	}
	return bills
}

const (
	StatusOK                = "ok"
	StatusInvalidCard       = "invalid_card"
	StatusInvalidCardNumber = "invalid_card_number"
	StatusCardExists        = "card_exists"
	StatusInvalidPin        = "invalid_pin"
	StatusInvalidPinFormat  = "invalid_pin_format"
	StatusInsufficientFunds = "insufficient_funds"
	StatusInvalidAmount     = "invalid_amount"
	StatusInvalidBreakdown  = "invalid_breakdown"
	StatusCannotDispense    = "cannot_dispense"
	StatusRollbackFailed    = "rollback_failed"
	StatusAccountNotFound   = "account_not_found"
	StatusMachineNotFound   = "machine_not_found"
	StatusBadRequest        = "bad_request"
	StatusInternal          = "internal_error"
)

// Status maps a service error to the status code sent to callers. A failed
// credit back is reported before the dispense error it wraps.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, models.ErrRollbackFailed):
		return StatusRollbackFailed
	case errors.Is(err, models.ErrInvalidCard):
		return StatusInvalidCard
	case errors.Is(err, models.ErrInvalidCardNumber):
		return StatusInvalidCardNumber
	case errors.Is(err, models.ErrCardExists):
		return StatusCardExists
	case errors.Is(err, models.ErrInvalidPin):
		return StatusInvalidPin
	case errors.Is(err, models.ErrInvalidPinFormat):
		return StatusInvalidPinFormat
	case errors.Is(err, models.ErrInsufficientFunds):
		return StatusInsufficientFunds
	case errors.Is(err, models.ErrInvalidAmount):
		return StatusInvalidAmount
	case errors.Is(err, models.ErrInvalidBreakdown):
		return StatusInvalidBreakdown
	case errors.Is(err, models.ErrCannotDispense):
		return StatusCannotDispense
	case errors.Is(err, models.ErrAccountNotFound):
		return StatusAccountNotFound
	case errors.Is(err, models.ErrMachineNotFound):
		return StatusMachineNotFound
	default:
		return StatusInternal
	}
}

// PublicError is the error text safe to send to callers; storage errors are
// not leaked.
func PublicError(err error) string {
	if err == nil {
		return ""
	}
	switch Status(err) {
	case StatusInternal:
		return "internal error"
	case StatusRollbackFailed:
		return models.ErrRollbackFailed.Error()
	}
	for _, sentinel := range []error{
		models.ErrInvalidCard, models.ErrInvalidCardNumber, models.ErrCardExists,
		models.ErrInvalidPin, models.ErrInvalidPinFormat, models.ErrInsufficientFunds,
		models.ErrInvalidAmount, models.ErrInvalidBreakdown, models.ErrCannotDispense,
		models.ErrAccountNotFound, models.ErrMachineNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

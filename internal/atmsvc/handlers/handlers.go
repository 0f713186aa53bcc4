package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/avvvet/atm-services/internal/atmsvc/service"
	"github.com/avvvet/atm-services/internal/comm"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	port      string

	accounts *service.AccountService
	cards    *service.CardService
	boxes    *service.MoneyBoxService
	cash     *service.CashMachineService
}

func NewHandler(port string, accounts *service.AccountService, cards *service.CardService,
	boxes *service.MoneyBoxService, cash *service.CashMachineService) *Handler {
	return &Handler{
		port:     port,
		accounts: accounts,
		cards:    cards,
		boxes:    boxes,
		cash:     cash,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

// createErrorResponse answers with the status code of err. data is still
// sent so a failed withdrawal reports its outcome.
func (h *Handler) createErrorResponse(w http.ResponseWriter, err error, data interface{}) {
	status := comm.Status(err)
	code := httpCode(status)
	if code == http.StatusInternalServerError {
		log.Errorf("Error [Handler] %s", err)
	}
	h.CreateResponse(w, Response{
		Message: status,
		Code:    code,
		Data:    data,
		Error:   comm.PublicError(err),
	})
}

func httpCode(status string) int {
	switch status {
	case comm.StatusOK:
		return http.StatusOK
	case comm.StatusInvalidCard, comm.StatusAccountNotFound, comm.StatusMachineNotFound:
		return http.StatusNotFound
	case comm.StatusInvalidPin:
		return http.StatusForbidden
	case comm.StatusInvalidAmount, comm.StatusInvalidBreakdown, comm.StatusInvalidPinFormat,
		comm.StatusInvalidCardNumber, comm.StatusBadRequest:
		return http.StatusBadRequest
	case comm.StatusCardExists, comm.StatusInsufficientFunds:
		return http.StatusConflict
	case comm.StatusCannotDispense:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.CreateResponse(w, Response{
			Message: comm.StatusBadRequest,
			Code:    http.StatusBadRequest,
			Error:   "invalid request body",
		})
		return false
	}
	return true
}

func (h *Handler) machine(w http.ResponseWriter, r *http.Request) (*models.CashMachine, bool) {
	machine, err := h.boxes.Machine(chi.URLParam(r, "id"))
	if err != nil {
		h.createErrorResponse(w, err, nil)
		return nil, false
	}
	return machine, true
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "atm service is running at port " + h.port,
		Code:    http.StatusOK,
	})
}

func (h *Handler) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req comm.OpenAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	acc, err := h.accounts.Open(r.Context(), req.Balance)
	if err != nil {
		h.createErrorResponse(w, err, nil)
		return
	}

	h.CreateResponse(w, Response{
		Message: "account opened",
		Code:    http.StatusCreated,
		Data:    comm.AccountData{ID: acc.ID, Balance: acc.Balance.StringFixed(2)},
	})
}

func (h *Handler) CreateCardHandler(w http.ResponseWriter, r *http.Request) {
	var req comm.CreateCardRequest
	if !h.decode(w, r, &req) {
		return
	}

	card, err := h.cards.CreateCard(r.Context(), req.Number, req.AccountID, req.Pin)
	if err != nil {
		h.createErrorResponse(w, err, nil)
		return
	}

	h.CreateResponse(w, Response{
		Message: "card created",
		Code:    http.StatusCreated,
		Data:    comm.NewCardData(card),
	})
}

func (h *Handler) MachineStatusHandler(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}

	h.CreateResponse(w, Response{
		Message: comm.StatusOK,
		Code:    http.StatusOK,
		Data:    comm.NewBoxData(machine.ID, machine.Snapshot()),
	})
}

func (h *Handler) LoadMachineHandler(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}
	var req comm.BoxRequest
	if !h.decode(w, r, &req) {
		return
	}

	box, err := h.boxes.Load(r.Context(), machine, req.Counts...)
	if err != nil {
		h.createErrorResponse(w, err, nil)
		return
	}

	h.CreateResponse(w, Response{
		Message: "money box loaded",
		Code:    http.StatusOK,
		Data:    comm.NewBoxData(machine.ID, box),
	})
}

func (h *Handler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}
	var req comm.GetMoneyRequest
	if !h.decode(w, r, &req) {
		return
	}

	wd, err := h.cash.GetMoney(r.Context(), machine, req.Card, req.Pin, req.Amount)
	data := comm.NewWithdrawalData(wd, machine.Snapshot().Denominations())
	if err != nil {
		h.createErrorResponse(w, err, data)
		return
	}

	h.CreateResponse(w, Response{
		Message: "cash dispensed",
		Code:    http.StatusOK,
		Data:    data,
	})
}

func (h *Handler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}
	var req comm.PutMoneyRequest
	if !h.decode(w, r, &req) {
		return
	}

	balance, err := h.cash.PutMoney(r.Context(), machine, req.Card, req.Pin, req.Counts...)
	if err != nil {
		h.createErrorResponse(w, err, nil)
		return
	}

	h.CreateResponse(w, Response{
		Message: "cash deposited",
		Code:    http.StatusOK,
		Data:    comm.BalanceData{Balance: balance.StringFixed(2)},
	})
}

func (h *Handler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}
	var req comm.CardRequest
	if !h.decode(w, r, &req) {
		return
	}

	balance, err := h.cash.CheckBalance(r.Context(), machine, req.Card, req.Pin)
	if err != nil {
		h.createErrorResponse(w, err, nil)
		return
	}

	h.CreateResponse(w, Response{
		Message: comm.StatusOK,
		Code:    http.StatusOK,
		Data:    comm.BalanceData{Balance: balance.StringFixed(2)},
	})
}

func (h *Handler) ChangePinHandler(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}
	var req comm.ChangePinRequest
	if !h.decode(w, r, &req) {
		return
	}

	changed, err := h.cash.ChangePin(r.Context(), machine, req.Card, req.OldPin, req.NewPin)
	if err != nil {
		h.createErrorResponse(w, err, nil)
		return
	}

	msg := "pincode changed"
	if !changed {
		msg = "pincode not changed"
	}
	h.CreateResponse(w, Response{
		Message: msg,
		Code:    http.StatusOK,
		Data:    comm.PinData{Changed: changed},
	})
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/avvvet/atm-services/internal/atmsvc/service"
	"github.com/avvvet/atm-services/internal/atmsvc/store"
	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router http.Handler
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	accounts := service.NewAccountService(st)
	cards := service.NewCardService(st, accounts, service.NewSha3Digester(""))
	boxes := service.NewMoneyBoxService(st)
	machine, err := boxes.LoadMachine(ctx, "atm-1", models.DefaultDenominations)
	require.NoError(t, err)
	_, err = boxes.Load(ctx, machine, 2, 2, 2, 2)
	require.NoError(t, err)
	cash := service.NewCashMachineService(cards, accounts, boxes, service.DepositRequirePin)

	acc, err := accounts.Open(ctx, decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = cards.CreateCard(ctx, "1111", acc.ID, "0000")
	require.NoError(t, err)

	h := NewHandler("8084", accounts, cards, boxes, cash)
	require.NoError(t, h.InitAuth("test-secret"))
	token, err := h.OperatorToken("tester", time.Hour)
	require.NoError(t, err)

	r := chi.NewRouter()
	h.SetRoutes(r)
	return &testServer{router: r, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, auth bool) (int, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var rsp Response
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &rsp)
	}
	return rec.Code, rsp
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)

	code, rsp := s.do(t, http.MethodGet, "/v1/health", nil, false)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, rsp.Message, "8084")
}

func TestRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/v1/machines/atm-1", nil, false)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestWithdrawHandler(t *testing.T) {
	s := newTestServer(t)

	code, rsp := s.do(t, http.MethodPost, "/v1/machines/atm-1/withdraw",
		map[string]interface{}{"card": "1111", "pin": "0000", "amount": "600"}, true)
	require.Equal(t, http.StatusOK, code, rsp.Error)
	data := rsp.Data.(map[string]interface{})
	assert.Equal(t, "dispensed", data["outcome"])

	code, rsp = s.do(t, http.MethodPost, "/v1/machines/atm-1/balance",
		map[string]interface{}{"card": "1111", "pin": "0000"}, true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "400.00", rsp.Data.(map[string]interface{})["balance"])
}

func TestWithdrawHandlerErrors(t *testing.T) {
	s := newTestServer(t)

	code, rsp := s.do(t, http.MethodPost, "/v1/machines/atm-1/withdraw",
		map[string]interface{}{"card": "1111", "pin": "9999", "amount": "100"}, true)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Pincode is incorrect", rsp.Error)

	code, _ = s.do(t, http.MethodPost, "/v1/machines/atm-1/withdraw",
		map[string]interface{}{"card": "1111", "pin": "0000", "amount": "5000"}, true)
	assert.Equal(t, http.StatusConflict, code)

	// 50 cannot be paid with the smallest bill of 100
	code, rsp = s.do(t, http.MethodPost, "/v1/machines/atm-1/withdraw",
		map[string]interface{}{"card": "1111", "pin": "0000", "amount": "50"}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "failed-after-rollback", rsp.Data.(map[string]interface{})["outcome"])

	code, _ = s.do(t, http.MethodPost, "/v1/machines/atm-404/withdraw",
		map[string]interface{}{"card": "1111", "pin": "0000", "amount": "100"}, true)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDepositAndPinHandlers(t *testing.T) {
	s := newTestServer(t)

	code, rsp := s.do(t, http.MethodPost, "/v1/machines/atm-1/deposit",
		map[string]interface{}{"card": "1111", "pin": "0000", "counts": []int{0, 1}}, true)
	require.Equal(t, http.StatusOK, code, rsp.Error)
	assert.Equal(t, "2000.00", rsp.Data.(map[string]interface{})["balance"])

	code, rsp = s.do(t, http.MethodPost, "/v1/machines/atm-1/pin",
		map[string]interface{}{"card": "1111", "old_pin": "0000", "new_pin": "2468"}, true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, rsp.Data.(map[string]interface{})["changed"])

	code, _ = s.do(t, http.MethodPost, "/v1/machines/atm-1/balance",
		map[string]interface{}{"card": "1111", "pin": "2468"}, true)
	assert.Equal(t, http.StatusOK, code)
}

func TestAccountCardAndMachineHandlers(t *testing.T) {
	s := newTestServer(t)

	code, rsp := s.do(t, http.MethodPost, "/v1/accounts", map[string]interface{}{"balance": "50"}, true)
	require.Equal(t, http.StatusCreated, code, rsp.Error)
	id := rsp.Data.(map[string]interface{})["id"].(float64)

	code, rsp = s.do(t, http.MethodPost, "/v1/cards",
		map[string]interface{}{"number": "22223333", "account_id": id, "pin": "1357"}, true)
	require.Equal(t, http.StatusCreated, code, rsp.Error)
	assert.Equal(t, "****3333", rsp.Data.(map[string]interface{})["number"])

	code, _ = s.do(t, http.MethodPost, "/v1/cards",
		map[string]interface{}{"number": "22223333", "account_id": id, "pin": "1357"}, true)
	assert.Equal(t, http.StatusConflict, code)

	code, rsp = s.do(t, http.MethodGet, "/v1/machines/atm-1", nil, true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "13200.00", rsp.Data.(map[string]interface{})["total"])

	code, rsp = s.do(t, http.MethodPost, "/v1/machines/atm-1/load", map[string]interface{}{"counts": []int{1}}, true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "18200.00", rsp.Data.(map[string]interface{})["total"])
}

func TestBadBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitAuthNeedsSecret(t *testing.T) {
	h := NewHandler("8084", nil, nil, nil, nil)
	assert.Error(t, h.InitAuth(""))
}

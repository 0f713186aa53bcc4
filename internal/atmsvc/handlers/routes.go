package handlers

import (
	"errors"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

var errNoSecret = errors.New("JWT_SECRET_KEY is empty")

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Post("/accounts", h.OpenAccountHandler)
			r.Post("/cards", h.CreateCardHandler)

			r.Route("/machines/{id}", func(r chi.Router) {
				r.Get("/", h.MachineStatusHandler)
				r.Post("/load", h.LoadMachineHandler)
				r.Post("/withdraw", h.WithdrawHandler)
				r.Post("/deposit", h.DepositHandler)
				r.Post("/balance", h.BalanceHandler)
				r.Post("/pin", h.ChangePinHandler)
			})
		})
	})
}

// InitAuth sets the HS256 key operator tokens are verified with.
func (h *Handler) InitAuth(secret string) error {
	if secret == "" {
		return errNoSecret
	}
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
	return nil
}

// OperatorToken issues a token for the given operator, valid for ttl.
func (h *Handler) OperatorToken(operator string, ttl time.Duration) (string, error) {
	_, tokenString, err := h.tokenAuth.Encode(map[string]interface{}{
		"operator": operator,
		"exp":      time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		log.Errorf("Error [Handler.OperatorToken] %s", err)
		return "", err
	}
	return tokenString, nil
}

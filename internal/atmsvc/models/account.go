package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID        int64           `json:"id"`      // Primary key, assigned by storage
	Balance   decimal.Decimal `json:"balance"` // Never negative after a committed operation
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

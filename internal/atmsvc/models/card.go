package models

import "time"

type Card struct {
	ID        int64     `json:"id"`         // Primary key
	Number    string    `json:"number"`     // Unique external card number
	AccountID int64     `json:"account_id"` // FK to accounts(id)
	PinDigest string    `json:"-"`          // One-way digest of the PIN, raw PIN is never stored
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaskedNumber keeps the last four digits, for logs.
func (c *Card) MaskedNumber() string {
	return MaskCardNumber(c.Number)
}

func MaskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	masked := make([]byte, len(number))
	for i := range masked {
		if i < len(number)-4 {
			masked[i] = '*'
		} else {
			masked[i] = number[i]
		}
	}
	return string(masked)
}

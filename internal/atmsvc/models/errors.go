package models

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidCard       = errors.New("card not found")
	ErrMachineNotFound   = errors.New("cash machine not found")
	ErrCardExists        = errors.New("card number already exists")
	ErrInvalidCardNumber = errors.New("card number must be 4 to 19 digits")
	ErrInvalidPin        = errors.New("Pincode is incorrect")
	ErrInvalidPinFormat  = errors.New("pincode must be 4 to 12 digits")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrCannotDispense    = errors.New("cannot dispense amount with available bills")
	ErrInvalidBreakdown  = errors.New("invalid bill breakdown")
	ErrRollbackFailed    = errors.New("compensating deposit failed, account and cash box are inconsistent")
)

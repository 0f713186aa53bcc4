package models

import "sync"

// CashMachine wraps exactly one money box. mu serializes every box mutation.
type CashMachine struct {
	ID  string
	box *MoneyBox
	mu  sync.Mutex
}

func NewCashMachine(id string, box *MoneyBox) *CashMachine {
	return &CashMachine{ID: id, box: box}
}

// WithBox runs fn while holding the machine lock.
func (m *CashMachine) WithBox(fn func(box *MoneyBox) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.box)
}

// Snapshot returns a copy of the box, safe to read without the lock.
func (m *CashMachine) Snapshot() *MoneyBox {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.box.Copy()
}

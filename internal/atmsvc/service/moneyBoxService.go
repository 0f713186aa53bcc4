package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// MoneyBoxService mutates machine money boxes under the machine lock and
// writes the new stock to the machine store after every change. Loaded
// machines stay registered so every request for an id shares one CashMachine.
type MoneyBoxService struct {
	store MachineRepository

	mu       sync.RWMutex
	machines map[string]*models.CashMachine
}

func NewMoneyBoxService(store MachineRepository) *MoneyBoxService {
	return &MoneyBoxService{
		store:    store,
		machines: make(map[string]*models.CashMachine),
	}
}

// LoadMachine restores a machine's stock from the store, or starts it with an
// empty box of the given denominations. A machine already loaded is returned
// as is.
func (s *MoneyBoxService) LoadMachine(ctx context.Context, machineID string, denominations []int64) (*models.CashMachine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.machines[machineID]; ok {
		return m, nil
	}

	m, err := s.restore(ctx, machineID, denominations)
	if err != nil {
		return nil, err
	}
	s.machines[machineID] = m
	return m, nil
}

// Machine returns a loaded machine.
func (s *MoneyBoxService) Machine(machineID string) (*models.CashMachine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.machines[machineID]
	if !ok {
		return nil, fmt.Errorf("machine %q: %w", machineID, models.ErrMachineNotFound)
	}
	return m, nil
}

func (s *MoneyBoxService) restore(ctx context.Context, machineID string, denominations []int64) (*models.CashMachine, error) {
	box, err := s.store.LoadMoneyBox(ctx, machineID)
	if err == nil {
		log.WithField("machine", machineID).Infof("money box restored %s", box)
		return models.NewCashMachine(machineID, box), nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to load machine %s: %w", machineID, err)
	}

	box, err = models.NewMoneyBox(denominations)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveMoneyBox(ctx, machineID, box); err != nil {
		return nil, fmt.Errorf("failed to register machine %s: %w", machineID, err)
	}
	log.WithField("machine", machineID).Infof("new empty money box %v", denominations)
	return models.NewCashMachine(machineID, box), nil
}

// Withdraw takes the bills for amount out of the machine, all or nothing.
func (s *MoneyBoxService) Withdraw(ctx context.Context, machine *models.CashMachine, amount decimal.Decimal) (models.Breakdown, error) {
	var bd models.Breakdown
	err := machine.WithBox(func(box *models.MoneyBox) error {
		var err error
		bd, err = box.Withdraw(amount)
		if err != nil {
			return err
		}
		s.persist(ctx, machine.ID, box)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bd, nil
}

// Deposit puts bills into the machine and returns the amount they are worth.
func (s *MoneyBoxService) Deposit(ctx context.Context, machine *models.CashMachine, counts ...int) (decimal.Decimal, error) {
	var credited decimal.Decimal
	err := machine.WithBox(func(box *models.MoneyBox) error {
		var err error
		credited, err = box.Deposit(counts)
		if err != nil {
			return err
		}
		s.persist(ctx, machine.ID, box)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return credited, nil
}

// Load restocks the machine by an operator. Unlike a customer deposit no
// account is credited.
func (s *MoneyBoxService) Load(ctx context.Context, machine *models.CashMachine, counts ...int) (*models.MoneyBox, error) {
	if _, err := s.Deposit(ctx, machine, counts...); err != nil {
		return nil, err
	}
	box := machine.Snapshot()
	log.WithField("machine", machine.ID).Infof("money box loaded %s", box)
	return box, nil
}

// The bills have already moved when persist runs, so a store failure is only
// logged; the in-memory box stays the source of truth.
func (s *MoneyBoxService) persist(ctx context.Context, machineID string, box *models.MoneyBox) {
	if err := s.store.SaveMoneyBox(ctx, machineID, box); err != nil {
		log.WithField("machine", machineID).Errorf("Error [MoneyBoxService.persist] %s", err)
	}
}

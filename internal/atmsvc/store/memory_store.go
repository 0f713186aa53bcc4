package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
)

// MemoryStore keeps accounts, cards and money boxes in process memory.
// It is used when no database is configured and in tests. All values are
// copied in and out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.Mutex
	nextAccountID int64
	nextCardID    int64
	accounts      map[int64]models.Account
	cards         map[string]models.Card
	boxes         map[string]boxRecord
}

type boxRecord struct {
	denominations []int64
	counts        []int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[int64]models.Account),
		cards:    make(map[string]models.Card),
		boxes:    make(map[string]boxRecord),
	}
}

func (s *MemoryStore) LoadAccount(ctx context.Context, id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, models.ErrNotFound)
	}
	return &acc, nil
}

// SaveAccount inserts when ID is zero, otherwise updates an existing account.
func (s *MemoryStore) SaveAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	saved := *acc
	if saved.ID == 0 {
		s.nextAccountID++
		saved.ID = s.nextAccountID
		saved.CreatedAt = now
	} else {
		existing, ok := s.accounts[saved.ID]
		if !ok {
			return nil, fmt.Errorf("account %d: %w", saved.ID, models.ErrNotFound)
		}
		saved.CreatedAt = existing.CreatedAt
	}
	saved.UpdatedAt = now
	s.accounts[saved.ID] = saved
	return &saved, nil
}

// PutAccount stores an account under a fixed id, bypassing id assignment.
func (s *MemoryStore) PutAccount(acc models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc.ID > s.nextAccountID {
		s.nextAccountID = acc.ID
	}
	s.accounts[acc.ID] = acc
}

func (s *MemoryStore) LoadCardByNumber(ctx context.Context, number string) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[number]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", models.MaskCardNumber(number), models.ErrNotFound)
	}
	return &card, nil
}

// SaveCard inserts when ID is zero (number must be unused), otherwise updates
// the card with that number.
func (s *MemoryStore) SaveCard(ctx context.Context, card *models.Card) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	saved := *card
	existing, exists := s.cards[saved.Number]
	if saved.ID == 0 {
		if exists {
			return nil, fmt.Errorf("card %s: %w", models.MaskCardNumber(saved.Number), models.ErrCardExists)
		}
		s.nextCardID++
		saved.ID = s.nextCardID
		saved.CreatedAt = now
	} else {
		if !exists || existing.ID != saved.ID {
			return nil, fmt.Errorf("card %d: %w", saved.ID, models.ErrNotFound)
		}
		saved.CreatedAt = existing.CreatedAt
	}
	saved.UpdatedAt = now
	s.cards[saved.Number] = saved
	return &saved, nil
}

func (s *MemoryStore) LoadMoneyBox(ctx context.Context, machineID string) (*models.MoneyBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.boxes[machineID]
	if !ok {
		return nil, fmt.Errorf("machine %s: %w", machineID, models.ErrNotFound)
	}
	return models.NewMoneyBoxWithCounts(rec.denominations, rec.counts)
}

func (s *MemoryStore) SaveMoneyBox(ctx context.Context, machineID string, box *models.MoneyBox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.boxes[machineID] = boxRecord{denominations: box.Denominations(), counts: box.Counts()}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CardService resolves card numbers to accounts and gates every ledger
// operation behind PIN verification.
type CardService struct {
	cards    CardRepository
	ledger   Ledger
	digester PinDigester
}

func NewCardService(cards CardRepository, ledger Ledger, digester PinDigester) *CardService {
	return &CardService{
		cards:    cards,
		ledger:   ledger,
		digester: digester,
	}
}

func (s *CardService) CreateCard(ctx context.Context, number string, accountID int64, pin string) (*models.Card, error) {
	if !digitsBetween(number, 4, 19) {
		return nil, models.ErrInvalidCardNumber
	}
	if !digitsBetween(pin, 4, 12) {
		return nil, models.ErrInvalidPinFormat
	}
	if _, err := s.ledger.Balance(ctx, accountID); err != nil {
		return nil, err
	}

	card, err := s.cards.SaveCard(ctx, &models.Card{
		Number:    number,
		AccountID: accountID,
		PinDigest: s.digester.Digest(pin),
	})
	if err != nil {
		if errors.Is(err, models.ErrCardExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	log.WithFields(log.Fields{"card": card.MaskedNumber(), "account": accountID}).Info("card created")
	return card, nil
}

// Lookup finds a card without checking the PIN.
func (s *CardService) Lookup(ctx context.Context, number string) (*models.Card, error) {
	card, err := s.cards.LoadCardByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("card %s: %w", models.MaskCardNumber(number), models.ErrInvalidCard)
		}
		return nil, fmt.Errorf("failed to load card: %w", err)
	}
	return card, nil
}

// Authenticate returns the account id of the card when pin matches its digest.
func (s *CardService) Authenticate(ctx context.Context, number, pin string) (int64, error) {
	card, err := s.Lookup(ctx, number)
	if err != nil {
		return 0, err
	}
	if !pinMatches(s.digester, card.PinDigest, pin) {
		log.WithField("card", card.MaskedNumber()).Warn("incorrect pincode")
		return 0, models.ErrInvalidPin
	}
	return card.AccountID, nil
}

func (s *CardService) GetBalance(ctx context.Context, number, pin string) (decimal.Decimal, error) {
	accountID, err := s.Authenticate(ctx, number, pin)
	if err != nil {
		return decimal.Zero, err
	}
	return s.ledger.Balance(ctx, accountID)
}

// Withdraw debits the card's account and returns the amount removed.
func (s *CardService) Withdraw(ctx context.Context, number, pin string, amount decimal.Decimal) (decimal.Decimal, error) {
	accountID, err := s.Authenticate(ctx, number, pin)
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := s.ledger.Withdraw(ctx, accountID, amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// Deposit credits the card's account and returns the new balance.
func (s *CardService) Deposit(ctx context.Context, number, pin string, amount decimal.Decimal) (decimal.Decimal, error) {
	accountID, err := s.Authenticate(ctx, number, pin)
	if err != nil {
		return decimal.Zero, err
	}
	return s.ledger.Deposit(ctx, accountID, amount)
}

// ChangePin replaces the PIN digest. A missing card or a wrong old PIN is an
// error; a failed save is reported as false and leaves the old digest in place.
func (s *CardService) ChangePin(ctx context.Context, number, oldPin, newPin string) (bool, error) {
	card, err := s.Lookup(ctx, number)
	if err != nil {
		return false, err
	}
	if !pinMatches(s.digester, card.PinDigest, oldPin) {
		log.WithField("card", card.MaskedNumber()).Warn("incorrect pincode on pin change")
		return false, models.ErrInvalidPin
	}
	if !digitsBetween(newPin, 4, 12) {
		return false, models.ErrInvalidPinFormat
	}

	updated := *card
	updated.PinDigest = s.digester.Digest(newPin)
	if _, err := s.cards.SaveCard(ctx, &updated); err != nil {
		log.WithField("card", card.MaskedNumber()).Warnf("pincode not changed: %s", err)
		return false, nil
	}

	log.WithField("card", card.MaskedNumber()).Info("pincode changed")
	return true, nil
}

func digitsBetween(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

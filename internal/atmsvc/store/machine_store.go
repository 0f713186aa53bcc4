package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const machineCollection = "machines"

// MachineStore persists the bill stock of each cash machine in MongoDB.
type MachineStore struct {
	coll *mongo.Collection
}

type machineDoc struct {
	ID            string    `bson:"_id"`
	Denominations []int64   `bson:"denominations"`
	Counts        []int     `bson:"counts"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func NewMachineStore(db *mongo.Database) *MachineStore {
	return &MachineStore{coll: db.Collection(machineCollection)}
}

func (s *MachineStore) LoadMoneyBox(ctx context.Context, machineID string) (*models.MoneyBox, error) {
	var doc machineDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": machineID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("machine %s: %w", machineID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load money box: %w", err)
	}

	return models.NewMoneyBoxWithCounts(doc.Denominations, doc.Counts)
}

func (s *MachineStore) SaveMoneyBox(ctx context.Context, machineID string, box *models.MoneyBox) error {
	doc := machineDoc{
		ID:            machineID,
		Denominations: box.Denominations(),
		Counts:        box.Counts(),
		UpdatedAt:     time.Now(),
	}

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": machineID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save money box: %w", err)
	}
	return nil
}

package mongostore

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrAddressNotFound = errors.New("address not found")

// GetAddress loads one of the owner's addresses. Address ids may be ObjectIDs
// or plain strings depending on which system created them.
func (s *CustomerStore) GetAddress(ctx context.Context, ownerID, addressID string) (*models.Address, error) {
	var id interface{} = addressID
	if oid, err := primitive.ObjectIDFromHex(addressID); err == nil {
		id = oid
	}

	var address models.Address
	err := s.addresses.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&address)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &address, nil
}

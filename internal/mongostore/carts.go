package mongostore

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrVersionConflict = errors.New("cart was modified concurrently")
)

// GetCart loads the owner's cart.
func (s *CustomerStore) GetCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	var cart models.Cart

	err := s.carts.FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if cart.Lines == nil {
		cart.Lines = []models.CartLine{}
	}
	return &cart, nil
}

// SaveCart inserts a new cart (Version 0) or replaces the lines of an
// existing one if its stored version still equals cart.Version. On success
// cart.Version is advanced.
func (s *CustomerStore) SaveCart(ctx context.Context, cart *models.Cart) error {
	if cart.Lines == nil {
		cart.Lines = []models.CartLine{}
	}

	if cart.Version == 0 {
		doc := *cart
		doc.Version = 1
		if _, err := s.carts.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrVersionConflict
			}
			return fmt.Errorf("failed to create cart: %w", err)
		}
		cart.Version = 1
		return nil
	}

	filter := bson.M{"owner_id": cart.OwnerID, "version": cart.Version}
	update := bson.M{
		"$set": bson.M{
			"lines":      cart.Lines,
			"updated_at": cart.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := s.carts.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrVersionConflict
	}

	cart.Version++
	return nil
}

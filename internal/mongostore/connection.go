package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	cartsCollection     = "carts"
	addressesCollection = "addresses"
)

// CustomerStore is the customer-owned MongoDB database holding carts and
// addresses.
type CustomerStore struct {
	client    *mongo.Client
	carts     *mongo.Collection
	addresses *mongo.Collection
}

// Connect creates the client. The driver connects lazily, so an unreachable
// server does not fail here; Ping reports readiness.
func Connect(ctx context.Context, uri, database string) (*CustomerStore, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := client.Database(database)
	return &CustomerStore{
		client:    client,
		carts:     db.Collection(cartsCollection),
		addresses: db.Collection(addressesCollection),
	}, nil
}

// Ping verifies the primary is reachable.
func (s *CustomerStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *CustomerStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the one-cart-per-owner index and the address lookup index.
func (s *CustomerStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.carts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}

	_, err = s.addresses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create address indexes: %w", err)
	}
	return nil
}

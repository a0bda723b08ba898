package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by the mongo repositories.
const (
	CodesCollection       = "redemption_codes"
	RedemptionsCollection = "code_redemptions"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// ConnectMongo establishes a connection to MongoDB. Ledger transactions need
// a replica set or sharded cluster.
func ConnectMongo(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	clientOptions := options.Client().ApplyURI(uri)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoDB := &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}

	if err := mongoDB.CreateIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return mongoDB, nil
}

// CreateIndexes creates all necessary indexes for the application
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	codes := m.Database.Collection(CodesCollection)
	codeIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("code_unique"),
	}
	if _, err := codes.Indexes().CreateOne(ctx, codeIndex); err != nil {
		return fmt.Errorf("failed to create code index: %w", err)
	}

	// One redemption per (code, wallet); the ledger relies on this index
	// rather than a prior lookup.
	redemptions := m.Database.Collection(RedemptionsCollection)
	walletIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "code_id", Value: 1},
			{Key: "wallet_address", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("code_wallet_unique"),
	}
	if _, err := redemptions.Indexes().CreateOne(ctx, walletIndex); err != nil {
		return fmt.Errorf("failed to create code_wallet unique index: %w", err)
	}

	codeNameIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetName("code_index"),
	}
	if _, err := redemptions.Indexes().CreateOne(ctx, codeNameIndex); err != nil {
		return fmt.Errorf("failed to create redemption code index: %w", err)
	}

	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

package mongo

import (
	"context"
	"fmt"

	"github.com/Rrens/chat-assistant/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	ConversationsCollection      = "conversations"
	GuestConversationsCollection = "guest_conversations"
)

// DB wraps the Mongo client and the application database
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client and verifies it with a ping
func Connect(ctx context.Context, cfg config.MongoConfig) (*DB, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &DB{client: client, db: client.Database(cfg.Database)}, nil
}

// Ping verifies connectivity
func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

// Close disconnects the client
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on. The unique
// guest_id index is what makes FindOrCreate safe under concurrency.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	_, err := d.db.Collection(ConversationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldOwnerUserID, Value: 1}, {Key: fieldUpdatedAt, Value: -1}},
		Options: options.Index().SetName("owner_updated"),
	})
	if err != nil {
		return fmt.Errorf("failed to create conversations index: %w", err)
	}

	_, err = d.db.Collection(GuestConversationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldGuestID, Value: 1}},
		Options: options.Index().SetName("guest_id_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create guest conversations index: %w", err)
	}

	return nil
}

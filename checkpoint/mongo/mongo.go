// Package mongo provides a durable checkpoint.Store backed by MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ripplecurve/ripplecurve/checkpoint"
	"github.com/ripplecurve/ripplecurve/core"
)

// CollectionName is the checkpoint collection.
const CollectionName = "checkpoints"

// Store persists checkpoints in a MongoDB collection keyed by thread_id.
// One document per thread; upserts are last-write-wins with a version
// increment.
type Store struct {
	coll *mongo.Collection
}

var _ checkpoint.Store = (*Store)(nil)

// NewStore creates a Store on the given database.
func NewStore(db *mongo.Database) *Store {
	return &Store{coll: db.Collection(CollectionName)}
}

// Connect dials MongoDB, pings it, and returns a Store on the named database.
func Connect(ctx context.Context, uri, dbName string) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return NewStore(client.Database(dbName)), client, nil
}

// Get implements checkpoint.Store.
func (s *Store) Get(ctx context.Context, threadID string) (*core.ConversationState, error) {
	var doc checkpoint.Checkpoint
	err := s.coll.FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint lookup failed: %w", err)
	}
	return &doc.State, nil
}

// Put implements checkpoint.Store as a $set upsert with a version increment.
func (s *Store) Put(ctx context.Context, threadID string, state *core.ConversationState) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"thread_id": threadID},
		bson.M{
			"$set": bson.M{
				"state":      state,
				"updated_at": time.Now().UTC(),
			},
			"$inc": bson.M{"version": 1},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("checkpoint upsert failed: %w", err)
	}
	return nil
}

// Delete implements checkpoint.Store.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"thread_id": threadID}); err != nil {
		return fmt.Errorf("checkpoint delete failed: %w", err)
	}
	return nil
}

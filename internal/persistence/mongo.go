// Package persistence implements the durable half of the PersistenceSink
// (an upserted MongoDB record per pasty) and the optional secondary Redis
// queue consumers can tail for newly-archived paths.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pastewatch/pastewatch/internal/types"
)

// MongoSink upserts one DurableRecord per pasty, keyed on (site, id) so a
// re-discovered pasty updates its existing row instead of duplicating it.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoSink connects to uri and ensures the (site, id) unique index
// exists on database.collection.
func NewMongoSink(uri, database, collection string, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	idxCtx, idxCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer idxCancel()
	_, err = coll.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "site", Value: 1}, {Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("mongodb ensure index: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: coll,
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

// Upsert writes or updates the durable record for a pasty.
func (s *MongoSink) Upsert(ctx context.Context, rec types.DurableRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.D{{Key: "site", Value: rec.Site}, {Key: "id", Value: rec.ID}}
	update := bson.D{{Key: "$set", Value: rec}}

	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: err}
	}

	s.logger.Debug("durable record upserted", "site", rec.Site, "id", rec.ID)
	return nil
}

// Close disconnects the client.
func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

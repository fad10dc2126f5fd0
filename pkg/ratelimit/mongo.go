package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxConflictRetries bounds optimistic concurrency retries
const maxConflictRetries = 5

// ErrConflict is returned when concurrent writers keep winning the version race
var ErrConflict = errors.New("rate limit record update conflict")

type mongoRecord struct {
	ID            string      `bson:"_id"`
	UserID        string      `bson:"user_id"`
	Action        string      `bson:"action"`
	Timestamps    []time.Time `bson:"timestamps"`
	DailyCount    int         `bson:"daily_count"`
	LastResetDate string      `bson:"last_reset_date"`
	ExpiresAt     time.Time   `bson:"expires_at"`
	Version       int64       `bson:"version"`
}

// MongoStore keeps records in a MongoDB collection, guarding writes with a version field
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig configures the MongoDB backend
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// NewMongoStore connects to MongoDB and ensures a TTL index on expires_at
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = "rate_limits"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = collection.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		slog.Warn("Failed to create rate limit TTL index", "error", err)
	}

	return &MongoStore{client: client, collection: collection}, nil
}

func documentID(key Key) string {
	return key.UserID + ":" + string(key.Action)
}

// Update implements Store with optimistic concurrency: the write only lands when the
// stored version still matches the one that was read.
func (s *MongoStore) Update(ctx context.Context, key Key, fn func(*Info) error) error {
	id := documentID(key)

	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		var record mongoRecord
		err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
		exists := true
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			exists = false
		case err != nil:
			return fmt.Errorf("failed to load rate limit record: %w", err)
		}

		info := Info{
			Timestamps:    record.Timestamps,
			DailyCount:    record.DailyCount,
			LastResetDate: record.LastResetDate,
			ExpiresAt:     record.ExpiresAt,
			Version:       record.Version,
		}
		if err := fn(&info); err != nil {
			return err
		}

		next := mongoRecord{
			ID:            id,
			UserID:        key.UserID,
			Action:        string(key.Action),
			Timestamps:    info.Timestamps,
			DailyCount:    info.DailyCount,
			LastResetDate: info.LastResetDate,
			ExpiresAt:     info.ExpiresAt,
			Version:       record.Version + 1,
		}

		if !exists {
			_, err := s.collection.InsertOne(ctx, next)
			if err == nil {
				return nil
			}
			if !mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("failed to insert rate limit record: %w", err)
			}
		} else {
			result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": id, "version": record.Version}, next)
			if err != nil {
				return fmt.Errorf("failed to replace rate limit record: %w", err)
			}
			if result.MatchedCount == 1 {
				return nil
			}
		}

		slog.Debug("Rate limit record changed concurrently, retrying", "key", id, "attempt", attempt)
	}

	return fmt.Errorf("%w: %s", ErrConflict, id)
}

// Close implements Store
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

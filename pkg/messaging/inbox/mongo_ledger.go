package inbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simdev/taskhub/pkg/persistence/mongo"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collectionName = "processed_events"

// MongoIndexes adds a processed_at index for operators inspecting the ledger;
// uniqueness comes from the _id.
var MongoIndexes = mongo.IndexSet{
	Collection: collectionName,
	Models: []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "processed_at", Value: 1}},
			Options: options.Index().SetName("processed_events_processed_at"),
		},
	},
}

type processedEvent struct {
	Key         string    `bson:"_id"`
	ProcessedAt time.Time `bson:"processed_at"`
}

type mongoLedger struct {
	coll *mongodriver.Collection
	now  func() time.Time
}

func NewMongoLedger(m mongo.Mongo) Ledger {
	return &mongoLedger{coll: m.Collection(collectionName), now: time.Now}
}

func (l *mongoLedger) IsProcessed(ctx context.Context, key string) (bool, error) {
	err := l.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Err()
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check processed event %s: %w", key, err)
	}
	return true, nil
}

func (l *mongoLedger) MarkProcessed(ctx context.Context, key string) error {
	_, err := l.coll.InsertOne(ctx, processedEvent{Key: key, ProcessedAt: l.now().UTC()})
	if err != nil {
		if mongo.IsDuplicateKey(err) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to record processed event %s: %w", key, err)
	}
	return nil
}

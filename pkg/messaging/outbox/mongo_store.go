package outbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/simdev/taskhub/pkg/persistence/mongo"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collectionName = "outbox_events"
	sequenceName   = "outbox_events"
)

// MongoIndexes are the indexes the claim, sweep and ordering queries rely on.
var MongoIndexes = mongo.IndexSet{
	Collection: collectionName,
	Models: []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("outbox_status_created"),
		},
		{
			Keys:    bson.D{{Key: "ordering_key", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("outbox_ordering_key"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "processed_at", Value: 1}},
			Options: options.Index().SetName("outbox_status_processed"),
		},
	},
}

type mongoEvent struct {
	ID           int64             `bson:"_id"`
	EventType    string            `bson:"event_type"`
	Topic        string            `bson:"topic"`
	Payload      []byte            `bson:"payload"`
	PartitionKey *string           `bson:"partition_key,omitempty"`
	OrderingKey  string            `bson:"ordering_key"`
	Headers      map[string]string `bson:"headers"`
	Status       Status            `bson:"status"`
	CreatedAt    time.Time         `bson:"created_at"`
	ProcessedAt  *time.Time        `bson:"processed_at,omitempty"`
	RetryCount   int               `bson:"retry_count"`
	ErrorMessage *string           `bson:"error_message,omitempty"`
}

func (d *mongoEvent) toEvent() *Event {
	return &Event{
		ID:           d.ID,
		EventType:    d.EventType,
		Topic:        d.Topic,
		Payload:      d.Payload,
		PartitionKey: d.PartitionKey,
		Headers:      d.Headers,
		Status:       d.Status,
		CreatedAt:    d.CreatedAt,
		ProcessedAt:  d.ProcessedAt,
		RetryCount:   d.RetryCount,
		ErrorMessage: d.ErrorMessage,
	}
}

type mongoStore struct {
	m    mongo.Mongo
	coll *mongodriver.Collection
	now  func() time.Time
}

// NewMongoStore returns a Store over the outbox_events collection. Ids come
// from a counter document updated inside the caller's transaction.
func NewMongoStore(m mongo.Mongo) Store {
	return &mongoStore{m: m, coll: m.Collection(collectionName), now: time.Now}
}

func (s *mongoStore) Insert(ctx context.Context, e *Event) error {
	id, err := mongo.NextSequence(ctx, s.m, sequenceName)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	doc := mongoEvent{
		ID:           id,
		EventType:    e.EventType,
		Topic:        e.Topic,
		Payload:      e.Payload,
		PartitionKey: e.PartitionKey,
		Headers:      e.Headers,
		Status:       StatusPending,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}
	if doc.Headers == nil {
		doc.Headers = map[string]string{}
	}
	doc.OrderingKey = strconv.FormatInt(id, 10)
	if e.PartitionKey != nil && *e.PartitionKey != "" {
		doc.OrderingKey = *e.PartitionKey
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	e.ID = doc.ID
	e.CreatedAt = doc.CreatedAt
	e.Status = StatusPending
	e.RetryCount = 0
	return nil
}

// ClaimPending finds the oldest unfinished row per ordering key, keeps the
// PENDING ones, and claims each with a conditional update.
func (s *mongoStore) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*Event, error) {
	pipeline := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{StatusPending, StatusProcessing}}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$ordering_key"},
			{Key: "head", Value: bson.D{{Key: "$first", Value: bson.D{
				{Key: "id", Value: "$_id"},
				{Key: "status", Value: "$status"},
				{Key: "created_at", Value: "$created_at"},
			}}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "head.status", Value: StatusPending}}}},
		{{Key: "$sort", Value: bson.D{{Key: "head.created_at", Value: 1}, {Key: "head.id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: "$head.id"}}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	var heads []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &heads); err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}

	claimedAt := now.UTC().Truncate(time.Millisecond)
	events := make([]*Event, 0, len(heads))
	for _, h := range heads {
		var doc mongoEvent
		err := s.coll.FindOneAndUpdate(ctx,
			bson.D{{Key: "_id", Value: h.ID}, {Key: "status", Value: StatusPending}},
			bson.D{{Key: "$set", Value: bson.D{
				{Key: "status", Value: StatusProcessing},
				{Key: "processed_at", Value: claimedAt},
			}}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			// claimed by another instance
			continue
		}
		if err != nil {
			return events, fmt.Errorf("failed to claim outbox event %d: %w", h.ID, err)
		}
		events = append(events, doc.toEvent())
	}
	return events, nil
}

func (s *mongoStore) MarkPublished(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.coll.UpdateMany(ctx,
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}, {Key: "status", Value: StatusProcessing}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "status", Value: StatusPublished}, {Key: "processed_at", Value: at.UTC()}}},
			{Key: "$unset", Value: bson.D{{Key: "error_message", Value: ""}}},
		})
	if err != nil {
		return 0, fmt.Errorf("failed to mark outbox events published: %w", err)
	}
	return res.ModifiedCount, nil
}

func failureUpdate(errMsg string, maxRetries int) mongodriver.Pipeline {
	next := bson.D{{Key: "$add", Value: bson.A{"$retry_count", 1}}}
	return mongodriver.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "retry_count", Value: next},
			{Key: "error_message", Value: bson.D{{Key: "$literal", Value: errMsg}}},
			{Key: "status", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gte", Value: bson.A{next, maxRetries}}},
				StatusFailed,
				StatusPending,
			}}}},
		}}},
	}
}

func (s *mongoStore) recordFailure(ctx context.Context, filter bson.D, errMsg string, maxRetries int) (*Outcome, error) {
	var doc mongoEvent
	err := s.coll.FindOneAndUpdate(ctx, filter, failureUpdate(errMsg, maxRetries),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{ID: doc.ID, Status: doc.Status, RetryCount: doc.RetryCount}, nil
}

func (s *mongoStore) RecordFailure(ctx context.Context, id int64, errMsg string, maxRetries int) (*Outcome, error) {
	out, err := s.recordFailure(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "status", Value: StatusProcessing}}, errMsg, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to record outbox failure for id %d: %w", id, err)
	}
	return out, nil
}

func (s *mongoStore) ReleaseStale(ctx context.Context, olderThan time.Time, errMsg string, maxRetries int) ([]Outcome, error) {
	stale := bson.D{
		{Key: "status", Value: StatusProcessing},
		{Key: "processed_at", Value: bson.D{{Key: "$lt", Value: olderThan.UTC()}}},
	}
	cursor, err := s.coll.Find(ctx, stale, options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to release stale outbox events: %w", err)
	}
	var ids []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &ids); err != nil {
		return nil, fmt.Errorf("failed to release stale outbox events: %w", err)
	}

	var outcomes []Outcome
	for _, row := range ids {
		filter := append(bson.D{{Key: "_id", Value: row.ID}}, stale...)
		out, err := s.recordFailure(ctx, filter, errMsg, maxRetries)
		if err != nil {
			return outcomes, fmt.Errorf("failed to release stale outbox event %d: %w", row.ID, err)
		}
		if out != nil {
			outcomes = append(outcomes, *out)
		}
	}
	return outcomes, nil
}

func (s *mongoStore) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{
		{Key: "status", Value: StatusPublished},
		{Key: "processed_at", Value: bson.D{{Key: "$lt", Value: cutoff.UTC()}}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete published outbox events: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *mongoStore) List(ctx context.Context, filter ListFilter) ([]*Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := bson.D{}
	if filter.Status != "" {
		query = bson.D{{Key: "status", Value: filter.Status}}
	}
	cursor, err := s.coll.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	var docs []mongoEvent
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	events := make([]*Event, len(docs))
	for i := range docs {
		events[i] = docs[i].toEvent()
	}
	return events, nil
}

func (s *mongoStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	cursor, err := s.coll.Aggregate(ctx, mongodriver.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox events: %w", err)
	}
	var rows []struct {
		Status Status `bson:"_id"`
		N      int64  `bson:"n"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to count outbox events: %w", err)
	}
	counts := make(map[Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

func (s *mongoStore) Requeue(ctx context.Context, id int64) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "status", Value: StatusFailed}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "status", Value: StatusPending}, {Key: "retry_count", Value: 0}}},
			{Key: "$unset", Value: bson.D{{Key: "error_message", Value: ""}, {Key: "processed_at", Value: ""}}},
		})
	if err != nil {
		return fmt.Errorf("failed to requeue outbox event %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("requeue %d: %w", id, ErrNotRequeueable)
	}
	return nil
}

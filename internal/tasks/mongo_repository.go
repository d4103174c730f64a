package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simdev/taskhub/pkg/persistence"
	"github.com/simdev/taskhub/pkg/persistence/mongo"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collectionName = "tasks"
	sequenceName   = "tasks"
)

var MongoIndexes = mongo.IndexSet{
	Collection: collectionName,
	Models: []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("tasks_user_id"),
		},
	},
}

type mongoRepository struct {
	m    mongo.Mongo
	coll *mongodriver.Collection
	now  func() time.Time
}

// NewMongoRepository stores tasks in the tasks collection with numeric ids
// taken from the "tasks" counter.
func NewMongoRepository(m mongo.Mongo) Repository {
	return &mongoRepository{m: m, coll: m.Collection(collectionName), now: time.Now}
}

func (r *mongoRepository) Insert(ctx context.Context, t *Task) error {
	id, err := mongo.NextSequence(ctx, r.m, sequenceName)
	if err != nil {
		return err
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (r *mongoRepository) Update(ctx context.Context, t *Task) error {
	t.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	res, err := r.coll.UpdateByID(ctx, t.ID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: t.Title},
		{Key: "description", Value: t.Description},
		{Key: "status", Value: t.Status},
		{Key: "updated_at", Value: t.UpdatedAt},
	}}})
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, err)
	}
	if res.MatchedCount == 0 {
		return persistence.ErrEntityNotFound
	}
	return nil
}

func (r *mongoRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return persistence.ErrEntityNotFound
	}
	return nil
}

func (r *mongoRepository) FindByID(ctx context.Context, id int64) (*Task, error) {
	var t Task
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&t)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, persistence.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task %d: %w", id, err)
	}
	return &t, nil
}

func (r *mongoRepository) FindAll(ctx context.Context) ([]*Task, error) {
	return r.find(ctx, bson.D{})
}

func (r *mongoRepository) FindByUserID(ctx context.Context, userID int64) ([]*Task, error) {
	return r.find(ctx, bson.D{{Key: "user_id", Value: userID}})
}

func (r *mongoRepository) find(ctx context.Context, filter bson.D) ([]*Task, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	tasks := []*Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

package mongo

import (
	"context"
	"fmt"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
)

// IndexSet declares the indexes a component needs on one collection.
type IndexSet struct {
	Collection string
	Models     []mongodriver.IndexModel
}

// EnsureIndexes creates the declared indexes. Creating an existing index is a no-op.
func EnsureIndexes(ctx context.Context, m Mongo, sets ...IndexSet) error {
	for _, set := range sets {
		if len(set.Models) == 0 {
			continue
		}
		if _, err := m.Collection(set.Collection).Indexes().CreateMany(ctx, set.Models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", set.Collection, err)
		}
	}
	return nil
}

package container

import (
	"context"
	"testing"
	"time"

	"github.com/simdev/taskhub/pkg/persistence/mongo"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const mongoImage = "mongo:7"

// Mongo starts a single-node replica set, since transactions need one, and
// returns a handle on database with indexes ensured.
func Mongo(t testing.TB, database string, indexes ...mongo.IndexSet) mongo.Mongo {
	t.Helper()
	ctx := context.Background()

	c, err := mongodb.Run(ctx, mongoImage, mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err, "start mongodb container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	uri, err := c.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongodriver.Connect(mongooptions.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(pingCtx, nil))

	m := mongo.New(client, database, zap.NewNop())
	require.NoError(t, mongo.EnsureIndexes(ctx, m, indexes...))
	return m
}

package db

import (
	"context"
	"sync"
	"time"

	"github.com/nxtgm/feedserver/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	accountsCollection = "accounts"
	feedCollection     = "feed"

	defaultPingTimeout = 5 * time.Second
)

// Mongo lazily holds one shared client for the process lifetime.
// The first call to Collections establishes the connection; later calls
// reuse it. A failed connect is retried on the next call instead of
// poisoning the handle, so connectivity loss surfaces as a request-level
// error rather than a crash.
type Mongo struct {
	uri    string
	dbName string

	mu     sync.Mutex
	client *mongo.Client
}

func New(cfg config.MongoConfig) *Mongo {
	return &Mongo{
		uri:    cfg.URI,
		dbName: cfg.Database,
	}
}

// Collections returns handles to the accounts and feed collections,
// connecting on first use.
func (m *Mongo) Collections(ctx context.Context) (accounts, feed *mongo.Collection, err error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	database := client.Database(m.dbName)
	return database.Collection(accountsCollection), database.Collection(feedCollection), nil
}

func (m *Mongo) connect(ctx context.Context) (*mongo.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	m.client = client
	return m.client, nil
}

// EnsureIndexes creates the unique index on accounts.username. The index is
// the source of truth for username uniqueness; duplicate inserts fail with a
// duplicate key error regardless of application-level pre-checks.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	accounts, _, err := m.Collections(ctx)
	if err != nil {
		return err
	}
	_, err = accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Close disconnects the shared client if one was established.
func (m *Mongo) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}

package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const duplicateKeyCode = 11000

// MongoTransport writes batches with unordered InsertMany. Documents carry
// their uid as _id, so a re-sent batch only produces duplicate key errors.
type MongoTransport struct {
	uri      string
	database string
	timeout  time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	client *mongo.Client
}

// NewMongoTransport does not dial; the first InsertMany connects.
func NewMongoTransport(uri, database string, timeout time.Duration, log *logger.Logger) *MongoTransport {
	return &MongoTransport{uri: uri, database: database, timeout: timeout, log: log}
}

func (m *MongoTransport) connect(ctx context.Context) (*mongo.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	opts := options.Client().
		ApplyURI(m.uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetServerSelectionTimeout(m.timeout).
		SetConnectTimeout(m.timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	m.client = client
	m.log.Infow("mongo_client_created", "database", m.database)
	return client, nil
}

func (m *MongoTransport) InsertMany(ctx context.Context, collection string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	client, err := m.connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransport, err)
	}

	_, err = client.Database(m.database).
		Collection(collection).
		InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return classifyMongoError(collection, err)
}

func (m *MongoTransport) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}

// classifyMongoError maps driver errors onto the sync sentinels. A bulk
// failure made only of duplicate keys means the batch is already stored.
func classifyMongoError(collection string, err error) error {
	if err == nil {
		return nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		if bwe.WriteConcernError == nil && onlyDuplicates(bwe.WriteErrors) {
			return nil
		}
		return fmt.Errorf("insert into %s: %w: %v", collection, models.ErrRemoteRejected, err)
	}

	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) || errors.Is(err, context.DeadlineExceeded) {
		return models.WrapTransport("insert into "+collection, err)
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return fmt.Errorf("insert into %s: %w: %v", collection, models.ErrRemoteRejected, err)
	}

	// server selection failures and the like: the store is unreachable
	return fmt.Errorf("insert into %s: %w: %v", collection, models.ErrTransport, err)
}

func onlyDuplicates(errs []mongo.BulkWriteError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if e.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

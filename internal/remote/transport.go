package remote

import "context"

// Transport delivers a batch of documents to one remote collection.
// A nil error means every document is stored remotely, including the case
// where some were already present from an earlier attempt.
type Transport interface {
	InsertMany(ctx context.Context, collection string, docs []any) error
	Close(ctx context.Context) error
}

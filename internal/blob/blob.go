// Package blob stores generated chapter documents by key.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

// ErrNotFound is returned by Get when no blob exists at the key.
var ErrNotFound = errors.New("blob not found")

// Store is a key-addressed document store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Compile-time check that BadgerStore implements Store.
var _ Store = (*BadgerStore)(nil)

type record struct {
	Key         string
	ContentType string
	Data        []byte
	UpdatedAt   time.Time
}

// BadgerStore keeps blobs in an embedded Badger database.
type BadgerStore struct {
	store *badgerhold.Store
}

// OpenBadger opens (or creates) a Badger blob store in dir. An empty dir opens
// an in-memory store.
func OpenBadger(dir string) (*BadgerStore, error) {
	options := badgerhold.DefaultOptions
	if dir == "" {
		options.Options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating blob directory: %w", err)
		}
		options.Options = badger.DefaultOptions(dir)
	}
	options.Options = options.Options.WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("opening blob store: %w", err)
	}
	return &BadgerStore{store: store}, nil
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.store.Close()
}

// Put writes data at key, replacing any existing blob.
func (b *BadgerStore) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return errors.New("blob key is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := record{
		Key:         key,
		ContentType: "text/markdown",
		Data:        data,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := b.store.Upsert(key, &rec); err != nil {
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	return nil
}

// Get returns the blob at key or ErrNotFound.
func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec record
	if err := b.store.Get(key, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return rec.Data, nil
}

// Exists reports whether a blob is stored at key.
func (b *BadgerStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

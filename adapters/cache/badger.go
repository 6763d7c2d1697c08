package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"edgeproof/domain/core"
	apperrors "edgeproof/internal/errors"
	"edgeproof/ports"
)

const badgerPrefix = "rc/"

// Badger is an embedded on-disk cache. Entries expire through badger's own TTL.
type Badger struct {
	db *badger.DB
}

var _ ports.ResultCache = (*Badger)(nil)

// OpenBadger opens a persistent cache at path, or an in-memory one when path is empty
func OpenBadger(path string) (*Badger, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperrors.CacheError("badger", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(ctx context.Context, key core.Hash) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerPrefix + key.String()))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.CacheError("badger", err)
	}
	return out, true, nil
}

// Set writes value; ttl <= 0 stores without expiry
func (b *Badger) Set(ctx context.Context, key core.Hash, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(badgerPrefix+key.String()), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return apperrors.CacheError("badger", err)
	}
	return nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

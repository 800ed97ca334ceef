package docdb

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// boltDirPerm is the permission mode for the database directory.
	boltDirPerm = fs.FileMode(0o700)

	// boltFilePerm is the permission mode for the database file.
	boltFilePerm = fs.FileMode(0o600)

	// boltOpenTimeout is the maximum time to wait for the bolt file lock.
	boltOpenTimeout = 5 * time.Second
)

// boltBackend stores each collection in its own bucket, keyed by
// document id, with JSON encoded values.
type boltBackend struct {
	db *bolt.DB
}

func openBolt(path string) (*boltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), boltDirPerm); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := bolt.Open(path, boltFilePerm, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	return &boltBackend{db: db}, nil
}

func (b *boltBackend) Get(_ context.Context, collection, id string) ([]byte, error) {
	var doc []byte

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}

		v := bucket.Get([]byte(id))
		if v == nil {
			return nil
		}

		// Values are only valid for the life of the transaction.
		doc = append([]byte(nil), v...)

		return nil
	})

	return doc, err
}

func (b *boltBackend) Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			return fn(string(k), append([]byte(nil), v...))
		})
	})
}

func (b *boltBackend) Commit(_ context.Context, batch []Mutation) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, m := range batch {
			if m.Delete {
				bucket := tx.Bucket([]byte(m.Collection))
				if bucket == nil {
					continue
				}

				if err := bucket.Delete([]byte(m.ID)); err != nil {
					return fmt.Errorf("deleting %s: %w", m.ID, err)
				}

				continue
			}

			bucket, err := tx.CreateBucketIfNotExists([]byte(m.Collection))
			if err != nil {
				return fmt.Errorf("creating bucket %s: %w", m.Collection, err)
			}

			if err := bucket.Put([]byte(m.ID), m.Doc); err != nil {
				return fmt.Errorf("writing %s: %w", m.ID, err)
			}
		}

		return nil
	})
}

func (b *boltBackend) Close() error {
	return b.db.Close()
}

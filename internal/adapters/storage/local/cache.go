package local

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/PabloGalante/lawless-ai/internal/domain"
)

const (
	bucketName = "lawless"
	// SlotKey is the single key holding the whole conversation list.
	SlotKey = "lawless-conversations"
)

// Cache is the bolt backed domain.LocalCache. The whole conversation list
// lives under one key and is always read and written as a unit.
type Cache struct {
	db *bolt.DB
}

// Open opens (or creates) the cache file at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating cache directory")
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening cache %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating cache bucket")
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) ReadAll() ([]*domain.Conversation, error) {
	convs := []*domain.Conversation{}
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(SlotKey))
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, &convs)
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading local conversations")
	}
	return convs, nil
}

func (c *Cache) WriteAll(convs []*domain.Conversation) error {
	raw, err := encode(convs)
	if err != nil {
		return err
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		return b.Put([]byte(SlotKey), raw)
	})
	if err != nil {
		return errors.Wrap(err, "writing local conversations")
	}
	return nil
}

// Update runs the read, fn and write inside a single bolt write transaction.
// Bolt allows one writer at a time, which serializes concurrent updates.
func (c *Cache) Update(fn func([]*domain.Conversation) []*domain.Conversation) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}

		convs := []*domain.Conversation{}
		if raw := b.Get([]byte(SlotKey)); len(raw) > 0 {
			if err := json.Unmarshal(raw, &convs); err != nil {
				return errors.Wrap(err, "decoding local conversations")
			}
		}

		raw, err := encode(fn(convs))
		if err != nil {
			return err
		}
		return b.Put([]byte(SlotKey), raw)
	})
	if err != nil {
		return errors.Wrap(err, "updating local conversations")
	}
	return nil
}

func encode(convs []*domain.Conversation) ([]byte, error) {
	if convs == nil {
		convs = []*domain.Conversation{}
	}
	raw, err := json.Marshal(convs)
	if err != nil {
		return nil, errors.Wrap(err, "encoding local conversations")
	}
	return raw, nil
}

var _ domain.LocalCache = (*Cache)(nil)

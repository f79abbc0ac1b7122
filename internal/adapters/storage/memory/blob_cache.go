package memory

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/PabloGalante/lawless-ai/internal/domain"
)

// BlobCache keeps the serialized conversation list in a single byte slot,
// the same contract as the bolt backed cache.
type BlobCache struct {
	mu   sync.RWMutex
	blob []byte
	fail error
}

func NewBlobCache() *BlobCache {
	return &BlobCache{}
}

// SetFailure makes every following call return err. nil restores the cache.
func (c *BlobCache) SetFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

// Raw returns a copy of the stored blob.
func (c *BlobCache) Raw() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]byte(nil), c.blob...)
}

func (c *BlobCache) ReadAll() ([]*domain.Conversation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.fail != nil {
		return nil, c.fail
	}

	convs := []*domain.Conversation{}
	if len(c.blob) == 0 {
		return convs, nil
	}
	if err := json.Unmarshal(c.blob, &convs); err != nil {
		return nil, errors.Wrap(err, "decode conversation blob")
	}
	return convs, nil
}

func (c *BlobCache) WriteAll(convs []*domain.Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail != nil {
		return c.fail
	}
	return c.storeLocked(convs)
}

// Update applies fn to the decoded list while holding the write lock.
func (c *BlobCache) Update(fn func([]*domain.Conversation) []*domain.Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail != nil {
		return c.fail
	}

	convs := []*domain.Conversation{}
	if len(c.blob) > 0 {
		if err := json.Unmarshal(c.blob, &convs); err != nil {
			return errors.Wrap(err, "decode conversation blob")
		}
	}
	return c.storeLocked(fn(convs))
}

func (c *BlobCache) storeLocked(convs []*domain.Conversation) error {
	if convs == nil {
		convs = []*domain.Conversation{}
	}
	blob, err := json.Marshal(convs)
	if err != nil {
		return errors.Wrap(err, "encode conversation blob")
	}
	c.blob = blob
	return nil
}

var _ domain.LocalCache = (*BlobCache)(nil)

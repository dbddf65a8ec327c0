package backend

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var snapshotsBucket = []byte("snapshots")

// cacheEntry holds the last good response body for one backend path plus
// the validators needed for a conditional GET.
type cacheEntry struct {
	Path         string          `json:"path"`
	ETag         string          `json:"etag,omitempty"`
	LastModified string          `json:"last_modified,omitempty"`
	Body         json.RawMessage `json:"body"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Cache persists backend list responses in a bbolt file so the kiosk keeps
// working while the backend is unreachable.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (creating if needed) the bbolt file at path.
func OpenCache(path string) (*Cache, error) {
	if path == "" {
		return nil, errors.New("cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) load(path string) (cacheEntry, bool) {
	var entry cacheEntry
	if c == nil {
		return entry, false
	}
	found := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(snapshotsBucket).Get([]byte(path))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		found = len(entry.Body) > 0
		return nil
	})
	return entry, found
}

func (c *Cache) save(entry cacheEntry) error {
	if c == nil {
		return nil
	}
	entry.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(&entry)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put([]byte(entry.Path), data)
	})
}

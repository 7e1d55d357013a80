package ownership

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// cacheVersion prefixes every key; bump it when Result changes shape.
const cacheVersion = "v1"

// keySeparator separates the version from the path in cache keys.
const keySeparator = '\x00'

var errCacheMiss = errors.New("ownership cache miss")

type cachedResult struct {
	Result    Result
	CheckedAt int64
}

func (c *cachedResult) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *cachedResult) decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(c)
}

func cacheKey(path string) []byte {
	return []byte(cacheVersion + string(keySeparator) + path)
}

// Cache memoizes a Lookup in Badger. Entries expire after the TTL; failed
// lookups are never cached.
type Cache struct {
	db    *badger.DB
	inner Lookup
	ttl   time.Duration
}

// OpenCache opens or creates a cache at dir wrapping inner. An empty dir
// keeps the cache in memory.
func OpenCache(dir string, ttl time.Duration, inner Lookup) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening ownership cache: %w", err)
	}
	return &Cache{db: db, inner: inner, ttl: ttl}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Owner returns a cached result or delegates to the wrapped lookup.
func (c *Cache) Owner(ctx context.Context, path string) (Result, error) {
	if res, err := c.get(path); err == nil {
		return res, nil
	} else if !errors.Is(err, errCacheMiss) {
		logger.Warn("ownership cache read failed", "path", path, "error", err)
	}

	res, err := c.inner.Owner(ctx, path)
	if err != nil {
		return Result{}, err
	}
	if err := c.put(path, res); err != nil {
		logger.Warn("ownership cache write failed", "path", path, "error", err)
	}
	return res, nil
}

func (c *Cache) get(path string) (Result, error) {
	var entry cachedResult
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return err
		}
		return item.Value(entry.decode)
	})
	if err != nil {
		return Result{}, err
	}
	return entry.Result, nil
}

func (c *Cache) put(path string, res Result) error {
	value, err := (&cachedResult{Result: res, CheckedAt: time.Now().Unix()}).encode()
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(cacheKey(path), value)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Invalidate drops the cached result for a path, e.g. after it was deleted.
func (c *Cache) Invalidate(path string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(cacheKey(path))
	})
}

// Clear drops every cached result.
func (c *Cache) Clear() error {
	return c.db.DropPrefix([]byte(cacheVersion + string(keySeparator)))
}

// Len counts live cached results.
func (c *Cache) Len() (int, error) {
	n := 0
	prefix := []byte(cacheVersion + string(keySeparator))
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

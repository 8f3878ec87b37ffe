package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/seal-hub/CraftDroid/pkg/logger"
)

// Entry is a cached oracle answer.
type Entry struct {
	Score float64 `json:"score"`
	OK    bool    `json:"ok"`
}

// Store keeps oracle answers by key.
type Store interface {
	Get(key string) (Entry, bool, error)
	Put(key string, e Entry) error
}

// MemoryStore is a Store for one process.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]Entry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]Entry)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[key]
	return e, ok, nil
}

// Put implements Store.
func (s *MemoryStore) Put(key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = e
	return nil
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// BadgerCache is a Store persisted in a Badger database, so answers
// survive across migrations.
type BadgerCache struct {
	db *badger.DB
}

// OpenBadgerCache opens or creates the cache in dir. An empty dir keeps
// the database in memory.
func OpenBadgerCache(dir string) (*BadgerCache, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open similarity cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// Get implements Store.
func (c *BadgerCache) Get(key string) (Entry, bool, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Put implements Store.
func (c *BadgerCache) Put(key string, e Entry) error {
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
}

// Close closes the database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// Cached answers from a Store before asking the wrapped oracle. Errors
// are never cached.
type Cached struct {
	inner  Oracle
	store  Store
	hits   atomic.Int64
	misses atomic.Int64
	log    *zap.SugaredLogger
}

// NewCached wraps inner with store.
func NewCached(inner Oracle, store Store) *Cached {
	return &Cached{inner: inner, store: store, log: logger.Named("similarity")}
}

// Similarity implements Oracle.
func (c *Cached) Similarity(ctx context.Context, newWords, oldWords []string) (float64, bool, error) {
	key := cacheKey(newWords, oldWords)
	if e, ok, err := c.store.Get(key); err != nil {
		c.log.Warnw("Similarity cache read failed", "error", err)
	} else if ok {
		c.hits.Add(1)
		return e.Score, e.OK, nil
	}
	c.misses.Add(1)

	score, ok, err := c.inner.Similarity(ctx, newWords, oldWords)
	if err != nil {
		return 0, false, err
	}
	if err := c.store.Put(key, Entry{Score: score, OK: ok}); err != nil {
		c.log.Warnw("Similarity cache write failed", "error", err)
	}
	return score, ok, nil
}

// Stats returns cache hits and misses.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func cacheKey(newWords, oldWords []string) string {
	return "w2v\x00" + strings.Join(newWords, "\x1f") + "\x1e" + strings.Join(oldWords, "\x1f")
}

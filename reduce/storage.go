package reduce

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/go-analyze/bulk"
)

const debugStorage = false

// Storage persists encoded analysis results by key.
type Storage interface {
	SaveState(key string, blob []byte) error
	// LoadState reports false without an error when key is absent.
	LoadState(key string) ([]byte, bool, error)
	DeleteState(key string) error
	// ListKeysPrefix returns the stored keys beginning with prefix, in no particular order.
	ListKeysPrefix(prefix string) ([]string, error)
	Close()
}

// DeleteKeysPrefix removes every key of s beginning with prefix, returning the number removed.
func DeleteKeysPrefix(s Storage, prefix string) (int, error) {
	keys, err := s.ListKeysPrefix(prefix)
	if err != nil {
		return 0, fmt.Errorf("list keys failed: %w", err)
	}
	for i, key := range keys {
		if err := s.DeleteState(key); err != nil {
			return i, fmt.Errorf("delete key %q failed: %w", key, err)
		}
	}
	return len(keys), nil
}

// NamespaceStorage scopes s to the keys under "namespace;". Keys passed in and listed out are
// relative to the namespace. An empty namespace returns s unchanged.
func NamespaceStorage(s Storage, namespace string) Storage {
	if namespace == "" {
		return s
	}
	return namespacedStorage{inner: s, ns: namespace + ";"}
}

type namespacedStorage struct {
	inner Storage
	ns    string
}

func (n namespacedStorage) SaveState(key string, blob []byte) error {
	return n.inner.SaveState(n.ns+key, blob)
}

func (n namespacedStorage) LoadState(key string) ([]byte, bool, error) {
	return n.inner.LoadState(n.ns + key)
}

func (n namespacedStorage) DeleteState(key string) error {
	return n.inner.DeleteState(n.ns + key)
}

func (n namespacedStorage) ListKeysPrefix(prefix string) ([]string, error) {
	keys, err := n.inner.ListKeysPrefix(n.ns + prefix)
	if err != nil {
		return nil, err
	}
	return bulk.SliceTransform(func(k string) string { return k[len(n.ns):] }, keys), nil
}

func (n namespacedStorage) Close() {
	n.inner.Close()
}

// memStorage holds blobs for the life of the process. Blobs are copied in and out so callers
// may reuse their buffers.
type memStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemStorage returns a process local Storage.
func NewMemStorage() Storage {
	return &memStorage{blobs: make(map[string][]byte)}
}

func (m *memStorage) SaveState(key string, blob []byte) error {
	m.mu.Lock()
	m.blobs[key] = slices.Clone(blob)
	m.mu.Unlock()
	return nil
}

func (m *memStorage) LoadState(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if blob, ok := m.blobs[key]; ok {
		return slices.Clone(blob), true, nil
	}
	return nil, false, nil
}

func (m *memStorage) DeleteState(key string) error {
	m.mu.Lock()
	delete(m.blobs, key)
	m.mu.Unlock()
	return nil
}

func (m *memStorage) ListKeysPrefix(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bulk.SliceFilter(func(k string) bool {
		return strings.HasPrefix(k, prefix)
	}, slices.Collect(maps.Keys(m.blobs))), nil
}

func (m *memStorage) Close() {}

type badgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens a Badger backed Storage at path. Unlike the other stores, the
// content survives Close so later reducer invocations can reuse it.
func NewBadgerStorage(path string, maxMemMB int) (Storage, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir failed: %w", err)
	}

	clamp := func(val, lo, high int64) int64 {
		return min(max(val, lo), high)
	}
	memTableSize := clamp(int64(maxMemMB/4), 8, 64) << 20
	opts := badger.DefaultOptions(path).
		WithCompression(options.None). // blobs are zstd compressed before storing
		WithNumMemtables(2).
		WithMemTableSize(memTableSize).
		WithBaseTableSize(memTableSize).
		WithIndexCacheSize(clamp(int64(maxMemMB/4), 16, 128) << 20)
	if !debugStorage {
		opts = opts.
			WithLoggingLevel(badger.ERROR).
			WithMetricsEnabled(false)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open storage db failed: %w", err)
	}
	return &badgerStorage{db: db}, nil
}

func (b *badgerStorage) SaveState(key string, blob []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), blob)
	})
}

func (b *badgerStorage) LoadState(key string) ([]byte, bool, error) {
	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

func (b *badgerStorage) DeleteState(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *badgerStorage) ListKeysPrefix(prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	return keys, err
}

func (b *badgerStorage) Close() {
	_ = b.db.Close()
}

package reduce

import (
	"fmt"
	"log"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// factSchema namespaces stored results, bump when Result encoding or FactKey changes.
	factSchema = "facts.v2"
	// factSchemaFamily is the namespace prefix shared by every factSchema revision.
	factSchemaFamily = "facts."
)

// FactCache keeps analysis results by content key, so repeated reducer invocations on an
// unchanged file skip parsing. Decoded results are held in memory in front of the Storage.
type FactCache struct {
	store Storage
	mem   *ristretto.Cache[string, *Result]
}

// NewFactCache builds a cache over store with an in-memory budget of memMB megabytes. Results
// stored under an earlier factSchema are removed from store.
func NewFactCache(store Storage, memMB int) (*FactCache, error) {
	if pruned, err := pruneStaleFacts(store); err != nil {
		return nil, fmt.Errorf("prune stale facts failed: %w", err)
	} else if pruned > 0 {
		log.Printf("Pruned %d stale cached results", pruned)
	}
	mem, err := ristretto.NewCache(&ristretto.Config[string, *Result]{
		NumCounters: 10_000,
		MaxCost:     int64(max(memMB, 1)) << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create fact cache failed: %w", err)
	}
	return &FactCache{
		store: NamespaceStorage(store, factSchema),
		mem:   mem,
	}, nil
}

// Load returns a copy of the cached result for key.
func (fc *FactCache) Load(key string) (*Result, bool, error) {
	if r, ok := fc.mem.Get(key); ok {
		cp := *r
		return &cp, true, nil
	}

	blob, ok, err := fc.store.LoadState(key)
	if err != nil || !ok {
		return nil, false, err
	}
	data, err := ZstdDecompress(nil, blob)
	if err != nil {
		return nil, false, fmt.Errorf("decompress fact blob failed: %w", err)
	}
	var r Result
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("decode fact blob failed: %w", err)
	}
	fc.mem.Set(key, &r, int64(len(data)))
	cp := r
	return &cp, true, nil
}

// Save stores the result under key.
func (fc *FactCache) Save(key string, r *Result) error {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode fact blob failed: %w", err)
	}
	if err := fc.store.SaveState(key, ZstdCompress(nil, data)); err != nil {
		return err
	}
	stored := *r
	fc.mem.Set(key, &stored, int64(len(data)))
	return nil
}

// Clear drops every cached result from memory and storage, returning the number of stored
// results removed.
func (fc *FactCache) Clear() (int, error) {
	fc.mem.Clear()
	return DeleteKeysPrefix(fc.store, "")
}

// Wait blocks until pending in-memory writes are visible to Load.
func (fc *FactCache) Wait() {
	fc.mem.Wait()
}

// Close releases the in-memory cache and the underlying storage.
func (fc *FactCache) Close() {
	fc.mem.Close()
	fc.store.Close()
}

func pruneStaleFacts(store Storage) (int, error) {
	keys, err := store.ListKeysPrefix(factSchemaFamily)
	if err != nil {
		return 0, err
	}
	current := factSchema + ";"
	var pruned int
	for _, key := range keys {
		if strings.HasPrefix(key, current) {
			continue
		} else if err := store.DeleteState(key); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

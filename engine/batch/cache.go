package batch

import (
	"sync"

	"github.com/embergfx/ember/engine/model"
)

// defaultCacheCapacity bounds the number of extracted meshes retained before
// the least recently used entry is evicted.
const defaultCacheCapacity = 24

// MeshDataCache memoizes extracted mesh geometry keyed by model batch ID, so
// repeated merge passes over the same source models decode each vertex buffer
// once. Entries are immutable after insertion; eviction is least recently used.
// All methods are safe for concurrent use.
type MeshDataCache interface {
	// Get returns the extracted geometry for a model, decoding and caching it
	// on first request.
	//
	// Parameters:
	//   - m: the source model
	//
	// Returns:
	//   - *MeshData: the cached geometry, or nil when the model carries no
	//     extractable vertex data
	Get(m model.Model) *MeshData

	// Lookup returns the cached geometry for a batch ID without extracting.
	//
	// Parameters:
	//   - id: the model batch ID
	//
	// Returns:
	//   - *MeshData: the cached geometry, or nil
	//   - bool: true when the entry was present
	Lookup(id uint64) (*MeshData, bool)

	// Invalidate drops the entry for a batch ID, if present.
	//
	// Parameters:
	//   - id: the model batch ID
	Invalidate(id uint64)

	// Len returns the number of cached entries.
	//
	// Returns:
	//   - int: the entry count
	Len() int

	// Clear drops every cached entry.
	Clear()
}

var _ MeshDataCache = &meshDataCache{}

type cacheEntry struct {
	data *MeshData

	// lastUse is the cache tick at which the entry was last returned. Guarded
	// by the cache mutex, including reads from Get's fast path.
	lastUse uint64
}

type meshDataCache struct {
	mu       *sync.RWMutex
	entries  map[uint64]*cacheEntry
	capacity int
	tick     uint64
}

// Get implements MeshDataCache. Extraction runs outside the lock so concurrent
// misses on different models do not serialize; a losing double-insert keeps
// the first entry.
func (c *meshDataCache) Get(m model.Model) *MeshData {
	if m == nil {
		return nil
	}
	id := m.BatchID()

	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		c.tick++
		e.lastUse = c.tick
		data := e.data
		c.mu.Unlock()
		return data
	}
	c.mu.Unlock()

	data := ExtractModelMeshData(m)
	if data == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		c.tick++
		e.lastUse = c.tick
		return e.data
	}
	if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.tick++
	c.entries[id] = &cacheEntry{data: data, lastUse: c.tick}
	return data
}

// Lookup implements MeshDataCache.
func (c *meshDataCache) Lookup(id uint64) (*MeshData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[id]; ok {
		return e.data, true
	}
	return nil, false
}

// Invalidate implements MeshDataCache.
func (c *meshDataCache) Invalidate(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Len implements MeshDataCache.
func (c *meshDataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear implements MeshDataCache.
func (c *meshDataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*cacheEntry)
}

// evictOldestLocked removes the entry with the smallest lastUse tick. Callers
// must hold the write lock.
func (c *meshDataCache) evictOldestLocked() {
	var (
		oldestID   uint64
		oldestTick uint64
		found      bool
	)
	for id, e := range c.entries {
		if !found || e.lastUse < oldestTick {
			oldestID = id
			oldestTick = e.lastUse
			found = true
		}
	}
	if found {
		delete(c.entries, oldestID)
	}
}

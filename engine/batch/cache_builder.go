package batch

import "sync"

// MeshDataCacheBuilderOption is a functional option for configuring a MeshDataCache via NewMeshDataCache.
type MeshDataCacheBuilderOption func(*meshDataCache)

// WithCacheCapacity is an option builder that sets the maximum number of
// extracted meshes the cache retains before evicting. Values below 1 are ignored.
//
// Parameters:
//   - capacity: the entry limit
//
// Returns:
//   - MeshDataCacheBuilderOption: a function that applies the capacity option to a cache
func WithCacheCapacity(capacity int) MeshDataCacheBuilderOption {
	return func(c *meshDataCache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// NewMeshDataCache creates a MeshDataCache with the given options applied.
// Without options the cache holds up to 24 entries.
//
// Parameters:
//   - options: optional functional options to configure the cache
//
// Returns:
//   - MeshDataCache: the configured cache
func NewMeshDataCache(options ...MeshDataCacheBuilderOption) MeshDataCache {
	c := &meshDataCache{
		mu:       &sync.RWMutex{},
		entries:  make(map[uint64]*cacheEntry),
		capacity: defaultCacheCapacity,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

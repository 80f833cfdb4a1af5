package batch

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// ModelBatcherBuilderOption is a functional option for configuring a ModelBatcher via NewModelBatcher.
type ModelBatcherBuilderOption func(*modelBatcher)

// WithBatcherCache is an option builder that sets the mesh data cache the
// batcher reads source geometry through. Use this to share one cache between
// several batchers or with instance pools.
//
// Parameters:
//   - cache: the cache to use
//
// Returns:
//   - ModelBatcherBuilderOption: a function that applies the cache option to a batcher
func WithBatcherCache(cache MeshDataCache) ModelBatcherBuilderOption {
	return func(b *modelBatcher) {
		if cache != nil {
			b.cache = cache
		}
	}
}

// WithBatcherWorkers is an option builder that sets the number of goroutines
// used for the parallel chunk transform phase. Values below 1 are ignored.
//
// Parameters:
//   - workers: the worker count
//
// Returns:
//   - ModelBatcherBuilderOption: a function that applies the worker count option to a batcher
func WithBatcherWorkers(workers int) ModelBatcherBuilderOption {
	return func(b *modelBatcher) {
		if workers > 0 {
			b.workers = workers
		}
	}
}

// NewModelBatcher creates a ModelBatcher with the given options applied.
// Without options the batcher owns a fresh default-capacity cache and sizes
// its transform pool to the machine's CPU count minus one.
//
// Parameters:
//   - options: optional functional options to configure the batcher
//
// Returns:
//   - ModelBatcher: the configured batcher
func NewModelBatcher(options ...ModelBatcherBuilderOption) ModelBatcher {
	b := &modelBatcher{
		workers: max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(b)
	}
	if b.cache == nil {
		b.cache = NewMeshDataCache()
	}
	// Initialize the pool after options so WithBatcherWorkers can override the
	// default. Queue size of 256 accommodates typical chunk counts with headroom.
	b.pool = worker.NewDynamicWorkerPool(b.workers, 256, 1*time.Second)
	return b
}

package batch

import (
	"fmt"
	"testing"
)

func TestCacheGetMemoizes(t *testing.T) {
	c := NewMeshDataCache()
	m := triangleModel("tri", [3]float32{}, true, false)

	first := c.Get(m)
	if first == nil {
		t.Fatal("expected extraction on first request")
	}
	second := c.Get(m)
	if first != second {
		t.Error("second request should return the cached instance")
	}
	if c.Len() != 1 {
		t.Errorf("cache length: got %d, want 1", c.Len())
	}
}

func TestCacheLookupAndInvalidate(t *testing.T) {
	c := NewMeshDataCache()
	m := triangleModel("tri", [3]float32{}, true, false)

	if _, ok := c.Lookup(m.BatchID()); ok {
		t.Error("lookup before Get should miss")
	}
	c.Get(m)
	if _, ok := c.Lookup(m.BatchID()); !ok {
		t.Error("lookup after Get should hit")
	}

	c.Invalidate(m.BatchID())
	if _, ok := c.Lookup(m.BatchID()); ok {
		t.Error("lookup after Invalidate should miss")
	}
}

func TestCacheGetNilForUnextractable(t *testing.T) {
	c := NewMeshDataCache()
	if c.Get(nil) != nil {
		t.Error("nil model should yield nil")
	}
	if c.Len() != 0 {
		t.Error("failed extraction must not occupy a cache slot")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMeshDataCache(WithCacheCapacity(2))
	a := triangleModel("a", [3]float32{}, true, false)
	b := triangleModel("b", [3]float32{}, true, false)
	d := triangleModel("d", [3]float32{}, true, false)

	c.Get(a)
	c.Get(b)
	c.Get(a) // touch a so b is now the oldest
	c.Get(d) // evicts b

	if c.Len() != 2 {
		t.Fatalf("cache length: got %d, want 2", c.Len())
	}
	if _, ok := c.Lookup(a.BatchID()); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := c.Lookup(b.BatchID()); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := c.Lookup(d.BatchID()); !ok {
		t.Error("newest entry missing")
	}
}

func TestCacheCapacityBound(t *testing.T) {
	c := NewMeshDataCache(WithCacheCapacity(4))
	for i := 0; i < 16; i++ {
		c.Get(triangleModel(fmt.Sprintf("m%d", i), [3]float32{}, true, false))
	}
	if c.Len() > 4 {
		t.Errorf("cache exceeded capacity: %d entries", c.Len())
	}
}

func TestCacheClear(t *testing.T) {
	c := NewMeshDataCache()
	c.Get(triangleModel("tri", [3]float32{}, true, false))
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("cache length after clear: got %d, want 0", c.Len())
	}
}

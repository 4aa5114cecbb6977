package cache

import (
	"sync"
	"testing"
)

func TestMemoryCache_PutAndGet(t *testing.T) {
	c := NewMemoryCache()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got size %d", c.Size())
	}

	c.Put("robots:example.org", `{"fetched_at":"2024-01-01T00:00:00Z"}`)

	value, found := c.Get("robots:example.org")
	if !found {
		t.Error("expected to find the stored host entry")
	}
	if value != `{"fetched_at":"2024-01-01T00:00:00Z"}` {
		t.Errorf("unexpected value %s", value)
	}
	if c.Size() != 1 {
		t.Errorf("expected size 1, got %d", c.Size())
	}
}

func TestMemoryCache_Get_NotFound(t *testing.T) {
	c := NewMemoryCache()

	value, found := c.Get("robots:unknown.example")
	if found {
		t.Error("expected miss for unknown host")
	}
	if value != "" {
		t.Errorf("expected empty string on miss, got %s", value)
	}
}

func TestMemoryCache_Put_Overwrite(t *testing.T) {
	c := NewMemoryCache()

	c.Put("robots:example.org", "stale")
	c.Put("robots:example.org", "fresh")

	value, found := c.Get("robots:example.org")
	if !found {
		t.Error("expected to find the overwritten entry")
	}
	if value != "fresh" {
		t.Errorf("expected fresh value after overwrite, got %s", value)
	}
	if c.Size() != 1 {
		t.Errorf("expected size 1 after overwrite, got %d", c.Size())
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache()

	c.Put("robots:a.example", "1")
	c.Put("robots:b.example", "2")
	c.Clear()

	if c.Size() != 0 {
		t.Errorf("expected size 0 after clear, got %d", c.Size())
	}
	if _, found := c.Get("robots:a.example"); found {
		t.Error("expected entry to be gone after clear")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put("robots:example.org", "rules")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get("robots:example.org")
			}
		}()
	}
	wg.Wait()

	value, found := c.Get("robots:example.org")
	if !found {
		t.Error("expected to find the entry after concurrent access")
	}
	if value != "rules" {
		t.Errorf("expected rules, got %s", value)
	}
}

func TestMemoryCache_EmptyKeyAndValue(t *testing.T) {
	c := NewMemoryCache()

	c.Put("", "empty-key")
	c.Put("robots:example.org", "")

	if value, found := c.Get(""); !found || value != "empty-key" {
		t.Errorf("expected empty key to round-trip, got %q found=%v", value, found)
	}
	if value, found := c.Get("robots:example.org"); !found || value != "" {
		t.Errorf("expected empty value to round-trip, got %q found=%v", value, found)
	}
}

package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c := New(cfg)
	t.Cleanup(c.Close)
	return c
}

func TestCache_SetAndGet(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Set("key", "value")

	val, ok := c.Get("key")
	if !ok {
		t.Fatal("Get() miss after Set()")
	}
	if val.(string) != "value" {
		t.Errorf("Get() = %v, want value", val)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() hit for missing key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.SetWithTTL("short", "value", 10*time.Millisecond)

	if _, ok := c.Get("short"); !ok {
		t.Fatal("entry expired immediately")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("entry still readable after TTL")
	}
}

func TestCache_Eviction(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 3, TTL: time.Minute})

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
	}

	if c.Size() > 3 {
		t.Errorf("Size() = %d, want at most 3", c.Size())
	}
}

func TestCache_GetOrSet(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	calls := 0
	compute := func() (interface{}, error) {
		calls++
		return "computed", nil
	}

	for i := 0; i < 3; i++ {
		val, err := c.GetOrSet("key", compute)
		if err != nil {
			t.Fatalf("GetOrSet() error = %v", err)
		}
		if val.(string) != "computed" {
			t.Errorf("GetOrSet() = %v", val)
		}
	}

	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Set("key", 1)
	c.Get("key")
	c.Get("key")
	c.Get("missing")

	hits, misses, hitRate := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses", hits, misses)
	}
	if hitRate < 66 || hitRate > 67 {
		t.Errorf("hit rate = %v", hitRate)
	}
}

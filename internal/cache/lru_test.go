package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTL[string](10, time.Minute)

	c.Set("a", "alpha")
	got, ok := c.Get("a")
	if !ok || got != "alpha" {
		t.Fatalf("Get(a) = (%q, %v), want (alpha, true)", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on a missing key reported a hit")
	}
}

func TestTTLCacheOverwrite(t *testing.T) {
	c := NewTTL[int](10, time.Minute)

	c.Set("k", 1)
	c.Set("k", 2)
	if got, _ := c.Get("k"); got != 2 {
		t.Errorf("Get(k) = %d, want 2", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTL[string](10, 10*time.Millisecond)

	c.Set("a", "alpha")
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry still readable")
	}
}

func TestTTLCacheLRUEviction(t *testing.T) {
	c := NewTTL[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // touch a so b is the least recently used
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newly added entry missing")
	}
}

func TestTTLCacheDeletePrefix(t *testing.T) {
	c := NewTTL[int](10, time.Minute)

	c.Set("u1:2025-01", 1)
	c.Set("u1:2025-02", 2)
	c.Set("u2:2025-01", 3)

	if n := c.DeletePrefix("u1:"); n != 2 {
		t.Fatalf("DeletePrefix removed %d entries, want 2", n)
	}
	if _, ok := c.Get("u1:2025-01"); ok {
		t.Error("prefixed entry survived DeletePrefix")
	}
	if _, ok := c.Get("u2:2025-01"); !ok {
		t.Error("unrelated entry removed by DeletePrefix")
	}
}

func TestTTLCacheCleanExpired(t *testing.T) {
	c := NewTTL[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired removed %d entries, want 2", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after cleanup, want 0", c.Size())
	}
}

func TestManagerCleanup(t *testing.T) {
	c := NewTTL[int](10, 5*time.Millisecond)
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for c.Size() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("manager never cleaned the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

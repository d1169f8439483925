package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("a", "alpha")
	got, ok := c.Get("a")
	if !ok || got != "alpha" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	c.Set("a", "alpha2")
	if got, _ := c.Get("a"); got != "alpha2" {
		t.Errorf("overwrite: Get = %q", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestEviction(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	c.Get("k0")
	c.Set("k3", 3)

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should have been evicted")
	}
	if _, ok := c.Get("k0"); !ok {
		t.Error("recently used k0 should survive")
	}
	if c.Size() != 3 {
		t.Errorf("Size = %d, want 3", c.Size())
	}
}

func TestExpiry(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("k", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should miss")
	}

	c.Set("k2", 2)
	time.Sleep(20 * time.Millisecond)
	if cleaned := c.CleanExpired(); cleaned != 1 {
		t.Errorf("CleanExpired = %d, want 1", cleaned)
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}

func TestPurge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()

	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("purged entry should miss")
	}

	// The cache stays usable after a purge.
	c.Set("c", 3)
	if got, ok := c.Get("c"); !ok || got != 3 {
		t.Errorf("Get after purge = %d, %v", got, ok)
	}
}

func TestManagerCleanup(t *testing.T) {
	c := NewLRUCache[int](10, 5*time.Millisecond)
	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	c.Set("k", 1)

	deadline := time.Now().Add(time.Second)
	for c.Size() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleanup never removed the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

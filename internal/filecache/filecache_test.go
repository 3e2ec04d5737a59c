package filecache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func TestCache_PutAndGet(t *testing.T) {
	c, err := New("test", 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ok := c.Get("/a.txt"); ok {
		t.Fatal("Get on empty cache returned ok")
	}

	content := []byte("hello")
	c.Put("/a.txt", content)

	got, ok := c.Get("/a.txt")
	if !ok {
		t.Fatal("Get returned not ok")
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCache_LastWriterWins(t *testing.T) {
	c, _ := New("test", 4)
	c.Put("k", []byte("one"))
	c.Put("k", []byte("two"))
	got, _ := c.Get("k")
	if string(got) != "two" {
		t.Errorf("got %q, want two", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := New("test", 2)
	c.Put("a", []byte("a"))
	c.Put("b", []byte("b"))

	// Touch a so b becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Put("c", []byte("c"))

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should have survived")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be present")
	}
}

func TestCache_Bounded(t *testing.T) {
	c, _ := New("test", DefaultEntries)
	for i := 0; i < DefaultEntries*3; i++ {
		c.Put(fmt.Sprintf("/f%d", i), []byte{byte(i)})
	}
	if c.Len() != DefaultEntries {
		t.Errorf("Len = %d, want %d", c.Len(), DefaultEntries)
	}
}

func TestCache_InvalidCapacity(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := New("test", n); err == nil {
			t.Errorf("New(%d) succeeded", n)
		}
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, _ := New("test", 8)
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("/k%d", i%10)
				c.Put(key, []byte(key))
				if b, ok := c.Get(key); ok && string(b) != key {
					t.Errorf("corrupt entry for %s: %q", key, b)
				}
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 8 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}

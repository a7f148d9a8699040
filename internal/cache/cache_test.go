package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestMappings_GetPut(t *testing.T) {
	c := NewMappings()

	if _, ok := c.Get("client1", "ns1"); ok {
		t.Error("Expected miss on empty cache")
	}

	c.Put("client1", "ns1", "abc123")

	suffix, ok := c.Get("client1", "ns1")
	if !ok {
		t.Fatal("Expected hit after Put")
	}
	if suffix != "abc123" {
		t.Errorf("Got suffix %s, want abc123", suffix)
	}

	// Same namespace under a different client is a distinct entry.
	if _, ok := c.Get("client2", "ns1"); ok {
		t.Error("Expected miss for different client")
	}
}

func TestMappings_Len(t *testing.T) {
	c := NewMappings()
	c.Put("c1", "ns1", "aaaaaa")
	c.Put("c1", "ns2", "bbbbbb")
	c.Put("c1", "ns1", "aaaaaa") // overwrite, not a new entry

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if s := c.Stats(); s.Size != 2 {
		t.Errorf("Stats.Size = %d, want 2", s.Size)
	}
}

func TestMappings_Concurrent(t *testing.T) {
	c := NewMappings()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ns := fmt.Sprintf("ns%d", n%4)
			c.Put("client", ns, "suffix")
			for j := 0; j < 100; j++ {
				c.Get("client", ns)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 4 {
		t.Errorf("Len = %d, want 4", c.Len())
	}
}

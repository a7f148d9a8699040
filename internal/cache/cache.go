// Package cache provides the in-memory mapping cache for the object store.
package cache

import (
	"sync"
)

// Key identifies a mapping cache entry.
type Key struct {
	ClientID    string
	NamespaceID string
}

// Mappings is a process-wide cache of (client_id, namespace_id) to physical
// table suffix. It has no eviction: mappings are never deleted, so entries
// stay valid for the process lifetime. Safe for concurrent use.
type Mappings struct {
	mu    sync.RWMutex
	items map[Key]string
}

// NewMappings creates an empty mapping cache.
func NewMappings() *Mappings {
	return &Mappings{
		items: make(map[Key]string),
	}
}

// Get retrieves the suffix for a (client_id, namespace_id) pair.
func (c *Mappings) Get(clientID, namespaceID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	suffix, ok := c.items[Key{ClientID: clientID, NamespaceID: namespaceID}]
	return suffix, ok
}

// Put stores the suffix for a (client_id, namespace_id) pair.
func (c *Mappings) Put(clientID, namespaceID, suffix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[Key{ClientID: clientID, NamespaceID: namespaceID}] = suffix
}

// Len returns the number of cached mappings.
func (c *Mappings) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns cache statistics.
type Stats struct {
	Size int
}

// Stats returns the current cache statistics.
func (c *Mappings) Stats() Stats {
	return Stats{Size: c.Len()}
}

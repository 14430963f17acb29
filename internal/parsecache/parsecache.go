// Package parsecache memoizes per-document derived values (syntax trees,
// compiled templates) for the latest version seen of each document.
package parsecache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"veneer/internal/document"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"golang.org/x/sync/singleflight"
)

var log = commonlog.GetLogger("veneer.parsecache")

type entry[T any] struct {
	version protocol.Integer
	value   T
}

// Cache stores one value per document URI, tagged with the document version
// it was computed from. A lookup with the same version returns the stored
// value; any other version recomputes it.
type Cache[T any] struct {
	name    string
	mu      sync.RWMutex
	entries map[protocol.DocumentUri]entry[T]
	flight  singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

func New[T any](name string) *Cache[T] {
	return &Cache[T]{
		name:    name,
		entries: make(map[protocol.DocumentUri]entry[T]),
	}
}

// Get returns the value for doc, calling parse at most once per
// (URI, version) even under concurrent lookups. parse must not fail; a
// panic inside it is logged and yields the zero value.
func (c *Cache[T]) Get(doc *document.Document, parse func(*document.Document) T) T {
	if value, ok := c.lookup(doc); ok {
		c.hits.Add(1)
		return value
	}
	c.misses.Add(1)

	key := fmt.Sprintf("%s@%d", doc.URI, doc.Version)
	v, _, _ := c.flight.Do(key, func() (any, error) {
		// a flight for this version may have finished since the lookup
		if value, ok := c.lookup(doc); ok {
			return value, nil
		}
		value := c.parse(doc, parse)
		c.store(doc, value)
		return value, nil
	})
	value, _ := v.(T)
	return value
}

func (c *Cache[T]) lookup(doc *document.Document) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[doc.URI]
	if !ok || e.version != doc.Version {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *Cache[T]) parse(doc *document.Document, parse func(*document.Document) T) (value T) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s: parse of %s@%d panicked: %v", c.name, doc.URI, doc.Version, r)
		}
	}()
	return parse(doc)
}

// store replaces the entry unless a newer version landed in the meantime.
func (c *Cache[T]) store(doc *document.Document, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[doc.URI]; ok && e.version > doc.Version {
		return
	}
	c.entries[doc.URI] = entry[T]{version: doc.Version, value: value}
}

// Evict drops the entry for uri. Called when the document is closed.
func (c *Cache[T]) Evict(uri protocol.DocumentUri) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uri)
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[T]) Name() string {
	return c.name
}

// Stats reports lookups answered from the cache and lookups that parsed.
func (c *Cache[T]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

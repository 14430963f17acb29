package parsecache_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"veneer/internal/document"
	"veneer/internal/parsecache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tree struct {
	text string
}

func TestSameVersionReturnsSameValue(t *testing.T) {
	cache := parsecache.New[*tree]("test")
	var calls int
	parse := func(d *document.Document) *tree {
		calls++
		return &tree{text: d.Text}
	}

	v1 := document.New("file:///a.css", document.CSS, 1, "a {}")
	first := cache.Get(v1, parse)
	second := cache.Get(v1, parse)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	v2 := document.New("file:///a.css", document.CSS, 2, "b {}")
	third := cache.Get(v2, parse)
	assert.NotSame(t, first, third)
	assert.Equal(t, "b {}", third.text)
	assert.Equal(t, 2, calls)

	hits, misses := cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestStaleVersionDoesNotReplaceNewer(t *testing.T) {
	cache := parsecache.New[*tree]("test")
	parse := func(d *document.Document) *tree { return &tree{text: d.Text} }

	newer := document.New("file:///a.css", document.CSS, 5, "new")
	older := document.New("file:///a.css", document.CSS, 4, "old")

	kept := cache.Get(newer, parse)
	assert.Equal(t, "old", cache.Get(older, parse).text)
	assert.Same(t, kept, cache.Get(newer, parse))
}

func TestEvict(t *testing.T) {
	cache := parsecache.New[*tree]("test")
	parse := func(d *document.Document) *tree { return &tree{text: d.Text} }

	doc := document.New("file:///a.css", document.CSS, 1, "a {}")
	first := cache.Get(doc, parse)
	require.Equal(t, 1, cache.Len())

	cache.Evict(doc.URI)
	assert.Equal(t, 0, cache.Len())
	assert.NotSame(t, first, cache.Get(doc, parse))
}

func TestConcurrentFirstLookupsParseOnce(t *testing.T) {
	cache := parsecache.New[*tree]("test")
	var calls atomic.Int32
	release := make(chan struct{})
	parse := func(d *document.Document) *tree {
		calls.Add(1)
		<-release
		return &tree{text: d.Text}
	}

	doc := document.New("file:///a.css", document.CSS, 1, "a {}")
	results := make([]*tree, 8)
	var started, wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i] = cache.Get(doc, parse)
		}(i)
	}
	started.Wait()
	close(release)
	wg.Wait()

	for _, r := range results[1:] {
		assert.Same(t, results[0], r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(len(results)))
	assert.Same(t, results[0], cache.Get(doc, parse))
}

func TestPanickingParseYieldsZeroValue(t *testing.T) {
	cache := parsecache.New[*tree]("test")
	doc := document.New("file:///a.css", document.CSS, 1, "a {}")
	got := cache.Get(doc, func(*document.Document) *tree { panic("boom") })
	assert.Nil(t, got)
}

package dataset

import (
	"container/list"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
	pmetrics "github.com/banerjixplores/climacrop/pkg/metrics"
)

// Cache lookup outcomes, used as metric labels.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheExpired = "expired"
)

// Signature identifies one version of an input file.
type Signature struct {
	Path    string
	Size    int64
	ModTime int64 // UnixNano
}

// LoadFunc reads and prepares the table at path.
type LoadFunc func(path string) (*Frame, error)

// LoadPrepared loads path and runs Prepare on it.
func LoadPrepared(path string) (*Frame, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Prepare(f)
}

// Cache memoizes prepared tables by file signature, so an edited file is
// reloaded while repeated page loads reuse the parsed table. Entries are
// evicted least-recently-used beyond Capacity and expire after TTL.
//
// Cached frames are shared between callers and must not be modified.
type Cache struct {
	mu    sync.Mutex
	ll    *list.List
	items map[Signature]*list.Element

	capacity int
	ttl      time.Duration
	clock    clockwork.Clock
	load     LoadFunc
	metrics  *pmetrics.Collector
}

type cacheEntry struct {
	key    Signature
	frame  *Frame
	loaded time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces the wall clock, for tests.
func WithClock(c clockwork.Clock) CacheOption {
	return func(cache *Cache) { cache.clock = c }
}

// WithLoader replaces LoadPrepared.
func WithLoader(fn LoadFunc) CacheOption {
	return func(cache *Cache) { cache.load = fn }
}

// WithMetrics counts lookups on m.
func WithMetrics(m *pmetrics.Collector) CacheOption {
	return func(cache *Cache) { cache.metrics = m }
}

// NewCache holds up to capacity tables for ttl each. A zero ttl never expires.
func NewCache(capacity int, ttl time.Duration, opts ...CacheOption) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	c := &Cache{
		ll:       list.New(),
		items:    make(map[Signature]*list.Element),
		capacity: capacity,
		ttl:      ttl,
		clock:    clockwork.NewRealClock(),
		load:     LoadPrepared,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignatureOf stats path.
func SignatureOf(path string) (Signature, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Signature{}, errors.Wrapf(err, "stat %s", path)
	}
	return Signature{Path: path, Size: st.Size(), ModTime: st.ModTime().UnixNano()}, nil
}

// Get returns the prepared table for path, loading it on a miss.
func (c *Cache) Get(path string) (*Frame, error) {
	sig, err := SignatureOf(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if el, ok := c.items[sig]; ok {
		e := el.Value.(*cacheEntry)
		if c.ttl <= 0 || c.clock.Since(e.loaded) < c.ttl {
			c.ll.MoveToFront(el)
			c.mu.Unlock()
			c.metrics.CacheResult(CacheHit)
			return e.frame, nil
		}
		c.ll.Remove(el)
		delete(c.items, sig)
		c.metrics.CacheResult(CacheExpired)
	} else {
		c.metrics.CacheResult(CacheMiss)
	}
	c.mu.Unlock()

	f, err := c.load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[sig]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*cacheEntry).frame, nil
	}
	c.items[sig] = c.ll.PushFront(&cacheEntry{key: sig, frame: f, loaded: c.clock.Now()})
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
	log.GetLoggerWithName("dataset").Debug("Dataset cached", log.PathKey, path, "entries", c.ll.Len())
	return f, nil
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[Signature]*list.Element)
}

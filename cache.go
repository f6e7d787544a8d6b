package changefs

import (
	"container/list"
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// shardCount is the number of stripes a shardedLRU splits its keyspace
// across. Fixed rather than configurable - this is purely a contention
// knob, not a behavioral one.
const shardCount = 16

// shardedLRU is a fixed-capacity, sharded least-recently-used cache. Each
// shard is an independent container/list + map LRU guarded by its own
// mutex; xxhash picks the shard for a key so unrelated keys rarely contend,
// which matters here because CachingFileProvider calls back into the cache
// on every GetFileInfo/GetDirectoryContents.
type shardedLRU struct {
	shards [shardCount]*lruShard
}

type lruShard struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	key   string
	value any
}

func newShardedLRU(totalCapacity int) *shardedLRU {
	if totalCapacity < shardCount {
		totalCapacity = shardCount
	}
	perShard := totalCapacity / shardCount
	c := &shardedLRU{}
	for i := range c.shards {
		c.shards[i] = &lruShard{
			capacity: perShard,
			ll:       list.New(),
			items:    make(map[string]*list.Element, perShard),
		}
	}
	return c
}

func (c *shardedLRU) shardFor(key string) *lruShard {
	h := xxhash.Sum64String(key)
	return c.shards[h%shardCount]
}

func (c *shardedLRU) get(key string) (any, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	s.ll.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *shardedLRU) set(key string, value any) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		el.Value.(*lruEntry).value = value
		s.ll.MoveToFront(el)
		return
	}

	el := s.ll.PushFront(&lruEntry{key: key, value: value})
	s.items[key] = el

	for s.ll.Len() > s.capacity {
		oldest := s.ll.Back()
		if oldest == nil {
			break
		}
		s.ll.Remove(oldest)
		delete(s.items, oldest.Value.(*lruEntry).key)
	}
}

func (c *shardedLRU) delete(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		s.ll.Remove(el)
		delete(s.items, key)
	}
}

func (c *shardedLRU) clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.ll.Init()
		s.items = make(map[string]*list.Element, s.capacity)
		s.mu.Unlock()
	}
}

// CachingFileProvider wraps a FileProvider with two bounded LRU caches - one
// for GetFileInfo results, one for GetDirectoryContents results - as
// specified in spec.md §4.8. If constructed with a watchFilter, it
// subscribes to the wrapped provider's Watch(watchFilter) token and clears
// both caches the moment that token fires.
type CachingFileProvider struct {
	base     FileProvider
	infos    *shardedLRU
	dirs     *shardedLRU
	unwatch  func()
	watching bool
}

// NewCachingFileProvider wraps base. capacity bounds each of the two LRU
// caches (file-info and directory-contents) independently. If watchFilter
// is non-empty, base.Watch(ctx, watchFilter) is called immediately and its
// token drives cache invalidation for the provider's lifetime.
func NewCachingFileProvider(ctx context.Context, base FileProvider, capacity int, watchFilter string) (*CachingFileProvider, error) {
	if capacity <= 0 {
		capacity = shardCount
	}

	c := &CachingFileProvider{
		base:  base,
		infos: newShardedLRU(capacity),
		dirs:  newShardedLRU(capacity),
	}

	if watchFilter != "" {
		token, err := base.Watch(ctx, watchFilter)
		if err != nil {
			return nil, err
		}
		c.watching = token.ActiveChangeCallbacks()
		if c.watching {
			c.unwatch = token.RegisterChangeCallback(c.invalidateAll)
		}
	}

	return c, nil
}

// Close releases the invalidation subscription, if any.
func (c *CachingFileProvider) Close() {
	if c.unwatch != nil {
		c.unwatch()
	}
}

func (c *CachingFileProvider) invalidateAll() {
	c.infos.clear()
	c.dirs.clear()
}

// GetFileInfo returns a cached FileInfo for subpath when present, otherwise
// queries the wrapped provider and caches the result (including a
// not-found result, which is itself useful information to cache).
func (c *CachingFileProvider) GetFileInfo(ctx context.Context, subpath string) (FileInfo, error) {
	if cached, ok := c.infos.get(subpath); ok {
		return cached.(FileInfo), nil
	}

	info, err := c.base.GetFileInfo(ctx, subpath)
	if err != nil {
		return FileInfo{}, err
	}
	c.infos.set(subpath, info)
	return info, nil
}

// GetDirectoryContents mirrors GetFileInfo for directory listings.
func (c *CachingFileProvider) GetDirectoryContents(ctx context.Context, subpath string) (DirectoryContents, error) {
	if cached, ok := c.dirs.get(subpath); ok {
		return cached.(DirectoryContents), nil
	}

	contents, err := c.base.GetDirectoryContents(ctx, subpath)
	if err != nil {
		return DirectoryContents{}, err
	}
	c.dirs.set(subpath, contents)
	return contents, nil
}

// Watch delegates to the wrapped provider; CachingFileProvider does not
// cache change tokens themselves, only metadata lookups.
func (c *CachingFileProvider) Watch(ctx context.Context, filter string) (ChangeToken, error) {
	return c.base.Watch(ctx, filter)
}

var _ FileProvider = (*CachingFileProvider)(nil)

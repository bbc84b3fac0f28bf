package feature

import (
	"container/list"
	"sync"
	"time"
)

// Cache 是有界的内存缓存：容量满时按插入顺序淘汰最老条目（与 TTL 无关），
// 读到过期条目视为缺失并惰性删除。
//
// 用途：
//   - 特征向量缓存（内容极少变化，TTL 可以很长，默认 24h）
//   - 候选池查询结果缓存（TTL 较短）
//
// 并发安全：读写都经过同一把锁；缓存很小，单临界区足够。
// 显式构造、显式 Close，不做包级单例，测试可以各建各的实例。
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	entries    map[K]*list.Element
	order      *list.List // 插入顺序，队首最老
	maxSize    int
	defaultTTL time.Duration

	janitor *time.Ticker
	stopCh  chan struct{}
	once    sync.Once
}

type cacheEntry[K comparable, V any] struct {
	key    K
	value  V
	expiry time.Time
}

// NewCache 创建缓存。maxSize <= 0 时按 1 处理。
// 过期清理以惰性删除为主，janitor 只做周期性的兜底回收。
func NewCache[K comparable, V any](maxSize int, defaultTTL time.Duration) *Cache[K, V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache[K, V]{
		entries:    make(map[K]*list.Element, maxSize),
		order:      list.New(),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		janitor:    time.NewTicker(time.Minute),
		stopCh:     make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get 读取条目；不存在或已过期返回零值和 false。过期条目就地删除。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	ent := el.Value.(*cacheEntry[K, V])
	if time.Now().After(ent.expiry) {
		c.removeLocked(el)
		return zero, false
	}
	return ent.value, true
}

// Set 写入条目。容量满时先淘汰最早插入的条目。
// 覆盖已有 key 不改变其插入位置。ttl <= 0 时用默认 TTL。
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	expiry := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*cacheEntry[K, V])
		ent.value = value
		ent.expiry = expiry
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.removeLocked(oldest)
		}
	}

	el := c.order.PushBack(&cacheEntry[K, V]{key: key, value: value, expiry: expiry})
	c.entries[key] = el
}

// Delete 删除条目。
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Len 返回当前条目数（含尚未被惰性清理的过期条目）。
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close 停止清理协程。
func (c *Cache[K, V]) Close() {
	c.once.Do(func() {
		close(c.stopCh)
	})
}

func (c *Cache[K, V]) removeLocked(el *list.Element) {
	ent := el.Value.(*cacheEntry[K, V])
	c.order.Remove(el)
	delete(c.entries, ent.key)
}

func (c *Cache[K, V]) cleanup() {
	for {
		select {
		case <-c.janitor.C:
			c.cleanExpired()
		case <-c.stopCh:
			c.janitor.Stop()
			return
		}
	}
}

func (c *Cache[K, V]) cleanExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if now.After(el.Value.(*cacheEntry[K, V]).expiry) {
			c.removeLocked(el)
		}
		el = next
	}
}

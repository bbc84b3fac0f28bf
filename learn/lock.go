package learn

import "sync"

// KeyedMutex 是按 key 的互斥锁，用于同一用户偏好状态的读-改-写串行化。
// 偏好状态按用户分区，跨用户无需互斥。
//
// 锁对象按需创建后常驻；用户规模内存开销可忽略，不做回收。
type KeyedMutex struct {
	locks sync.Map // key -> *sync.Mutex
}

// NewKeyedMutex 创建按 key 互斥锁。
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock 锁定指定 key。
func (k *KeyedMutex) Lock(key string) {
	k.mutex(key).Lock()
}

// Unlock 解锁指定 key。
func (k *KeyedMutex) Unlock(key string) {
	k.mutex(key).Unlock()
}

func (k *KeyedMutex) mutex(key string) *sync.Mutex {
	if mu, ok := k.locks.Load(key); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

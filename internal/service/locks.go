package service

import "sync"

// productLocker 按商品 ID 串行化 key 池写操作。
// 分配与整池替换都先拿商品锁再开事务,避免同一商品的并发分配竞争。
type productLocker struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newProductLocker() *productLocker {
	return &productLocker{locks: make(map[uint]*sync.Mutex)}
}

func (l *productLocker) lock(productID uint) func() {
	l.mu.Lock()
	m, ok := l.locks[productID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[productID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

package lock

import (
	"context"
	"errors"
	"sync"
)

// 锁错误定义

var (
	// ErrBusy 重试次数用尽仍未取得锁
	ErrBusy = errors.New("LOCK_BUSY")
)

// Locker 按房间粒度的互斥锁
// 协调器的每个写操作在读-改-写全程持有对应房间的锁，
// 不同房间之间互不影响，不存在全局锁。
type Locker interface {
	// Acquire 获取指定房间的锁，返回释放函数
	// 取不到锁时返回 ErrBusy，上下文取消时返回 ctx.Err()。
	Acquire(ctx context.Context, roomID string) (release func(), err error)
}

// LocalLocker 进程内按键互斥锁
// 引用计数保证空闲键的条目及时回收，配合内存存储使用。
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{} // 容量 1，持有 token 即持有锁
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		entries: make(map[string]*localEntry),
	}
}

// Acquire 获取锁，阻塞直到取得锁或上下文取消
func (l *LocalLocker) Acquire(ctx context.Context, roomID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[roomID]
	if !ok {
		entry = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[roomID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			l.put(roomID, entry)
		}, nil
	case <-ctx.Done():
		l.put(roomID, entry)
		return nil, ctx.Err()
	}
}

// put 归还引用，无人等待时回收条目
func (l *LocalLocker) put(roomID string, entry *localEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, roomID)
	}
	l.mu.Unlock()
}

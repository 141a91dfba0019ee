package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore 纯内存存储
// 用 RWMutex 保护的 map 实现，TTL 在读取时惰性检查。
// 没有原生的后台过期机制，依赖协调器的清扫回收长期无人访问的记录。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // 零值表示不过期
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

// Get 读取记录，已过期的记录视为不存在并顺带删除
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if entry.expired(time.Now()) {
		s.mu.Lock()
		// 重新检查，期间可能已被覆盖写入
		if cur, ok := s.entries[key]; ok && cur.expired(time.Now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Put 写入记录
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete 删除记录
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// ListKeys 按前缀枚举未过期的键
func (s *MemoryStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for key, entry := range s.entries {
		if !strings.HasPrefix(key, prefix) || entry.expired(now) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// SupportsTTL 内存存储没有后台过期，需要协调器清扫
func (s *MemoryStore) SupportsTTL() bool {
	return false
}

// Len 当前记录数（含惰性未删除的过期记录）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

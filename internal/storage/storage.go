package storage

import (
	"context"
	"errors"
	"time"
)

// 存储错误定义

var (
	// ErrNotFound 键不存在
	ErrNotFound = errors.New("KEY_NOT_FOUND")
)

// Store 房间记录存储适配器
// 以命名空间键存取单条 JSON 记录，可选 TTL。
// 后端实现：Redis（原生 TTL）、PostgreSQL（expires_at 列）、纯内存（进程重启即丢失，
// 仅用于测试和无外部依赖的单机部署，这一持久性限制需在部署文档中明示）。
type Store interface {
	// Get 读取记录，键不存在返回 ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Put 写入记录，ttl > 0 时设置过期时间
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除记录，键不存在不报错
	Delete(ctx context.Context, key string) error

	// ListKeys 按前缀枚举键
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	// SupportsTTL 后端是否原生支持按键过期
	// 返回 false 时由协调器的过期清扫负责回收过期记录。
	SupportsTTL() bool
}

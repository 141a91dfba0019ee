package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// lockKeyPrefix 房间锁键前缀
	lockKeyPrefix = "bunker:room:lock:"

	// lockTTL 锁的自动过期时间，防止持有者崩溃后锁永久滞留
	lockTTL = 5 * time.Second

	// acquireAttempts 获取锁的最大尝试次数
	acquireAttempts = 3

	// retryWait 两次尝试之间的等待时间
	retryWait = 150 * time.Millisecond
)

// RedisLocker 基于 Redis SETNX 的分布式房间锁
// 多个服务实例共享同一 Redis 时仍能保证同一房间的写操作串行。
type RedisLocker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisLocker 创建分布式房间锁
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		logger: slog.Default().With("component", "RedisLocker"),
	}
}

// BuildRoomLockKey 构建房间锁 Key
func BuildRoomLockKey(roomID string) string {
	return fmt.Sprintf("%s%s", lockKeyPrefix, roomID)
}

// Acquire 获取锁，有限次重试后放弃
func (l *RedisLocker) Acquire(ctx context.Context, roomID string) (func(), error) {
	lockKey := BuildRoomLockKey(roomID)

	for attempt := 0; attempt < acquireAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		locked, err := l.client.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil {
			l.logger.Error("Failed to acquire room lock", "error", err, "roomId", roomID)
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return func() {
				// 释放锁不依赖调用方上下文，请求被放弃也要归还
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := l.client.Del(releaseCtx, lockKey).Err(); err != nil {
					l.logger.Warn("Failed to release room lock", "error", err, "roomId", roomID)
				}
			}, nil
		}
	}

	l.logger.Warn("Room is locked by another operation", "roomId", roomID)
	return nil, ErrBusy
}

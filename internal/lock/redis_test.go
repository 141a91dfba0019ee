package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLocker(t *testing.T) (*RedisLocker, *redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client), client, mr
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	locker, client, _ := newTestRedisLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "r1")
	require.NoError(t, err)

	// 持有期间锁键存在
	exists, err := client.Exists(ctx, BuildRoomLockKey("r1")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	release()

	exists, err = client.Exists(ctx, BuildRoomLockKey("r1")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists, "release should delete the lock key")
}

func TestRedisLockerBusy(t *testing.T) {
	locker, client, _ := newTestRedisLocker(t)
	ctx := context.Background()

	// 另一个实例持有锁
	require.NoError(t, client.SetNX(ctx, BuildRoomLockKey("r1"), "1", time.Minute).Err())

	_, err := locker.Acquire(ctx, "r1")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestRedisLockerRetrySucceeds(t *testing.T) {
	locker, client, _ := newTestRedisLocker(t)
	ctx := context.Background()

	require.NoError(t, client.SetNX(ctx, BuildRoomLockKey("r1"), "1", time.Minute).Err())

	// 第一次尝试失败后锁被释放，重试应当成功
	go func() {
		time.Sleep(50 * time.Millisecond)
		client.Del(context.Background(), BuildRoomLockKey("r1"))
	}()

	release, err := locker.Acquire(ctx, "r1")
	require.NoError(t, err)
	release()
}

func TestRedisLockerIndependentRooms(t *testing.T) {
	locker, _, _ := newTestRedisLocker(t)
	ctx := context.Background()

	release1, err := locker.Acquire(ctx, "r1")
	require.NoError(t, err)
	defer release1()

	release2, err := locker.Acquire(ctx, "r2")
	require.NoError(t, err)
	release2()
}

package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sudooom.bunker.lobby/internal/lock"
	"sudooom.bunker.lobby/internal/model"
	"sudooom.bunker.lobby/internal/storage"
)

// 房间状态协调器
// 拥有房间身份、成员关系、房主选举、重连对账，以及共享游戏状态的
// 并发安全读-改-写。所有写操作按 roomId 串行（持锁跨越整个读-改-写），
// 跨房间操作相互独立。

const (
	// DefaultKeyPrefix 房间记录在存储中的键前缀
	DefaultKeyPrefix = "bunker:room:"

	// DefaultRoomTTL 每次写入后刷新的房间存活时间
	DefaultRoomTTL = 24 * time.Hour

	// DefaultMaxAge 无原生 TTL 的后端使用的最大闲置时间
	DefaultMaxAge = 2 * time.Hour
)

// Options 协调器配置
type Options struct {
	KeyPrefix         string        // 存储键前缀
	RoomTTL           time.Duration // 每次写入后的存活时间
	MaxAge            time.Duration // 清扫判定的最大闲置时间
	DefaultMaxPlayers int           // 新房间的默认人数上限
}

// EventPublisher 房间事件发布接口
// 对其他服务广播大厅事件，nil 表示不发布。
type EventPublisher interface {
	PublishRoomEvent(event string, roomID string, payload []byte) error
}

// Service 房间状态协调器
type Service struct {
	store  storage.Store
	locker lock.Locker
	events EventPublisher
	opts   Options
	logger *slog.Logger
}

// NewService 创建协调器
func NewService(store storage.Store, locker lock.Locker, events EventPublisher, opts Options) *Service {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = DefaultRoomTTL
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.DefaultMaxPlayers <= 0 {
		opts.DefaultMaxPlayers = model.DefaultMaxPlayers
	}

	return &Service{
		store:  store,
		locker: locker,
		events: events,
		opts:   opts,
		logger: slog.Default().With("component", "LobbyService"),
	}
}

// roomKey 构建房间存储键
func (s *Service) roomKey(roomID string) string {
	return s.opts.KeyPrefix + roomID
}

// loadRoom 从存储读取房间记录
// 键不存在时返回 storage.ErrNotFound。
func (s *Service) loadRoom(ctx context.Context, roomID string) (*model.Room, error) {
	data, err := s.store.Get(ctx, s.roomKey(roomID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}

	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room %s: %w", roomID, err)
	}

	// 存储键是房间身份的最终裁决，损坏的记录不允许换名
	room.RoomID = roomID
	return &room, nil
}

// saveRoom 持久化房间记录
// 每次写入刷新 lastUpdate 与 TTL。写入失败必须上报，绝不假装成功。
func (s *Service) saveRoom(ctx context.Context, room *model.Room) error {
	room.LastUpdate = model.NowMillis()

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room %s: %w", room.RoomID, err)
	}

	if err := s.store.Put(ctx, s.roomKey(room.RoomID), data, s.opts.RoomTTL); err != nil {
		return fmt.Errorf("failed to save room %s: %w", room.RoomID, err)
	}
	return nil
}

// withRoomLock 在持有房间锁的前提下执行 fn
func (s *Service) withRoomLock(ctx context.Context, roomID string, fn func(ctx context.Context) error) error {
	release, err := s.locker.Acquire(ctx, roomID)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return ErrRoomBusy
		}
		return err
	}
	defer release()

	return fn(ctx)
}

// publish 发布房间事件（未配置发布器时跳过）
func (s *Service) publish(event, roomID string, payload any) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("Failed to marshal room event", "error", err, "event", event, "roomId", roomID)
		return
	}
	if err := s.events.PublishRoomEvent(event, roomID, data); err != nil {
		s.logger.Warn("Failed to publish room event", "error", err, "event", event, "roomId", roomID)
	}
}

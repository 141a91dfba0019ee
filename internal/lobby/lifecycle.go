package lobby

import (
	"context"
	"errors"
	"strings"
	"time"

	"sudooom.bunker.lobby/internal/model"
	"sudooom.bunker.lobby/internal/storage"
)

// 房间生命周期：隐式创建、显式重建、删除、过期清扫。
// 两种建房策略并存：GetOrCreate 支持「链接即房间」的零配置加入流程，
// CreateRoom 支持房主显式开房；由调用方选择。

// GetOrCreate 获取房间，不存在则创建默认记录并持久化
// 并发的首次访问在房间锁内二次检查，保证收敛到同一条记录。
func (s *Service) GetOrCreate(ctx context.Context, roomID string) (*model.Room, error) {
	if roomID == "" {
		return nil, ErrRoomIDRequired
	}

	// 快路径：已存在的房间无需加锁
	room, err := s.loadRoom(ctx, roomID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		// 存储故障不能退化成一个新房间，否则会悄悄清空在玩的局
		return nil, err
	}

	err = s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		room, err = s.loadRoom(ctx, roomID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		room = model.NewDefaultRoom(roomID, s.opts.DefaultMaxPlayers, model.NowMillis())
		if err := s.saveRoom(ctx, room); err != nil {
			return err
		}

		s.logger.Info("Room created", "roomId", roomID)
		s.publish("room.created", roomID, roomCreatedEvent{RoomID: roomID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// CreateRoom 显式建房：总是写入全新的默认记录，覆盖已有房间
func (s *Service) CreateRoom(ctx context.Context, roomID string) (*model.Room, error) {
	if roomID == "" {
		return nil, ErrRoomIDRequired
	}

	var room *model.Room
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		room = model.NewDefaultRoom(roomID, s.opts.DefaultMaxPlayers, model.NowMillis())
		if err := s.saveRoom(ctx, room); err != nil {
			return err
		}

		s.logger.Info("Room reset", "roomId", roomID)
		s.publish("room.created", roomID, roomCreatedEvent{RoomID: roomID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// DeleteRoom 无条件删除房间，幂等
// 房主权限由调用方校验，协调器不做鉴权。
func (s *Service) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return ErrRoomIDRequired
	}

	return s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		if err := s.store.Delete(ctx, s.roomKey(roomID)); err != nil {
			return err
		}

		s.logger.Info("Room deleted", "roomId", roomID)
		s.publish("room.deleted", roomID, roomDeletedEvent{RoomID: roomID})
		return nil
	})
}

// Expire 清扫闲置超过 MaxAge 的房间，返回清除数量
// 后端原生支持 TTL 时无需清扫，直接返回 0。
// 正被其他操作持锁的房间本轮跳过，下一轮再看。
func (s *Service) Expire(ctx context.Context, now int64) (int, error) {
	if s.store.SupportsTTL() {
		return 0, nil
	}

	keys, err := s.store.ListKeys(ctx, s.opts.KeyPrefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	maxAgeMillis := s.opts.MaxAge.Milliseconds()
	for _, key := range keys {
		roomID := strings.TrimPrefix(key, s.opts.KeyPrefix)

		err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
			room, err := s.loadRoom(ctx, roomID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return nil
				}
				return err
			}

			if now-room.LastUpdate <= maxAgeMillis {
				return nil
			}

			if err := s.store.Delete(ctx, key); err != nil {
				return err
			}
			removed++
			s.logger.Info("Expired inactive room", "roomId", roomID, "lastUpdate", room.LastUpdate)
			s.publish("room.deleted", roomID, roomDeletedEvent{RoomID: roomID})
			return nil
		})
		if err != nil {
			if errors.Is(err, ErrRoomBusy) {
				continue
			}
			return removed, err
		}
	}
	return removed, nil
}

// StartSweeper 启动后台清扫循环，上下文取消后退出
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if s.store.SupportsTTL() {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed, err := s.Expire(ctx, model.NowMillis())
				if err != nil {
					s.logger.Warn("Expiry sweep failed", "error", err)
				} else if removed > 0 {
					s.logger.Info("Expiry sweep done", "removed", removed)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

type roomCreatedEvent struct {
	RoomID string `json:"roomId"`
}

type roomDeletedEvent struct {
	RoomID string `json:"roomId"`
}

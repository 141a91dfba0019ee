package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sudooom.bunker.lobby/internal/model"
	"sudooom.bunker.lobby/internal/storage"
)

// Update 合并客户端提交的部分状态
//
// 合并策略是顶层字段的浅替换（last-write-wins）：补丁中出现的键
// 整值覆盖存储值，数组与嵌套对象不做深合并 —— 发送部分 players
// 数组的客户端必须重发完整数组。roomId 始终钉死为记录的真实身份，
// createdAt 不可变，lastUpdate 一律取服务器时间，其余字段不做校验。
func (s *Service) Update(ctx context.Context, roomID string, patch map[string]json.RawMessage) (*model.Room, error) {
	if roomID == "" {
		return nil, ErrRoomIDRequired
	}

	var room *model.Room
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var err error
		room, err = s.loadRoom(ctx, roomID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			// 更新未知房间：在默认记录上合并（与隐式建房一致）
			room = model.NewDefaultRoom(roomID, s.opts.DefaultMaxPlayers, model.NowMillis())
		}

		if err := applyPatch(room, patch); err != nil {
			return err
		}

		if err := s.saveRoom(ctx, room); err != nil {
			return err
		}

		s.logger.Debug("Room state merged", "roomId", roomID, "fields", len(patch))
		s.publish("room.updated", roomID, roomUpdatedEvent{RoomID: roomID, Phase: room.Phase})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// applyPatch 把补丁按顶层字段浅替换到房间记录上
// roomId/createdAt/lastUpdate 为协调器钉死的字段，补丁中的值被忽略。
func applyPatch(room *model.Room, patch map[string]json.RawMessage) error {
	for key, value := range patch {
		switch key {
		case "roomId", "createdAt", "lastUpdate":
			// 身份与时间戳由协调器裁决

		case "players":
			players := []model.Player{}
			if err := json.Unmarshal(value, &players); err != nil {
				return fmt.Errorf("invalid players in patch: %w", err)
			}
			room.Players = players

		case "hostId":
			if string(value) == "null" {
				room.HostID = ""
				continue
			}
			if err := json.Unmarshal(value, &room.HostID); err != nil {
				return fmt.Errorf("invalid hostId in patch: %w", err)
			}

		case "phase":
			if err := json.Unmarshal(value, &room.Phase); err != nil {
				return fmt.Errorf("invalid phase in patch: %w", err)
			}

		case "maxPlayers":
			if err := json.Unmarshal(value, &room.MaxPlayers); err != nil {
				return fmt.Errorf("invalid maxPlayers in patch: %w", err)
			}

		default:
			// 游戏载荷：整值替换，不解释
			if room.Game == nil {
				room.Game = make(map[string]json.RawMessage)
			}
			room.Game[key] = value
		}
	}
	return nil
}

type roomUpdatedEvent struct {
	RoomID string `json:"roomId"`
	Phase  string `json:"phase"`
}

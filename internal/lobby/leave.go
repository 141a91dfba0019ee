package lobby

import (
	"context"
	"errors"

	"sudooom.bunker.lobby/internal/model"
	"sudooom.bunker.lobby/internal/storage"
)

// Leave 离开房间
//
// 返回 (room, deleted, err)：deleted 为 true 表示最后一名玩家离开、
// 房间已随之删除，此时 room 为 nil —— 这是正常的终止结果，不是错误。
// 玩家不在座时是无操作（重复离开不报错），返回未变的房间。
// 房主离开且还有余人时，房主转移给现存最早加入者（players[0]）。
func (s *Service) Leave(ctx context.Context, roomID, playerID string) (*model.Room, bool, error) {
	if roomID == "" {
		return nil, false, ErrRoomIDRequired
	}

	var room *model.Room
	deleted := false

	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var err error
		room, err = s.loadRoom(ctx, roomID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// 房间已不存在：与玩家不在座一样按无操作处理，
				// 返回合成的默认记录但不落盘
				room = model.NewDefaultRoom(roomID, s.opts.DefaultMaxPlayers, model.NowMillis())
				return nil
			}
			return err
		}

		_, idx := room.FindPlayer(playerID)
		if idx == -1 {
			return nil
		}

		wasHost := room.HostID == playerID
		room.Players = append(room.Players[:idx], room.Players[idx+1:]...)

		// 空房随之删除
		if len(room.Players) == 0 {
			if err := s.store.Delete(ctx, s.roomKey(roomID)); err != nil {
				return err
			}
			room = nil
			deleted = true

			s.logger.Info("Last player left, room deleted", "roomId", roomID, "playerId", playerID)
			s.publish("room.deleted", roomID, roomDeletedEvent{RoomID: roomID})
			return nil
		}

		if wasHost {
			room.HostID = room.Players[0].ID
			s.logger.Info("Host transferred", "roomId", roomID, "oldHost", playerID, "newHost", room.HostID)
		}

		if err := s.saveRoom(ctx, room); err != nil {
			return err
		}

		s.logger.Info("Player left", "roomId", roomID, "playerId", playerID, "players", len(room.Players))
		s.publish("player.left", roomID, playerEvent{RoomID: roomID, PlayerID: playerID})
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return room, deleted, nil
}

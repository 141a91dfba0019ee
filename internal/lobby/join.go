package lobby

import (
	"context"
	"errors"

	"sudooom.bunker.lobby/internal/model"
	"sudooom.bunker.lobby/internal/storage"
)

// JoinOutcome 加入结果：新加入或断线重连
// 调用方用它区分「欢迎加入」与「欢迎回来」的客户端表现。
type JoinOutcome string

const (
	OutcomeJoined      JoinOutcome = "joined"
	OutcomeReconnected JoinOutcome = "reconnected"
)

// Join 加入房间（新加入或重连）
//
// 按玩家 ID 对账：ID 已在座则视为重连，只更新 name 和 lastSeen，
// 其余字段（角色、揭示标记等游戏进度）保留存储中的值，绝不被
// 重连请求重置；重连不重查名字唯一性（名额仍是该玩家的）。
// ID 不在座则按新加入处理：满员和重名拒绝，首位加入者当选房主。
func (s *Service) Join(ctx context.Context, roomID string, incoming model.Player) (*model.Room, JoinOutcome, error) {
	if roomID == "" {
		return nil, "", ErrRoomIDRequired
	}
	if incoming.ID == "" || incoming.Name == "" {
		return nil, "", ErrInvalidPlayer
	}

	var room *model.Room
	var outcome JoinOutcome

	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var err error
		room, err = s.loadRoom(ctx, roomID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			// 加入未知房间即隐式建房
			room = model.NewDefaultRoom(roomID, s.opts.DefaultMaxPlayers, model.NowMillis())
		}

		now := model.NowMillis()

		if existing, idx := room.FindPlayer(incoming.ID); existing != nil {
			// 重连：座次不变，游戏进度不变
			room.Players[idx].Name = incoming.Name
			room.Players[idx].LastSeen = now
			outcome = OutcomeReconnected

			if err := s.saveRoom(ctx, room); err != nil {
				return err
			}

			s.logger.Info("Player reconnected", "roomId", roomID, "playerId", incoming.ID, "name", incoming.Name)
			s.publish("player.reconnected", roomID, playerEvent{RoomID: roomID, PlayerID: incoming.ID})
			return nil
		}

		if len(room.Players) >= room.MaxPlayers {
			return ErrRoomFull
		}
		if room.HasPlayerNamed(incoming.Name) {
			return ErrNameTaken
		}

		player := model.Player{
			ID:       incoming.ID,
			Name:     incoming.Name,
			LastSeen: now,
			Extra:    incoming.Extra,
		}
		room.Players = append(room.Players, player)

		// 首位加入者无条件当选房主
		if len(room.Players) == 1 {
			room.HostID = player.ID
		}
		outcome = OutcomeJoined

		if err := s.saveRoom(ctx, room); err != nil {
			return err
		}

		s.logger.Info("Player joined", "roomId", roomID, "playerId", incoming.ID, "name", incoming.Name, "players", len(room.Players))
		s.publish("player.joined", roomID, playerEvent{RoomID: roomID, PlayerID: incoming.ID})
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return room, outcome, nil
}

type playerEvent struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

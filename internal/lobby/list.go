package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"sudooom.bunker.lobby/internal/model"
	"sudooom.bunker.lobby/internal/storage"
)

// ListJoinable 列出可加入的房间（phase == waiting）
//
// 某一时刻的快照，不是订阅；顺序未定义（按存储枚举序）。
// 目录永不失败：存储故障时记日志并返回空列表。
func (s *Service) ListJoinable(ctx context.Context) []model.RoomSummary {
	keys, err := s.store.ListKeys(ctx, s.opts.KeyPrefix)
	if err != nil {
		s.logger.Warn("Failed to list room keys", "error", err)
		return []model.RoomSummary{}
	}

	summaries := make([]model.RoomSummary, 0, len(keys))
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			// 快照期间被删除或后端抖动，跳过该房间
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("Failed to read room for directory", "error", err, "key", key)
			}
			continue
		}

		var room model.Room
		if err := json.Unmarshal(data, &room); err != nil {
			s.logger.Warn("Skipping malformed room record", "error", err, "key", key)
			continue
		}
		room.RoomID = strings.TrimPrefix(key, s.opts.KeyPrefix)

		if room.Phase != model.PhaseWaiting {
			continue
		}
		summaries = append(summaries, room.Summary())
	}
	return summaries
}

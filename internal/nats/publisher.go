package nats

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// SubjectRoomEventPrefix 大厅房间事件主题前缀
// 完整主题形如 bunker.lobby.room.created / bunker.lobby.player.joined。
const SubjectRoomEventPrefix = "bunker.lobby."

// BuildRoomEventSubject 构建房间事件主题
func BuildRoomEventSubject(event string) string {
	return SubjectRoomEventPrefix + event
}

// RoomEventPublisher 房间事件发布器
// 把大厅状态变化（建房、删房、加入、离开、状态合并）广播给感兴趣的
// 下游服务。发布是尽力而为：失败由调用方记日志，不影响请求本身。
type RoomEventPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewRoomEventPublisher 创建房间事件发布器
func NewRoomEventPublisher(nc *nats.Conn) *RoomEventPublisher {
	return &RoomEventPublisher{
		nc:     nc,
		logger: slog.Default(),
	}
}

// roomEventEnvelope 事件信封
type roomEventEnvelope struct {
	Event   string          `json:"event"`
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PublishRoomEvent 发布房间事件
func (p *RoomEventPublisher) PublishRoomEvent(event string, roomID string, payload []byte) error {
	envelope := roomEventEnvelope{
		Event:   event,
		RoomID:  roomID,
		Payload: payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Error("Failed to marshal room event", "error", err, "event", event)
		return err
	}

	subject := BuildRoomEventSubject(event)
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish room event", "error", err, "subject", subject, "roomId", roomID)
		return err
	}

	p.logger.Debug("Published room event", "subject", subject, "roomId", roomID)
	return nil
}

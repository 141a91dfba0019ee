package model

import (
	"encoding/json"
	"time"
)

// Room 房间记录
// 协调器拥有的字段（roomId/players/hostId/phase/maxPlayers/时间戳）与
// 游戏载荷（Game）分离：协调器的不变量不依赖任何游戏字段，
// 游戏字段原样透传、整体替换、从不解释。
// 序列化为扁平 JSON（camelCase），与现有客户端的字段布局保持一致。
type Room struct {
	RoomID     string
	Players    []Player
	HostID     string // 空字符串表示无房主（序列化为 null）
	Phase      string
	MaxPlayers int
	LastUpdate int64 // 毫秒时间戳
	CreatedAt  int64 // 毫秒时间戳，创建后不可变
	Game       map[string]json.RawMessage
}

// Player 房间玩家
// id/name/lastSeen 由协调器维护，其余游戏属性（角色、揭示标记等）
// 保存在 Extra 中原样透传。
type Player struct {
	ID       string
	Name     string
	LastSeen int64
	Extra    map[string]json.RawMessage
}

// RoomSummary 房间目录条目
type RoomSummary struct {
	RoomID      string `json:"roomId"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	CreatedAt   int64  `json:"createdAt"`
}

// PhaseWaiting 等待阶段（唯一对服务端有意义的阶段值）
// 处于等待阶段的房间可加入、出现在房间目录中；其余阶段值对服务端透明。
const PhaseWaiting = "waiting"

// DefaultMaxPlayers 默认人数上限
const DefaultMaxPlayers = 8

// NowMillis 当前毫秒时间戳
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewDefaultRoom 创建默认房间记录
func NewDefaultRoom(roomID string, maxPlayers int, now int64) *Room {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	return &Room{
		RoomID:     roomID,
		Players:    []Player{},
		HostID:     "",
		Phase:      PhaseWaiting,
		MaxPlayers: maxPlayers,
		LastUpdate: now,
		CreatedAt:  now,
		Game:       defaultGamePayload(),
	}
}

// defaultGamePayload 新房间的初始游戏载荷
// 对协调器完全透明，但客户端期望这些键在新房间中存在。
func defaultGamePayload() map[string]json.RawMessage {
	return map[string]json.RawMessage{
		"currentPlayerId":     json.RawMessage(`null`),
		"round":               json.RawMessage(`1`),
		"votingResults":       json.RawMessage(`{}`),
		"detailedVotes":       json.RawMessage(`{}`),
		"playersWhoVoted":     json.RawMessage(`[]`),
		"discussionSkipVotes": json.RawMessage(`[]`),
		"bunkerSlots":         json.RawMessage(`2`),
		"auditLog":            json.RawMessage(`[]`),
		"scenario":            json.RawMessage(`null`),
	}
}

// 协调器保留的顶层字段，合并时不会落入 Game
var reservedRoomKeys = map[string]bool{
	"roomId":     true,
	"players":    true,
	"hostId":     true,
	"phase":      true,
	"maxPlayers": true,
	"lastUpdate": true,
	"createdAt":  true,
}

// MarshalJSON 扁平化序列化：游戏载荷与协调器字段平铺在同一层
func (r *Room) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Game)+7)
	for k, v := range r.Game {
		if reservedRoomKeys[k] {
			continue
		}
		out[k] = v
	}

	var err error
	if out["roomId"], err = json.Marshal(r.RoomID); err != nil {
		return nil, err
	}
	players := r.Players
	if players == nil {
		players = []Player{}
	}
	if out["players"], err = json.Marshal(players); err != nil {
		return nil, err
	}
	if r.HostID == "" {
		out["hostId"] = json.RawMessage(`null`)
	} else if out["hostId"], err = json.Marshal(r.HostID); err != nil {
		return nil, err
	}
	if out["phase"], err = json.Marshal(r.Phase); err != nil {
		return nil, err
	}
	if out["maxPlayers"], err = json.Marshal(r.MaxPlayers); err != nil {
		return nil, err
	}
	if out["lastUpdate"], err = json.Marshal(r.LastUpdate); err != nil {
		return nil, err
	}
	if out["createdAt"], err = json.Marshal(r.CreatedAt); err != nil {
		return nil, err
	}

	return json.Marshal(out)
}

// UnmarshalJSON 从扁平 JSON 还原：已知字段解析为类型化字段，其余进入 Game
func (r *Room) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["roomId"]; ok {
		if err := json.Unmarshal(v, &r.RoomID); err != nil {
			return err
		}
	}
	r.Players = []Player{}
	if v, ok := raw["players"]; ok && !isJSONNull(v) {
		if err := json.Unmarshal(v, &r.Players); err != nil {
			return err
		}
	}
	r.HostID = ""
	if v, ok := raw["hostId"]; ok && !isJSONNull(v) {
		if err := json.Unmarshal(v, &r.HostID); err != nil {
			return err
		}
	}
	if v, ok := raw["phase"]; ok {
		if err := json.Unmarshal(v, &r.Phase); err != nil {
			return err
		}
	}
	if v, ok := raw["maxPlayers"]; ok {
		if err := json.Unmarshal(v, &r.MaxPlayers); err != nil {
			return err
		}
	}
	if v, ok := raw["lastUpdate"]; ok {
		if err := json.Unmarshal(v, &r.LastUpdate); err != nil {
			return err
		}
	}
	if v, ok := raw["createdAt"]; ok {
		if err := json.Unmarshal(v, &r.CreatedAt); err != nil {
			return err
		}
	}

	r.Game = make(map[string]json.RawMessage)
	for k, v := range raw {
		if reservedRoomKeys[k] {
			continue
		}
		r.Game[k] = v
	}

	return nil
}

// FindPlayer 按 ID 查找玩家
// 返回玩家指针与索引（-1 表示未找到）
func (r *Room) FindPlayer(playerID string) (*Player, int) {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i], i
		}
	}
	return nil, -1
}

// HasPlayerNamed 检查名字是否已被当前在座玩家占用（区分大小写）
func (r *Room) HasPlayerNamed(name string) bool {
	for i := range r.Players {
		if r.Players[i].Name == name {
			return true
		}
	}
	return false
}

// Summary 生成目录条目
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		RoomID:      r.RoomID,
		PlayerCount: len(r.Players),
		MaxPlayers:  r.MaxPlayers,
		CreatedAt:   r.CreatedAt,
	}
}

// Clone 深拷贝房间记录（Game 载荷按只读共享）
func (r *Room) Clone() *Room {
	clone := *r
	clone.Players = append([]Player{}, r.Players...)
	clone.Game = make(map[string]json.RawMessage, len(r.Game))
	for k, v := range r.Game {
		clone.Game[k] = v
	}
	return &clone
}

// 玩家保留字段
var reservedPlayerKeys = map[string]bool{
	"id":       true,
	"name":     true,
	"lastSeen": true,
}

// MarshalJSON 扁平化序列化玩家
func (p Player) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Extra)+3)
	for k, v := range p.Extra {
		if reservedPlayerKeys[k] {
			continue
		}
		out[k] = v
	}

	var err error
	if out["id"], err = json.Marshal(p.ID); err != nil {
		return nil, err
	}
	if out["name"], err = json.Marshal(p.Name); err != nil {
		return nil, err
	}
	if out["lastSeen"], err = json.Marshal(p.LastSeen); err != nil {
		return nil, err
	}

	return json.Marshal(out)
}

// UnmarshalJSON 从扁平 JSON 还原玩家
func (p *Player) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["id"]; ok && !isJSONNull(v) {
		if err := json.Unmarshal(v, &p.ID); err != nil {
			return err
		}
	}
	if v, ok := raw["name"]; ok && !isJSONNull(v) {
		if err := json.Unmarshal(v, &p.Name); err != nil {
			return err
		}
	}
	if v, ok := raw["lastSeen"]; ok && !isJSONNull(v) {
		if err := json.Unmarshal(v, &p.LastSeen); err != nil {
			return err
		}
	}

	p.Extra = make(map[string]json.RawMessage)
	for k, v := range raw {
		if reservedPlayerKeys[k] {
			continue
		}
		p.Extra[k] = v
	}

	return nil
}

func isJSONNull(v json.RawMessage) bool {
	return len(v) == 4 && string(v) == "null"
}

package model

import (
	"encoding/json"
	"testing"
)

// TestNewDefaultRoom 测试默认房间记录
func TestNewDefaultRoom(t *testing.T) {
	now := NowMillis()
	room := NewDefaultRoom("r1", 0, now)

	if room.RoomID != "r1" {
		t.Errorf("期望 RoomID = r1, 实际 = %s", room.RoomID)
	}
	if len(room.Players) != 0 {
		t.Errorf("期望空玩家列表, 实际 = %d", len(room.Players))
	}
	if room.HostID != "" {
		t.Errorf("期望无房主, 实际 = %s", room.HostID)
	}
	if room.Phase != PhaseWaiting {
		t.Errorf("期望 phase = waiting, 实际 = %s", room.Phase)
	}
	if room.MaxPlayers != DefaultMaxPlayers {
		t.Errorf("期望 maxPlayers = %d, 实际 = %d", DefaultMaxPlayers, room.MaxPlayers)
	}
	if room.CreatedAt != now || room.LastUpdate != now {
		t.Error("期望时间戳等于创建时间")
	}

	// 客户端期望的初始游戏载荷
	for _, key := range []string{"round", "bunkerSlots", "votingResults", "auditLog", "scenario"} {
		if _, ok := room.Game[key]; !ok {
			t.Errorf("期望游戏载荷包含 %s", key)
		}
	}
}

// TestRoomMarshalFlat 测试扁平序列化
func TestRoomMarshalFlat(t *testing.T) {
	room := NewDefaultRoom("r1", 8, 1000)
	room.Players = []Player{{ID: "p1", Name: "Ann", LastSeen: 1000}}
	room.HostID = "p1"

	data, err := json.Marshal(room)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// 协调器字段与游戏载荷平铺在同一层
	if string(raw["roomId"]) != `"r1"` {
		t.Errorf("期望 roomId = \"r1\", 实际 = %s", raw["roomId"])
	}
	if string(raw["hostId"]) != `"p1"` {
		t.Errorf("期望 hostId = \"p1\", 实际 = %s", raw["hostId"])
	}
	if string(raw["round"]) != `1` {
		t.Errorf("期望 round = 1, 实际 = %s", raw["round"])
	}
	if string(raw["bunkerSlots"]) != `2` {
		t.Errorf("期望 bunkerSlots = 2, 实际 = %s", raw["bunkerSlots"])
	}
	if _, ok := raw["Game"]; ok {
		t.Error("游戏载荷不应出现嵌套的 Game 键")
	}
}

// TestRoomMarshalNullHost 测试空房主序列化为 null
func TestRoomMarshalNullHost(t *testing.T) {
	room := NewDefaultRoom("r1", 8, 1000)

	data, err := json.Marshal(room)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if string(raw["hostId"]) != "null" {
		t.Errorf("期望 hostId = null, 实际 = %s", raw["hostId"])
	}
}

// TestRoomRoundTripKeepsGamePayload 测试游戏载荷原样透传
func TestRoomRoundTripKeepsGamePayload(t *testing.T) {
	input := []byte(`{
		"roomId": "r1",
		"players": [{"id": "p1", "name": "Ann", "lastSeen": 5, "role": "doctor", "revealed": true}],
		"hostId": "p1",
		"phase": "voting",
		"maxPlayers": 6,
		"lastUpdate": 100,
		"createdAt": 50,
		"round": 3,
		"scenario": {"title": "flood"},
		"votingResults": {"p1": 2}
	}`)

	var room Room
	if err := json.Unmarshal(input, &room); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if room.Phase != "voting" {
		t.Errorf("期望 phase = voting, 实际 = %s", room.Phase)
	}
	if string(room.Game["round"]) != "3" {
		t.Errorf("期望 round = 3, 实际 = %s", room.Game["round"])
	}
	if string(room.Players[0].Extra["role"]) != `"doctor"` {
		t.Errorf("期望玩家 role 透传, 实际 = %s", room.Players[0].Extra["role"])
	}

	// 往返后游戏字段不丢失
	data, err := json.Marshal(&room)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := raw["scenario"]; !ok {
		t.Error("期望 scenario 在往返后保留")
	}

	var players []map[string]json.RawMessage
	if err := json.Unmarshal(raw["players"], &players); err != nil {
		t.Fatalf("players unmarshal failed: %v", err)
	}
	if string(players[0]["revealed"]) != "true" {
		t.Errorf("期望玩家 revealed 在往返后保留, 实际 = %s", players[0]["revealed"])
	}
}

// TestFindPlayerAndName 测试查找与名字占用
func TestFindPlayerAndName(t *testing.T) {
	room := NewDefaultRoom("r1", 8, 1000)
	room.Players = []Player{
		{ID: "p1", Name: "Ann"},
		{ID: "p2", Name: "Bob"},
	}

	if _, idx := room.FindPlayer("p2"); idx != 1 {
		t.Errorf("期望索引 1, 实际 = %d", idx)
	}
	if _, idx := room.FindPlayer("p9"); idx != -1 {
		t.Errorf("期望索引 -1, 实际 = %d", idx)
	}
	if !room.HasPlayerNamed("Ann") {
		t.Error("期望 Ann 已被占用")
	}
	// 名字区分大小写
	if room.HasPlayerNamed("ann") {
		t.Error("期望 ann 未被占用")
	}
}

// TestRoomClone 测试快照深拷贝
func TestRoomClone(t *testing.T) {
	room := NewDefaultRoom("r1", 8, 1000)
	room.Players = []Player{{ID: "p1", Name: "Ann"}}

	clone := room.Clone()
	clone.Players[0].Name = "Changed"
	clone.Game["round"] = json.RawMessage(`9`)

	if room.Players[0].Name != "Ann" {
		t.Error("克隆修改不应影响原记录的玩家")
	}
	if string(room.Game["round"]) != "1" {
		t.Error("克隆修改不应影响原记录的游戏载荷")
	}
}

package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sudooom.bunker.lobby/internal/model"
	"sudooom.bunker.lobby/internal/storage"
)

// TestGetOrCreateUnknownRoom 测试未知房间的隐式创建
func TestGetOrCreateUnknownRoom(t *testing.T) {
	svc, store, events := newTestService(Options{})
	ctx := context.Background()

	room, err := svc.GetOrCreate(ctx, "r1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if room.RoomID != "r1" {
		t.Errorf("期望 roomId = r1, 实际 = %s", room.RoomID)
	}
	if len(room.Players) != 0 || room.HostID != "" {
		t.Error("期望空房间无玩家无房主")
	}
	if room.Phase != model.PhaseWaiting {
		t.Errorf("期望 phase = waiting, 实际 = %s", room.Phase)
	}
	if room.MaxPlayers != 8 {
		t.Errorf("期望 maxPlayers = 8, 实际 = %d", room.MaxPlayers)
	}

	// 默认记录已持久化
	if _, err := store.Get(ctx, "bunker:room:r1"); err != nil {
		t.Errorf("期望记录已写入存储, 实际 = %v", err)
	}

	found := false
	for _, e := range events.all() {
		if e == "room.created" {
			found = true
		}
	}
	if !found {
		t.Error("期望发布 room.created 事件")
	}
}

// TestGetOrCreateExisting 测试已有房间不被覆盖
func TestGetOrCreateExisting(t *testing.T) {
	svc, _, _ := newTestService(Options{})
	ctx := context.Background()

	if _, _, err := svc.Join(ctx, "r1", model.Player{ID: "p1", Name: "Ann"}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	room, err := svc.GetOrCreate(ctx, "r1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if len(room.Players) != 1 {
		t.Errorf("期望已有玩家保留, 实际 = %d", len(room.Players))
	}
}

// TestGetOrCreateConcurrentFirstAccess 测试并发首次访问收敛到同一记录
func TestGetOrCreateConcurrentFirstAccess(t *testing.T) {
	svc, store, _ := newTestService(Options{})
	ctx := context.Background()

	const goroutines = 20
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.GetOrCreate(ctx, "r1"); err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
			}
		}()
	}
	wg.Wait()

	keys, _ := store.ListKeys(ctx, "bunker:room:")
	if len(keys) != 1 {
		t.Errorf("期望恰好一条记录, 实际 = %d", len(keys))
	}
}

// TestGetOrCreateMissingRoomID 测试缺失房间 ID
func TestGetOrCreateMissingRoomID(t *testing.T) {
	svc, _, _ := newTestService(Options{})

	if _, err := svc.GetOrCreate(context.Background(), ""); !errors.Is(err, ErrRoomIDRequired) {
		t.Errorf("期望 ErrRoomIDRequired, 实际 = %v", err)
	}
}

// TestCreateRoomAlwaysResets 测试显式建房总是重置
func TestCreateRoomAlwaysResets(t *testing.T) {
	svc, _, _ := newTestService(Options{})
	ctx := context.Background()

	if _, _, err := svc.Join(ctx, "r1", model.Player{ID: "p1", Name: "Ann"}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	room, err := svc.CreateRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if len(room.Players) != 0 || room.HostID != "" {
		t.Error("期望显式建房覆盖已有房间")
	}
}

// TestDeleteRoomIdempotent 测试删房幂等
func TestDeleteRoomIdempotent(t *testing.T) {
	svc, _, _ := newTestService(Options{})
	ctx := context.Background()

	if _, err := svc.GetOrCreate(ctx, "r1"); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteRoom(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRoom failed: %v", err)
	}
	// 再删一次不是错误
	if err := svc.DeleteRoom(ctx, "r1"); err != nil {
		t.Errorf("期望重复删房无错误, 实际 = %v", err)
	}
}

// TestDeleteThenGetOrCreateReturnsFresh 测试删除后重新取得默认房间
func TestDeleteThenGetOrCreateReturnsFresh(t *testing.T) {
	svc, _, _ := newTestService(Options{})
	ctx := context.Background()

	if _, _, err := svc.Join(ctx, "r1", model.Player{ID: "p1", Name: "Ann"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteRoom(ctx, "r1"); err != nil {
		t.Fatal(err)
	}

	room, err := svc.GetOrCreate(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(room.Players) != 0 {
		t.Errorf("期望全新默认房间, 实际玩家数 = %d", len(room.Players))
	}
}

// TestExpireSweep 测试过期清扫
func TestExpireSweep(t *testing.T) {
	svc, store, _ := newTestService(Options{MaxAge: time.Hour})
	ctx := context.Background()

	// 一条新鲜记录
	if _, err := svc.GetOrCreate(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}

	// 一条闲置超过 MaxAge 的记录，直接写入存储构造
	now := model.NowMillis()
	stale := model.NewDefaultRoom("stale", 8, now-2*time.Hour.Milliseconds())
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "bunker:room:stale", data, 0); err != nil {
		t.Fatal(err)
	}

	removed, err := svc.Expire(ctx, now)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("期望清除 1 个房间, 实际 = %d", removed)
	}

	if _, err := store.Get(ctx, "bunker:room:stale"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("期望过期房间被删除")
	}
	if _, err := store.Get(ctx, "bunker:room:fresh"); err != nil {
		t.Errorf("期望新鲜房间保留, 实际 = %v", err)
	}
}

// TestExpireManyRooms 测试清扫只清过期的
func TestExpireManyRooms(t *testing.T) {
	svc, store, _ := newTestService(Options{MaxAge: time.Hour})
	ctx := context.Background()
	now := model.NowMillis()

	for i := 0; i < 5; i++ {
		room := model.NewDefaultRoom(fmt.Sprintf("stale%d", i), 8, now-3*time.Hour.Milliseconds())
		data, _ := json.Marshal(room)
		store.Put(ctx, "bunker:room:"+room.RoomID, data, 0)
	}
	if _, err := svc.GetOrCreate(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}

	removed, err := svc.Expire(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 5 {
		t.Errorf("期望清除 5 个房间, 实际 = %d", removed)
	}

	keys, _ := store.ListKeys(ctx, "bunker:room:")
	if len(keys) != 1 {
		t.Errorf("期望剩余 1 个房间, 实际 = %d", len(keys))
	}
}

package lobby

import "errors"

// 房间协调错误定义
// 以显式返回值传播，由调用方映射为传输层状态码。

var (
	// ErrRoomIDRequired 缺少房间 ID
	ErrRoomIDRequired = errors.New("ROOM_ID_REQUIRED")

	// ErrInvalidPlayer 玩家信息缺失或不完整
	ErrInvalidPlayer = errors.New("INVALID_PLAYER")

	// ErrRoomFull 房间已满
	ErrRoomFull = errors.New("ROOM_FULL")

	// ErrNameTaken 名字已被在座玩家占用
	ErrNameTaken = errors.New("NAME_TAKEN")

	// ErrRoomBusy 房间正在处理其他操作，重试后仍未取得锁
	ErrRoomBusy = errors.New("ROOM_BUSY")
)

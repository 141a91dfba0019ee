package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sudooom.bunker.lobby/internal/lobby"
	"sudooom.bunker.lobby/internal/model"
)

// GameHandler 游戏房间请求处理器
// 薄薄的一层：解析 roomId 与 action，每个请求恰好调用协调器的一个
// 操作，并把结果映射为与原接口一致的响应。
type GameHandler struct {
	svc    *lobby.Service
	logger *slog.Logger
}

// NewGameHandler 创建请求处理器
func NewGameHandler(svc *lobby.Service) *GameHandler {
	return &GameHandler{
		svc:    svc,
		logger: slog.Default().With("component", "GameHandler"),
	}
}

// apiRequest 请求体
// player 和 gameState 按原样透传给协调器。
type apiRequest struct {
	RoomID    string                     `json:"roomId"`
	Action    string                     `json:"action"`
	Player    *model.Player              `json:"player"`
	GameState map[string]json.RawMessage `json:"gameState"`
	PlayerID  string                     `json:"playerId"`
}

// HandleGet GET：房间目录或单个房间状态
func (h *GameHandler) HandleGet(c *gin.Context) {
	if c.Query("action") == "listRooms" {
		rooms := h.svc.ListJoinable(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
		return
	}

	roomID := c.Query("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room ID is required"})
		return
	}

	room, err := h.svc.GetOrCreate(c.Request.Context(), roomID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// HandlePost POST：join / createRoom
func (h *GameHandler) HandlePost(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}

	switch {
	case req.Action == "join" && req.Player != nil:
		room, outcome, err := h.svc.Join(c.Request.Context(), req.RoomID, *req.Player)
		if err != nil {
			h.writeError(c, err)
			return
		}
		// 老客户端只看状态体，新客户端用响应头区分「加入」与「回来」
		c.Header("X-Join-Outcome", string(outcome))
		c.JSON(http.StatusOK, room)

	case req.Action == "createRoom":
		room, err := h.svc.CreateRoom(c.Request.Context(), req.RoomID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, room)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	}
}

// HandlePut PUT：合并客户端提交的状态
func (h *GameHandler) HandlePut(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}

	if req.Action != "update" || req.GameState == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update request"})
		return
	}

	room, err := h.svc.Update(c.Request.Context(), req.RoomID, req.GameState)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// HandleDelete DELETE：leave / deleteRoom
func (h *GameHandler) HandleDelete(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}

	switch {
	case req.Action == "leave" && req.PlayerID != "":
		room, deleted, err := h.svc.Leave(c.Request.Context(), req.RoomID, req.PlayerID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if deleted {
			c.JSON(http.StatusOK, gin.H{"deleted": true})
			return
		}
		c.JSON(http.StatusOK, room)

	case req.Action == "deleteRoom":
		if err := h.svc.DeleteRoom(c.Request.Context(), req.RoomID); err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid delete request"})
	}
}

// parseRequest 解析请求体并补齐 roomId（query 优先于 body）
// 校验失败时已写出响应，返回 ok=false。
func (h *GameHandler) parseRequest(c *gin.Context) (*apiRequest, bool) {
	var req apiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return nil, false
	}

	if roomID := c.Query("roomId"); roomID != "" {
		req.RoomID = roomID
	}
	if req.RoomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room ID is required"})
		return nil, false
	}
	return &req, true
}

// writeError 把协调器错误映射为传输层响应
// 文案与原接口保持一致，客户端按字符串匹配展示。
func (h *GameHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lobby.ErrRoomFull):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Lobby is full!"})
	case errors.Is(err, lobby.ErrNameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name already taken!"})
	case errors.Is(err, lobby.ErrRoomIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room ID is required"})
	case errors.Is(err, lobby.ErrInvalidPlayer):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	case errors.Is(err, lobby.ErrRoomBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Room is busy, please retry"})
	default:
		h.logger.Error("Request failed", "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}

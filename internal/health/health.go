package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Status 健康状态
// 未配置的依赖报告为 skipped。
type Status struct {
	NATS     string `json:"nats"`
	Redis    string `json:"redis"`
	Database string `json:"database"`
}

const (
	stateConnected    = "connected"
	stateDisconnected = "disconnected"
	stateSkipped      = "skipped"
)

// Checker 健康检查器
// 只探测实际配置的后端，nil 依赖跳过。
type Checker struct {
	nc          *nats.Conn
	redisClient *redis.Client
	db          *pgxpool.Pool
}

// NewChecker 创建健康检查器
func NewChecker(nc *nats.Conn, redisClient *redis.Client, db *pgxpool.Pool) *Checker {
	return &Checker{
		nc:          nc,
		redisClient: redisClient,
		db:          db,
	}
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		NATS:     stateSkipped,
		Redis:    stateSkipped,
		Database: stateSkipped,
	}

	if h.nc != nil {
		if h.nc.IsConnected() {
			status.NATS = stateConnected
		} else {
			status.NATS = stateDisconnected
		}
	}

	if h.redisClient != nil {
		redisCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := h.redisClient.Ping(redisCtx).Err(); err == nil {
			status.Redis = stateConnected
		} else {
			status.Redis = stateDisconnected
		}
	}

	if h.db != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := h.db.Ping(dbCtx); err == nil {
			status.Database = stateConnected
		} else {
			status.Database = stateDisconnected
		}
	}

	return status
}

// IsHealthy 检查是否健康（所有已配置的依赖均在线）
func (h *Checker) IsHealthy(ctx context.Context) bool {
	status := h.Check(ctx)
	return status.NATS != stateDisconnected &&
		status.Redis != stateDisconnected &&
		status.Database != stateDisconnected
}

// ServeHTTP HTTP 健康检查端点
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status.NATS == stateDisconnected || status.Redis == stateDisconnected || status.Database == stateDisconnected {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(status)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sudooom.bunker.lobby/internal/config"
	"sudooom.bunker.lobby/internal/handler"
	"sudooom.bunker.lobby/internal/health"
	"sudooom.bunker.lobby/internal/lobby"
	"sudooom.bunker.lobby/internal/lock"
	lobbyNats "sudooom.bunker.lobby/internal/nats"
	"sudooom.bunker.lobby/internal/storage"
)

func main() {
	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// 加载配置
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 按配置选择存储后端与房间锁
	var store storage.Store
	var locker lock.Locker
	var redisClient *redis.Client
	var db *pgxpool.Pool

	switch cfg.Storage.Backend {
	case "redis":
		redisClient = connectRedis(cfg.Storage.Redis)
		defer redisClient.Close()
		store = storage.NewRedisStore(redisClient)
		locker = lock.NewRedisLocker(redisClient)
		logger.Info("Connected to Redis", "host", cfg.Storage.Redis.Host)

	case "postgres":
		db, err = connectDatabase(ctx, cfg.Storage.Postgres)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pgStore := storage.NewPostgresStore(db)
		if err := pgStore.InitSchema(ctx); err != nil {
			logger.Error("Failed to init database schema", "error", err)
			os.Exit(1)
		}
		store = pgStore
		// 进程内锁：postgres 后端按单实例部署运行
		locker = lock.NewLocalLocker()
		logger.Info("Connected to PostgreSQL", "host", cfg.Storage.Postgres.Host)

	case "memory":
		store = storage.NewMemoryStore()
		locker = lock.NewLocalLocker()
		logger.Warn("Using in-memory storage, all room state is lost on restart")

	default:
		logger.Error("Unknown storage backend", "backend", cfg.Storage.Backend)
		os.Exit(1)
	}

	// 连接 NATS（可选）
	var events lobby.EventPublisher
	var natsConn *lobbyNats.Client
	if cfg.NATS.Enabled {
		natsConn, err = lobbyNats.NewClient(cfg.NATS)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsConn.Close()
		events = lobbyNats.NewRoomEventPublisher(natsConn.Conn())
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}

	// 初始化协调器
	svc := lobby.NewService(store, locker, events, lobby.Options{
		KeyPrefix:         cfg.Room.KeyPrefix,
		RoomTTL:           cfg.Room.TTL,
		MaxAge:            cfg.Room.MaxAge,
		DefaultMaxPlayers: cfg.Room.DefaultMaxPlayers,
	})

	// 无原生 TTL 的后端启动过期清扫
	sweepInterval := cfg.Room.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Minute
	}
	svc.StartSweeper(ctx, sweepInterval)

	// 启动健康检查 HTTP 服务
	healthChecker := newHealthChecker(natsConn, redisClient, db)
	go startHealthServer(healthChecker, cfg.Server.HealthAddr, logger)

	// 启动 API 服务
	router := handler.SetupRouter(handler.NewGameHandler(svc))
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("Lobby service started", "name", cfg.App.Name, "addr", cfg.Server.Addr, "backend", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server failed", "error", err)
			os.Exit(1)
		}
	}()

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("Lobby service stopped")
}

// newHealthChecker 按已配置的依赖创建健康检查器
func newHealthChecker(natsConn *lobbyNats.Client, redisClient *redis.Client, db *pgxpool.Pool) *health.Checker {
	if natsConn != nil {
		return health.NewChecker(natsConn.Conn(), redisClient, db)
	}
	return health.NewChecker(nil, redisClient, db)
}

// startHealthServer 启动健康检查 HTTP 服务
func startHealthServer(healthChecker *health.Checker, addr string, logger *slog.Logger) {
	if addr == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.Handle("/health", healthChecker)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if healthChecker.IsHealthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not Ready"))
		}
	})

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logger.Info("Health check server started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Health check server failed", "error", err)
	}
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"presencego/internal/broadcast"
	"presencego/internal/config"
	"presencego/internal/database/db_client"
	"presencego/internal/http/http_server"
	"presencego/internal/notifier"
	"presencego/internal/redis/redis_client"
	"presencego/internal/redis/watcher/connwatcher"
	"presencego/internal/services/presence"
	"presencego/internal/services/room"
	"presencego/internal/store"
	"presencego/internal/syncdb"
	"presencego/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration. A failure here is fatal: no connections are
	// served with required resources unresolved.
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (connection store + event bus)
	redisClient, err = redis_client.NewRedisClient(cfg.RedisPresenceHost, int(cfg.RedisPresencePort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client (room directory)
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. Room directory, with the default room registered up front.
	roomService := room.NewRoomService(pgDb)
	if err := roomService.EnsureRoom(ctx, cfg.DefaultRoomKey); err != nil {
		Log.Fatal("ensure-default-room", zap.Error(err))
	}

	// 6. Connection registry: store + notifier
	connStore := store.New(redisClient, cfg.ConnTTL)
	presenceSvc := presence.NewPresenceService(connStore, notifier.NewRedisNotifier(redisClient))

	// 7. WebSockets hub + membership-changed fan-out
	hub := ws.NewHub()
	fanout := broadcast.NewFanout(hub, presenceSvc)
	go broadcast.Subscribe(ctx, redisClient, fanout)

	// 8. Background: lease reaper + occupancy mirror
	go connwatcher.Run(ctx, redisClient, roomService, presenceSvc, cfg.ReapInterval)
	syncdb.Run(ctx, redisClient, roomService, cfg.MirrorInterval)

	// 9. Initialize the WS server
	wsSrv := ws.NewWsServer(hub, presenceSvc, cfg.DefaultRoomKey)

	// 10. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, roomService, presenceSvc)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/api"
	"github.com/qs3c/tender_rag_server/internal/api/handler"
	"github.com/qs3c/tender_rag_server/internal/database"
	"github.com/qs3c/tender_rag_server/internal/pkg/logger"
	"github.com/qs3c/tender_rag_server/internal/pkg/pubsub"
	"github.com/qs3c/tender_rag_server/internal/pkg/storage"
	"github.com/qs3c/tender_rag_server/internal/pkg/ws"
	"github.com/qs3c/tender_rag_server/internal/service"
)

var configPath = flag.String("config", "config.yaml", "Path to config file")

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup(cfg.Log)

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// 初始化任务存储与队列
	store, err := database.NewJobStore(cfg, rdb)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to init job store")
	}
	broker, err := database.NewBroker(&cfg.Queue, rdb)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Queue.Driver).Msg("Failed to init job queue")
	}
	defer broker.Close()

	// 初始化对象存储（可选）
	mirror, err := storage.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to init object storage, downloads use local files only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// WebSocket Hub，进度由 worker 经 Redis 频道推送
	wsHub := ws.NewHub()
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
			if !wsHub.IsWatched(msg.JobID) {
				return
			}
			if err := wsHub.SendToJob(msg.JobID, &ws.Message{Type: msg.Type, Data: msg}); err != nil {
				log.Warn().Err(err).Str("job_id", msg.JobID).Msg("Failed to forward progress")
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Progress subscription stopped")
		}
	}()

	jobService := service.NewJobService(store, broker, mirror)

	router := api.NewRouter(
		handler.NewJobHandler(jobService, cfg),
		handler.NewWebSocketHandler(wsHub, jobService, cfg.JWT.Secret),
		rdb,
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Int("ws_connections", wsHub.ConnectionCount()).Msg("Server stopped")
}

package main

import (
	"context"
	"flag"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/answer"
	"github.com/qs3c/tender_rag_server/internal/database"
	"github.com/qs3c/tender_rag_server/internal/pkg/cron"
	"github.com/qs3c/tender_rag_server/internal/pkg/gemini"
	"github.com/qs3c/tender_rag_server/internal/pkg/logger"
	"github.com/qs3c/tender_rag_server/internal/pkg/pubsub"
	"github.com/qs3c/tender_rag_server/internal/pkg/queue"
	"github.com/qs3c/tender_rag_server/internal/pkg/ragflow"
	"github.com/qs3c/tender_rag_server/internal/pkg/storage"
	"github.com/qs3c/tender_rag_server/internal/worker"
)

var configPath = flag.String("config", "config.yaml", "Path to config file")

const popTimeout = 5 * time.Second

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

	store, err := database.NewJobStore(cfg, rdb)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to init job store")
	}
	broker, err := database.NewBroker(&cfg.Queue, rdb)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Queue.Driver).Msg("Failed to init job queue")
	}
	defer broker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 兜底模型（可选）
	var fallback answer.Answerer
	if client, err := gemini.NewClient(ctx, &cfg.Fallback, ""); err != nil {
		log.Warn().Err(err).Msg("Fallback model disabled")
	} else {
		fallback = client
	}

	// 初始化对象存储（可选）
	mirror, err := storage.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to init object storage, reports stay local only")
	}

	processor := worker.NewProcessor(
		store,
		ragflow.NewClient(&cfg.RAGFlow),
		fallback,
		pubsub.NewPublisher(rdb),
		mirror,
		cfg,
	)

	// 镜像失败的报告后台补传
	if mirror != nil {
		reuploader := worker.NewReuploader(rdb, mirror)
		processor.SetMirrorRetry(reuploader)
		go reuploader.Start(ctx)
	}

	// 输出目录定时清理（可选）
	if cfg.Cleanup.Schedule != "" {
		cleaner := cron.NewService(cfg.Output.Dir, cfg.Cleanup.RetentionDays)
		if err := cleaner.Start(cfg.Cleanup.Schedule); err != nil {
			log.Fatal().Err(err).Msg("Failed to start cleanup schedule")
		}
		defer cleaner.Stop()
	}

	log.Info().Int("max_workers", cfg.Queue.MaxWorkers).Str("queue", cfg.Queue.Name).Msg("Worker started")

	var wg sync.WaitGroup
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			run(ctx, workerID, broker, processor)
		}(i)
	}

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, waiting for running jobs")
	wg.Wait()
	log.Info().Msg("Worker shutdown complete")
}

// run 循环取任务；已开始的任务不随关闭信号中断
func run(ctx context.Context, workerID int, broker queue.Broker, processor *worker.Processor) {
	for {
		if ctx.Err() != nil {
			log.Info().Int("worker", workerID).Msg("Worker shutting down")
			return
		}

		msg, err := broker.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Int("worker", workerID).Msg("Failed to pop job")
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue // 超时，继续等待
		}

		log.Info().Int("worker", workerID).Str("job_id", msg.JobID).Msg("Processing job")
		if err := processor.Process(context.WithoutCancel(ctx), msg); err != nil {
			log.Error().Err(err).Int("worker", workerID).Str("job_id", msg.JobID).Msg("Job failed")
		}
	}
}

package database

import (
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/pkg/queue"
	"github.com/qs3c/tender_rag_server/internal/repository"
)

// NewJobStore 按 store.driver 构造任务存储。redis 驱动复用传入的客户端
func NewJobStore(cfg *config.Config, rdb *redis.Client) (repository.JobStore, error) {
	switch cfg.Store.Driver {
	case "", "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis store requires a redis client")
		}
		return repository.NewRedisJobStore(rdb, cfg.Store.KeyPrefix, cfg.Store.ResultTTL), nil

	case "mysql", "sqlite":
		open := NewMySQL
		if cfg.Store.Driver == "sqlite" {
			open = NewSQLite
		}
		db, err := open(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect %s: %w", cfg.Store.Driver, err)
		}
		repo := repository.NewJobRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate job table: %w", err)
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// NewBroker 按 queue.driver 构造任务队列
func NewBroker(cfg *config.QueueConfig, rdb *redis.Client) (queue.Broker, error) {
	switch cfg.Driver {
	case "", "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis queue requires a redis client")
		}
		return queue.NewQueue(rdb, cfg.Name), nil

	case "amqp":
		return queue.NewAMQPQueue(cfg.AMQPURL, cfg.Name, cfg.MaxWorkers)

	default:
		return nil, fmt.Errorf("unknown queue driver: %s", cfg.Driver)
	}
}

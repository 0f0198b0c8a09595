package worker

import (
	"context"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/internal/pkg/storage"
	"github.com/qs3c/tender_rag_server/internal/report"
)

// PendingMirrorKey 镜像上传失败、等待重传的本地报告路径
const PendingMirrorKey = "tender:mirror:pending"

const reuploadInterval = 5 * time.Minute

// Reuploader 后台重传本地报告到对象存储
type Reuploader struct {
	client *redis.Client
	mirror storage.Mirror
}

// NewReuploader 创建重传器
func NewReuploader(client *redis.Client, mirror storage.Mirror) *Reuploader {
	return &Reuploader{
		client: client,
		mirror: mirror,
	}
}

// Add 记录一份待重传的报告
func (r *Reuploader) Add(ctx context.Context, path string) error {
	return r.client.SAdd(ctx, PendingMirrorKey, path).Err()
}

// Start 启动后台重传循环，直到 ctx 结束
func (r *Reuploader) Start(ctx context.Context) {
	// 启动后先执行一次
	r.run(ctx)

	ticker := time.NewTicker(reuploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Reuploader stopped")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// run 处理一轮，返回成功上传的数量
func (r *Reuploader) run(ctx context.Context) int {
	paths, err := r.client.SMembers(ctx, PendingMirrorKey).Result()
	if err != nil {
		log.Error().Err(err).Msg("Reuploader: failed to list pending reports")
		return 0
	}
	if len(paths) == 0 {
		return 0
	}

	log.Info().Int("pending", len(paths)).Msg("Reuploader: re-uploading reports")

	uploaded := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				// 已被清理，不再重试
				r.client.SRem(ctx, PendingMirrorKey, path)
				continue
			}
			log.Warn().Err(err).Str("path", path).Msg("Reuploader: failed to read report")
			continue
		}

		key := storage.ObjectKey(path)
		if _, err := r.mirror.Put(ctx, key, data, report.ContentType); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Reuploader: upload failed")
			continue
		}

		if err := r.client.SRem(ctx, PendingMirrorKey, path).Err(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Reuploader: failed to clear pending entry")
		}
		uploaded++
		log.Info().Str("key", key).Msg("Reuploader: report mirrored")
	}

	return uploaded
}

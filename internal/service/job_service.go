package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/internal/model"
	"github.com/qs3c/tender_rag_server/internal/model/dto"
	"github.com/qs3c/tender_rag_server/internal/pkg/queue"
	"github.com/qs3c/tender_rag_server/internal/pkg/storage"
	"github.com/qs3c/tender_rag_server/internal/repository"
)

var (
	ErrJobNotComplete  = errors.New("Task is not completed or failed")
	ErrNoFileAvailable = errors.New("No file available for download")
	ErrArtifactMissing = errors.New("result file no longer exists")
	ErrInvalidJobID    = errors.New("invalid job id")
	ErrBrokerDown      = errors.New("broker unavailable")
)

// FailedJobMessage 状态接口对失败任务统一返回的信息
const FailedJobMessage = "Task failed"

type JobService struct {
	store  repository.JobStore
	broker queue.Broker
	mirror storage.Mirror
}

// NewJobService mirror 可为 nil
func NewJobService(store repository.JobStore, broker queue.Broker, mirror storage.Mirror) *JobService {
	return &JobService{
		store:  store,
		broker: broker,
		mirror: mirror,
	}
}

// Submit 登记任务并投递到队列，不等待执行
func (s *JobService) Submit(ctx context.Context, filename string, contents []byte) (*dto.SubmitJobResponse, error) {
	job := &model.JobRecord{
		ID:       uuid.NewString(),
		Status:   model.JobStatusStarted,
		Filename: filename,
	}
	if err := s.store.Save(ctx, job); err != nil {
		return nil, err
	}

	msg := &queue.JobMessage{
		JobID:    job.ID,
		Filename: filename,
		Contents: contents,
	}
	if err := s.broker.Push(ctx, msg); err != nil {
		if delErr := s.store.Delete(ctx, job.ID); delErr != nil {
			log.Warn().Err(delErr).Str("job_id", job.ID).Msg("Failed to remove unqueued job")
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Info().Str("job_id", job.ID).Str("filename", filename).Int("size", len(contents)).Msg("Job submitted")
	return &dto.SubmitJobResponse{JobID: job.ID}, nil
}

// GetStatus 查询任务状态
func (s *JobService) GetStatus(ctx context.Context, id string) (*dto.JobStatusResponse, error) {
	job, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &dto.JobStatusResponse{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Filename: job.Filename,
	}
	if resp.Status == "" {
		resp.Status = string(model.JobStatusUnknown)
	}
	if job.Status == model.JobStatusFailure {
		resp.Progress = 0
		resp.Error = FailedJobMessage
	}
	if job.ProcessedAt != nil {
		resp.ProcessedAt = job.ProcessedAt.Format(time.RFC3339)
	}

	return resp, nil
}

// OpenArtifact 打开已完成任务的报告；本地文件不在时从对象存储读取
func (s *JobService) OpenArtifact(ctx context.Context, id string) (io.ReadCloser, error) {
	job, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusSuccess {
		return nil, ErrJobNotComplete
	}
	if job.DownloadPath == "" {
		return nil, ErrNoFileAvailable
	}

	f, err := os.Open(job.DownloadPath)
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open result file: %w", err)
	}

	if s.mirror == nil {
		return nil, ErrArtifactMissing
	}

	// 完成时镜像失败的报告可能已被后台补传，key 由本地路径推出
	key := job.MirrorKey
	if key == "" {
		key = storage.ObjectKey(job.DownloadPath)
	}

	log.Info().Str("job_id", id).Str("key", key).Msg("Local result missing, reading mirror")
	rc, err := s.mirror.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("Failed to read mirrored result")
		return nil, ErrArtifactMissing
	}
	return rc, nil
}

// Health 检查存储与队列
func (s *JobService) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	if err := s.broker.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerDown, err)
	}
	return nil
}

func (s *JobService) get(ctx context.Context, id string) (*model.JobRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidJobID
	}
	return s.store.Get(ctx, id)
}

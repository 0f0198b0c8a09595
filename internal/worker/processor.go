package worker

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/answer"
	"github.com/qs3c/tender_rag_server/internal/model"
	"github.com/qs3c/tender_rag_server/internal/pkg/cron"
	"github.com/qs3c/tender_rag_server/internal/pkg/pubsub"
	"github.com/qs3c/tender_rag_server/internal/pkg/queue"
	"github.com/qs3c/tender_rag_server/internal/pkg/storage"
	"github.com/qs3c/tender_rag_server/internal/report"
	"github.com/qs3c/tender_rag_server/internal/repository"
)

// SessionOpener 每个任务开一个知识库会话
type SessionOpener interface {
	OpenSession(ctx context.Context) (answer.Answerer, error)
}

// ProgressPublisher 进度推送
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, msg *pubsub.ProgressMessage) error
}

// MirrorRetry 镜像上传失败后登记重传
type MirrorRetry interface {
	Add(ctx context.Context, path string) error
}

// 客户端看到的失败信息，详细原因只进日志和存储
const failureMessage = "Task failed"

// Processor 任务处理器
type Processor struct {
	store     repository.JobStore
	sessions  SessionOpener
	resolver  *answer.Resolver
	publisher ProgressPublisher
	mirror    storage.Mirror
	retry     MirrorRetry
	outputDir string
	layout    report.Layout
	now       func() time.Time
}

// NewProcessor fallback、publisher、mirror 均可为 nil
func NewProcessor(
	store repository.JobStore,
	sessions SessionOpener,
	fallback answer.Answerer,
	publisher ProgressPublisher,
	mirror storage.Mirror,
	cfg *config.Config,
) *Processor {
	return &Processor{
		store:    store,
		sessions: sessions,
		resolver: answer.NewResolver(fallback, answer.Options{
			QuestionHeader: cfg.RAGFlow.QuestionHeader,
			FallbackHeader: cfg.Fallback.QuestionHeader,
			FallbackModel:  cfg.Fallback.Model,
			NullSentinel:   cfg.Answer.NullSentinel,
		}),
		publisher: publisher,
		mirror:    mirror,
		outputDir: cfg.Output.Dir,
		layout: report.Layout{
			SheetName:      cfg.Output.SheetName,
			QColumnWidth:   float64(cfg.Output.QColumnWidth),
			AColumnWidth:   float64(cfg.Output.AColumnWidth),
			RefColumnWidth: float64(cfg.Output.RefColumnWidth),
		},
		now: time.Now,
	}
}

// SetMirrorRetry 设置镜像重传登记
func (p *Processor) SetMirrorRetry(retry MirrorRetry) {
	p.retry = retry
}

// Process 处理一个任务：读需求、逐行问答、写报告。
// 任何一步失败都会把任务置为 FAILURE 并返回 error
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) (err error) {
	job := &model.JobRecord{
		ID:       msg.JobID,
		Status:   model.JobStatusStarted,
		Filename: msg.Filename,
	}
	if existing, getErr := p.store.Get(ctx, msg.JobID); getErr == nil {
		job.CreatedAt = existing.CreatedAt
	}

	defer func() {
		if r := recover(); r != nil {
			err = p.fail(ctx, job, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := p.run(ctx, job, msg.Contents); err != nil {
		return p.fail(ctx, job, err)
	}
	return nil
}

func (p *Processor) run(ctx context.Context, job *model.JobRecord, contents []byte) error {
	log.Info().Str("job_id", job.ID).Str("filename", job.Filename).Msg("Job started")

	if err := p.save(ctx, job); err != nil {
		return err
	}
	p.publish(ctx, job, "")

	// Step 1: 按天分区的输出目录
	startedAt := p.now()
	dayDir := filepath.Join(p.outputDir, startedAt.Format(cron.DayLayout))
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Step 2: 读取需求列
	requirements, err := report.ReadRequirements(contents)
	if err != nil {
		return err
	}

	// Step 3: 打开知识库会话
	session, err := p.sessions.OpenSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base session: %w", err)
	}

	job.Status = model.JobStatusProcessing
	job.Progress = 1.0
	if err := p.save(ctx, job); err != nil {
		return err
	}
	p.publish(ctx, job, "")

	// Step 4: 逐行问答
	total := len(requirements)
	records := make([]answer.Record, 0, total)
	for i, requirement := range requirements {
		record, err := p.resolver.Resolve(ctx, session, requirement)
		if err != nil {
			return fmt.Errorf("requirement %d: %w", i+1, err)
		}
		records = append(records, record)

		job.Progress = lineProgress(job.Progress, i+1, total)
		if err := p.save(ctx, job); err != nil {
			return err
		}
		p.publish(ctx, job, fmt.Sprintf("已完成 %d/%d", i+1, total))

		log.Debug().Str("job_id", job.ID).Int("line", i+1).Int("total", total).Msg("Requirement answered")
	}

	// Step 5: 写报告
	data, err := report.Write(records, p.layout)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	outPath := filepath.Join(dayDir, OutputFilename(job.Filename, job.ID, startedAt))
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	if p.mirror != nil {
		key := storage.ObjectKey(outPath)
		if _, err := p.mirror.Put(ctx, key, data, report.ContentType); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Str("key", key).Msg("Failed to mirror report")
			if p.retry != nil {
				if err := p.retry.Add(ctx, outPath); err != nil {
					log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to schedule mirror retry")
				}
			}
		} else {
			job.MirrorKey = key
		}
	}

	// Step 6: 完成
	finishedAt := p.now()
	job.Status = model.JobStatusSuccess
	job.Progress = 100.0
	job.DownloadPath = outPath
	job.ProcessedAt = &finishedAt
	if err := p.save(ctx, job); err != nil {
		return err
	}
	p.publish(ctx, job, "")

	log.Info().Str("job_id", job.ID).Int("lines", total).Str("path", outPath).
		Dur("elapsed", finishedAt.Sub(startedAt)).Msg("Job completed")
	return nil
}

// fail 记录失败状态，返回带任务号的原始错误
func (p *Processor) fail(ctx context.Context, job *model.JobRecord, cause error) error {
	log.Error().Err(cause).Str("job_id", job.ID).Msg("Job failed")

	processedAt := p.now()
	job.Status = model.JobStatusFailure
	job.Progress = 0
	job.Error = cause.Error()
	job.DownloadPath = ""
	job.MirrorKey = ""
	job.ProcessedAt = &processedAt

	if err := p.save(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job failure")
	}
	p.publish(ctx, job, "")

	return fmt.Errorf("job %s: %w", job.ID, cause)
}

func (p *Processor) save(ctx context.Context, job *model.JobRecord) error {
	if err := p.store.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to save job state: %w", err)
	}
	return nil
}

func (p *Processor) publish(ctx context.Context, job *model.JobRecord, message string) {
	if p.publisher == nil {
		return
	}

	msg := &pubsub.ProgressMessage{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Filename: job.Filename,
		Message:  message,
	}
	if job.Status == model.JobStatusFailure {
		msg.Error = failureMessage
	}

	if err := p.publisher.PublishProgress(ctx, msg); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to publish progress")
	}
}

// lineProgress 完成 done/total 行后的进度，保留一位小数。
// 处理中进度限制在 [1.0, 99.9]，且不回退
func lineProgress(prev float64, done, total int) float64 {
	if total <= 0 {
		return prev
	}
	pct := math.Round(1000*float64(done)/float64(total)) / 10
	pct = math.Min(math.Max(pct, 1.0), 99.9)
	return math.Max(prev, pct)
}

// OutputFilename processed_<原文件名>_<job_id>_<HHMMSS>.xlsx
func OutputFilename(filename, jobID string, at time.Time) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "requirements"
	}
	return fmt.Sprintf("processed_%s_%s_%s.xlsx", stem, jobID, at.Format("150405"))
}

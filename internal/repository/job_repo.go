package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/qs3c/tender_rag_server/internal/model"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrStoreUnavailable = errors.New("job store unavailable")
)

// JobStore 任务状态存储。每次写入整体替换记录（单 key 原子写）
type JobStore interface {
	Save(ctx context.Context, job *model.JobRecord) error
	Get(ctx context.Context, id string) (*model.JobRecord, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// JobRepository 基于 gorm 的任务存储（mysql / sqlite）
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// AutoMigrate 建表
func (r *JobRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&model.JobRecord{})
}

func (r *JobRepository) Save(ctx context.Context, job *model.JobRecord) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*model.JobRecord, error) {
	var job model.JobRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, unavailable(err)
	}
	return &job, nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.JobRecord{}).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *JobRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return unavailable(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

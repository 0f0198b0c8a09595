package model

import (
	"time"
)

type JobStatus string

const (
	JobStatusStarted    JobStatus = "STARTED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusSuccess    JobStatus = "SUCCESS"
	JobStatusFailure    JobStatus = "FAILURE"
	JobStatusUnknown    JobStatus = "UNKNOWN"
)

// JobRecord 任务状态记录，由提交方创建、由唯一的执行者更新
type JobRecord struct {
	ID           string     `gorm:"primaryKey;size:36" json:"job_id"`
	Status       JobStatus  `gorm:"size:20;index" json:"status"`
	Progress     float64    `gorm:"not null;default:0" json:"progress"`
	Filename     string     `gorm:"size:255" json:"filename,omitempty"`
	DownloadPath string     `gorm:"size:1024" json:"download_path,omitempty"`
	MirrorKey    string     `gorm:"size:1024" json:"mirror_key,omitempty"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (JobRecord) TableName() string {
	return "tender_jobs"
}

// IsTerminal 是否已结束
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailure
}

package testutil

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/qs3c/tender_rag_server/internal/model"
)

// TestJob 构造任务记录（不落库）
func TestJob(status model.JobStatus, opts ...func(*model.JobRecord)) *model.JobRecord {
	job := &model.JobRecord{
		ID:       uuid.NewString(),
		Status:   status,
		Filename: "tender.xlsx",
	}

	for _, opt := range opts {
		opt(job)
	}

	return job
}

// WithProgress 设置进度
func WithProgress(progress float64) func(*model.JobRecord) {
	return func(j *model.JobRecord) {
		j.Progress = progress
	}
}

// WithDownloadPath 设置结果文件路径
func WithDownloadPath(path string) func(*model.JobRecord) {
	return func(j *model.JobRecord) {
		j.DownloadPath = path
	}
}

// WithError 设置错误信息
func WithError(msg string) func(*model.JobRecord) {
	return func(j *model.JobRecord) {
		j.Error = msg
	}
}

// WithProcessedAt 设置完成时间
func WithProcessedAt(at time.Time) func(*model.JobRecord) {
	return func(j *model.JobRecord) {
		j.ProcessedAt = &at
	}
}

// Workbook 生成单 sheet 的 xlsx，第一行为表头
func Workbook(t *testing.T, header []string, rows ...[]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	all := append([][]string{header}, rows...)
	for i, row := range all {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Failed to build cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

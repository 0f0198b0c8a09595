package cron

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
)

// DayLayout 输出目录按天分区的目录名格式
const DayLayout = "20060102"

// CleanupResult 一次清理的统计
type CleanupResult struct {
	Dirs  []string
	Bytes int64
}

// CleanupOutputDirs 删除 root 下早于 retentionDays 天的日期目录，dryRun 时只统计。
// 非日期命名的目录不动
func CleanupOutputDirs(root string, retentionDays int, now time.Time, dryRun bool) (CleanupResult, error) {
	var result CleanupResult

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("failed to read output dir %s: %w", root, err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	cutoff := today.AddDate(0, 0, -retentionDays)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		day, err := time.ParseInLocation(DayLayout, entry.Name(), now.Location())
		if err != nil || !day.Before(cutoff) {
			continue
		}

		dirPath := filepath.Join(root, entry.Name())
		size := dirSize(dirPath)

		if !dryRun {
			if err := os.RemoveAll(dirPath); err != nil {
				log.Error().Err(err).Str("dir", dirPath).Msg("Failed to remove output dir")
				continue
			}
		}

		result.Dirs = append(result.Dirs, dirPath)
		result.Bytes += size
	}

	return result, nil
}

func dirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

// Service worker 进程内的定时清理
type Service struct {
	cron          *cron.Cron
	outputDir     string
	retentionDays int
}

func NewService(outputDir string, retentionDays int) *Service {
	return &Service{
		cron:          cron.New(),
		outputDir:     outputDir,
		retentionDays: retentionDays,
	}
}

// Start 按 cron 表达式启动清理任务
func (s *Service) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.RunNow); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	log.Info().Str("schedule", schedule).Int("retention_days", s.retentionDays).Msg("Cleanup schedule started")
	return nil
}

// Stop 停止调度并等待正在执行的清理结束
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Cleanup schedule stopped")
}

// RunNow 立即执行一次清理
func (s *Service) RunNow() {
	result, err := CleanupOutputDirs(s.outputDir, s.retentionDays, time.Now(), false)
	if err != nil {
		log.Error().Err(err).Msg("Output cleanup failed")
		return
	}
	if len(result.Dirs) > 0 {
		log.Info().Int("dirs", len(result.Dirs)).Int64("bytes", result.Bytes).Msg("Output cleanup completed")
	}
}

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/pkg/cron"
	"github.com/qs3c/tender_rag_server/internal/pkg/logger"
)

var (
	dryRun    = flag.Bool("dry-run", true, "Dry run mode, don't actually delete files")
	retention = flag.Int("retention-days", -1, "Days of reports to keep (default: cleanup.retention_days)")
	outputDir = flag.String("dir", "", "Report directory (default: output.dir)")
)

func main() {
	flag.Parse()

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup(cfg.Log)

	dir := cfg.Output.Dir
	if *outputDir != "" {
		dir = *outputDir
	}
	days := cfg.Cleanup.RetentionDays
	if *retention >= 0 {
		days = *retention
	}

	log.Info().Str("dir", dir).Int("retention_days", days).Bool("dry_run", *dryRun).Msg("Starting cleanup task")

	result, err := cron.CleanupOutputDirs(dir, days, time.Now(), *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Cleanup failed")
	}

	for _, d := range result.Dirs {
		fmt.Printf("  - %s\n", d)
	}

	// 输出统计
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Cleanup Summary")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Expired day directories: %d\n", len(result.Dirs))
	fmt.Printf("Freed space: %s\n", formatSize(result.Bytes))
	if *dryRun {
		fmt.Println("\nDRY RUN MODE - No files were actually deleted")
		fmt.Println("   Run with -dry-run=false to actually delete files")
	}
	fmt.Println(strings.Repeat("=", 60))
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

package logger

import (
	"os"

	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/config"
)

// Setup 初始化全局 logger，format 为 json 时输出结构化日志
func Setup(cfg config.LogConfig) {
	logger := log.Logger{
		Level:      log.ParseLevel(cfg.Level),
		Caller:     1,
		TimeFormat: "2006-01-02 15:04:05",
	}

	if cfg.Format == "json" {
		logger.TimeFormat = ""
		logger.Writer = &log.IOWriter{Writer: os.Stdout}
	} else {
		logger.Writer = &log.ConsoleWriter{
			ColorOutput:    isTerminal(),
			QuoteString:    true,
			EndWithMessage: true,
		}
	}

	log.DefaultLogger = logger
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

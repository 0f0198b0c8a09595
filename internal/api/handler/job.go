package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/model/dto"
	"github.com/qs3c/tender_rag_server/internal/pkg/response"
	"github.com/qs3c/tender_rag_server/internal/report"
	"github.com/qs3c/tender_rag_server/internal/repository"
	"github.com/qs3c/tender_rag_server/internal/service"
)

type JobHandler struct {
	jobService *service.JobService
	cfg        *config.Config
}

func NewJobHandler(jobService *service.JobService, cfg *config.Config) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		cfg:        cfg,
	}
}

// Upload 上传需求表并创建任务
// POST /api/ragflowai/upload
func (h *JobHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.ParamError(c, "请上传文件")
		return
	}
	defer file.Close()

	maxSize := h.cfg.Upload.MaxSize
	if maxSize > 0 && header.Size > maxSize {
		response.ParamError(c, fmt.Sprintf("文件过大，最大支持 %dMB", maxSize/1024/1024))
		return
	}

	if !h.extensionAllowed(header.Filename) {
		response.ParamError(c, "仅支持 "+strings.Join(h.cfg.Upload.AllowedExtensions, ", ")+" 格式")
		return
	}

	contents, err := io.ReadAll(file)
	if err != nil {
		response.ServerError(c, "文件读取失败")
		return
	}

	resp, err := h.jobService.Submit(c.Request.Context(), filepath.Base(header.Filename), contents)
	if err != nil {
		log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to submit job")
		if errors.Is(err, repository.ErrStoreUnavailable) {
			response.UnavailableError(c, "")
			return
		}
		response.ServerError(c, "任务提交失败")
		return
	}

	response.Success(c, resp)
}

// Status 查询任务状态
// GET /api/ragflowai/status/:job_id
func (h *JobHandler) Status(c *gin.Context) {
	resp, err := h.jobService.GetStatus(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		lookupError(c, err)
		return
	}

	response.Success(c, resp)
}

// Download 下载报告
// GET /api/ragflowai/download/:job_id
func (h *JobHandler) Download(c *gin.Context) {
	jobID := c.Param("job_id")

	rc, err := h.jobService.OpenArtifact(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotComplete), errors.Is(err, service.ErrNoFileAvailable):
			response.NotReadyError(c, err.Error())
		case errors.Is(err, service.ErrArtifactMissing):
			response.NotFoundError(c, "Result file not found")
		default:
			lookupError(c, err)
		}
		return
	}
	defer rc.Close()

	log.Info().Str("job_id", jobID).Msg("Serving result file")
	c.DataFromReader(http.StatusOK, -1, report.ContentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%s", h.cfg.Output.DownloadName),
	})
}

// Heartbeat 检查存储与队列是否可用
// GET /api/ragflowai/heartbeat
func (h *JobHandler) Heartbeat(c *gin.Context) {
	if err := h.jobService.Health(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("Heartbeat failed")
		switch {
		case errors.Is(err, repository.ErrStoreUnavailable):
			response.UnavailableError(c, "Job store is not running")
		case errors.Is(err, service.ErrBrokerDown):
			response.UnavailableError(c, "Job queue is not running")
		default:
			response.UnavailableError(c, "")
		}
		return
	}

	response.Success(c, &dto.HealthResponse{Status: "ok"})
}

func (h *JobHandler) extensionAllowed(filename string) bool {
	if len(h.cfg.Upload.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range h.cfg.Upload.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// lookupError 查询任务时的错误映射
func lookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrJobNotFound), errors.Is(err, service.ErrInvalidJobID):
		response.NotFoundError(c, "Task not found")
	case errors.Is(err, repository.ErrStoreUnavailable):
		response.UnavailableError(c, "")
	default:
		log.Error().Err(err).Str("job_id", c.Param("job_id")).Msg("Job lookup failed")
		response.ServerError(c, "")
	}
}

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/api/handler"
	"github.com/qs3c/tender_rag_server/internal/api/middleware"
)

// RateLimitKeyPrefix 上传限流计数的 key 前缀
const RateLimitKeyPrefix = "tender:rl:"

type Router struct {
	jobHandler       *handler.JobHandler
	websocketHandler *handler.WebSocketHandler
	rdb              *redis.Client
	cfg              *config.Config
}

func NewRouter(
	jobHandler *handler.JobHandler,
	websocketHandler *handler.WebSocketHandler,
	rdb *redis.Client,
	cfg *config.Config,
) *Router {
	return &Router{
		jobHandler:       jobHandler,
		websocketHandler: websocketHandler,
		rdb:              rdb,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	switch r.cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS(r.cfg.CORS))

	if r.cfg.Upload.MaxSize > 0 {
		// multipart 解析时超出部分写临时文件
		engine.MaxMultipartMemory = r.cfg.Upload.MaxSize
	}

	api := engine.Group("/api/ragflowai")
	{
		// 公开接口
		api.GET("/heartbeat", r.jobHandler.Heartbeat)

		// WebSocket 在 handler 内用 query token 认证
		api.GET("/ws/:job_id", r.websocketHandler.Handle)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.POST("/upload",
				middleware.RateLimit(r.rdb, RateLimitKeyPrefix, r.cfg.RateLimit.Limit, r.cfg.RateLimit.Window),
				r.jobHandler.Upload)
			authenticated.GET("/status/:job_id", r.jobHandler.Status)
			authenticated.GET("/download/:job_id", r.jobHandler.Download)
		}
	}

	return engine
}

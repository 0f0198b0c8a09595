package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/internal/model"
	"github.com/qs3c/tender_rag_server/internal/pkg/jwt"
	"github.com/qs3c/tender_rag_server/internal/pkg/response"
	"github.com/qs3c/tender_rag_server/internal/pkg/ws"
	"github.com/qs3c/tender_rag_server/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 跨域由 CORS 配置控制
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WebSocketHandler struct {
	hub        *ws.Hub
	jobService *service.JobService
	jwtSecret  string
}

func NewWebSocketHandler(hub *ws.Hub, jobService *service.JobService, jwtSecret string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		jobService: jobService,
		jwtSecret:  jwtSecret,
	}
}

// Handle 订阅单个任务的进度
// GET /api/ragflowai/ws/:job_id?token=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	if h.jwtSecret != "" {
		if _, err := jwt.ParseToken(c.Query("token"), h.jwtSecret); err != nil {
			response.AuthError(c, "认证失败或已过期")
			return
		}
	}

	jobID := c.Param("job_id")
	ctx := c.Request.Context()
	if _, err := h.jobService.GetStatus(ctx, jobID); err != nil {
		lookupError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to upgrade connection")
		return
	}

	client := &ws.Client{
		JobID: jobID,
		Conn:  conn,
	}

	// 先注册再推当前状态，之后由 hub 转发进度
	var terminal bool
	err = h.hub.Subscribe(client, func() (*ws.Message, error) {
		status, err := h.jobService.GetStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		terminal = model.JobStatus(status.Status).IsTerminal()
		return &ws.Message{Type: "job_status", Data: status}, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to send job snapshot")
		conn.Close()
		return
	}

	// 已结束的任务不会再有进度
	if terminal {
		h.hub.Unregister(client)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
		conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		conn.Close()
		return
	}

	// 保持连接，读取消息（主要用于检测断开）
	go func() {
		defer func() {
			h.hub.Unregister(client)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess            = 0
	CodeParamError         = 1000
	CodeAuthFailed         = 1001
	CodeResourceNotFound   = 1003
	CodeJobNotReady        = 1006
	CodeRateLimited        = 1007
	CodeServerError        = 5000
	CodeServiceUnavailable = 5003
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:            "success",
	CodeParamError:         "参数错误",
	CodeAuthFailed:         "认证失败",
	CodeResourceNotFound:   "资源不存在",
	CodeJobNotReady:        "任务尚未完成",
	CodeRateLimited:        "请求过于频繁",
	CodeServerError:        "服务器内部错误",
	CodeServiceUnavailable: "服务暂不可用",
}

// 错误码对应的 HTTP 状态
var codeStatus = map[int]int{
	CodeSuccess:            http.StatusOK,
	CodeParamError:         http.StatusBadRequest,
	CodeAuthFailed:         http.StatusUnauthorized,
	CodeResourceNotFound:   http.StatusNotFound,
	CodeJobNotReady:        http.StatusBadRequest,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeServerError:        http.StatusInternalServerError,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// HTTPStatus 错误码对应的 HTTP 状态，未知错误码按 500 处理
func HTTPStatus(code int) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.AbortWithStatusJSON(HTTPStatus(code), Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// NotReadyError 任务未完成或没有可下载的文件
func NotReadyError(c *gin.Context, message string) {
	Error(c, CodeJobNotReady, message)
}

// RateLimitError 超出限流
func RateLimitError(c *gin.Context, message string) {
	Error(c, CodeRateLimited, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// UnavailableError 存储或队列不可达
func UnavailableError(c *gin.Context, message string) {
	Error(c, CodeServiceUnavailable, message)
}

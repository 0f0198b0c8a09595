package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/tender_rag_server/internal/pkg/jwt"
	"github.com/qs3c/tender_rag_server/internal/pkg/response"
)

const (
	ClientKey = "client"
)

// Auth Bearer token 认证，secret 为空时不校验
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSecret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "请提供认证信息")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "认证格式错误")
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			return
		}

		c.Set(ClientKey, claims.Client)
		c.Next()
	}
}

// GetClient 从上下文获取调用方
func GetClient(c *gin.Context) (string, bool) {
	client, exists := c.Get(ClientKey)
	if !exists {
		return "", false
	}
	name, ok := client.(string)
	return name, ok
}

package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/phuslu/log"

	"github.com/qs3c/tender_rag_server/internal/pkg/response"
)

// RateLimit 固定窗口限流，按调用方（有 token 时）或客户端 IP 计数。
// limit <= 0 时不限流；Redis 出错时放行
func RateLimit(client *redis.Client, keyPrefix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		id, ok := GetClient(c)
		if !ok || id == "" {
			id = c.ClientIP()
		}
		key := fmt.Sprintf("%s%s", keyPrefix, id)

		pipe := client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		ttlCmd := pipe.TTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Rate limit check failed")
			c.Next()
			return
		}
		count := incr.Val()

		// 没有过期时间的计数（新建或上次 EXPIRE 失败）补上窗口
		ttl := ttlCmd.Val()
		if ttl < 0 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to set rate limit window")
			}
			ttl = window
		}
		reset := int(ttl.Seconds())

		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

		if count > int64(limit) {
			response.RateLimitError(c, fmt.Sprintf("请求过于频繁，请 %d 秒后再试", reset))
			return
		}

		c.Next()
	}
}

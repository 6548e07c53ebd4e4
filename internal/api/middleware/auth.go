package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lapasovanvarbek/mini-twitter/pkg/response"
	"github.com/lapasovanvarbek/mini-twitter/pkg/token"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
)

// Auth 校验 Bearer token 并注入当前用户身份。
func Auth(maker *token.Maker) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		userID, username, err := maker.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxUsername, username)
		c.Next()
	}
}

// CurrentUserID 取当前登录用户 ID（必须在 Auth 之后调用）。
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func CurrentUsername(c *gin.Context) string {
	return c.GetString(ctxUsername)
}

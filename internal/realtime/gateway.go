package realtime

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lapasovanvarbek/mini-twitter/pkg/logger"
	"github.com/lapasovanvarbek/mini-twitter/pkg/response"
	"github.com/lapasovanvarbek/mini-twitter/pkg/token"
)

// Gateway websocket 接入层：握手时校验 JWT，成功后注册连接并回 connected 事件。
type Gateway struct {
	registry *Registry
	maker    *token.Maker
	upgrader websocket.Upgrader
}

func NewGateway(registry *Registry, maker *token.Maker) *Gateway {
	return &Gateway{
		registry: registry,
		maker:    maker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (g *Gateway) Registry() *Registry { return g.registry }

// Handle 处理 GET /ws。token 取自 query 或 Authorization 头；
// 缺失 / 非法 token 在升级前直接拒绝，连接不会进入注册表。
func (g *Gateway) Handle(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		auth := c.GetHeader("Authorization")
		tokenStr = strings.TrimPrefix(auth, "Bearer ")
	}
	if tokenStr == "" {
		response.Unauthorized(c, "missing token")
		return
	}
	userID, username, err := g.maker.Parse(tokenStr)
	if err != nil {
		response.Unauthorized(c, "invalid token")
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写响应
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(ws, userID, username)
	g.registry.Register(userID, conn)
	logger.Info("websocket connected",
		zap.String("user", userID), zap.String("username", username))

	go conn.writePump()
	conn.Send(Connected(userID, username))

	go func() {
		conn.readPump()
		g.registry.Unregister(userID, conn)
		logger.Info("websocket disconnected",
			zap.String("user", userID), zap.String("username", username))
	}()
}

package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 32
)

// Conn 单个已认证的 websocket 连接，带缓冲发送队列和独立写循环。
type Conn struct {
	UserID   string
	Username string

	ws     *websocket.Conn
	send   chan Event
	closed chan struct{}
	once   sync.Once
}

func newConn(ws *websocket.Conn, userID, username string) *Conn {
	return &Conn{
		UserID:   userID,
		Username: username,
		ws:       ws,
		send:     make(chan Event, sendBuffer),
		closed:   make(chan struct{}),
	}
}

// Send 非阻塞投递；缓冲满（慢客户端）或连接已关闭时返回 false。
func (c *Conn) Send(ev Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.closed)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case ev := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump 丢弃客户端消息，只用于感知断连和响应 pong。
func (c *Conn) readPump() {
	defer c.Close()
	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
	"github.com/lapasovanvarbek/mini-twitter/pkg/token"
)

type gatewayFixture struct {
	server   *httptest.Server
	gateway  *Gateway
	registry *Registry
	maker    *token.Maker
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := NewRegistry()
	maker := token.NewMaker("test-secret", time.Hour)
	gw := NewGateway(registry, maker)

	r := gin.New()
	r.GET("/ws", gw.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &gatewayFixture{server: srv, gateway: gw, registry: registry, maker: maker}
}

func (f *gatewayFixture) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (f *gatewayFixture) dial(t *testing.T, tokenStr string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(f.wsURL("token="+tokenStr), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// 缺失 / 非法 token 在升级前拒绝，连接不进注册表
func TestHandshakeRejectsBadToken(t *testing.T) {
	f := newGatewayFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(f.wsURL("token=garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Zero(t, f.registry.OnlineUsers())
}

// 握手成功后第一条消息是 connected 事件
func TestHandshakeConnectedAck(t *testing.T) {
	f := newGatewayFixture(t)
	tok, err := f.maker.Issue("u1", "alice")
	require.NoError(t, err)

	ws := f.dial(t, tok)
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev struct {
		Type    string `json:"type"`
		Payload struct {
			UserID   string `json:"user_id"`
			Username string `json:"username"`
		} `json:"payload"`
	}
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, EventConnected, ev.Type)
	assert.Equal(t, "u1", ev.Payload.UserID)
	assert.Equal(t, "alice", ev.Payload.Username)

	require.Eventually(t, func() bool {
		return f.registry.OnlineUsers() == 1
	}, time.Second, 5*time.Millisecond)
}

// 注册表推送的事件沿连接到达客户端
func TestPushReachesClient(t *testing.T) {
	f := newGatewayFixture(t)
	tok, err := f.maker.Issue("u1", "alice")
	require.NoError(t, err)

	ws := f.dial(t, tok)
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ack Event
	require.NoError(t, ws.ReadJSON(&ack)) // connected

	require.Eventually(t, func() bool {
		return f.registry.OnlineUsers() == 1
	}, time.Second, 5*time.Millisecond)

	post := &model.Post{ID: "p1", AuthorID: "u2", Content: "hello"}
	require.Equal(t, 1, f.registry.Push("u1", NewPost(post)))

	var ev struct {
		Type    string `json:"type"`
		Payload struct {
			Post struct {
				ID      string `json:"id"`
				Content string `json:"content"`
			} `json:"post"`
		} `json:"payload"`
	}
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, EventNewPost, ev.Type)
	assert.Equal(t, "p1", ev.Payload.Post.ID)
	assert.Equal(t, "hello", ev.Payload.Post.Content)
}

// 客户端断开后连接从注册表摘除
func TestDisconnectUnregisters(t *testing.T) {
	f := newGatewayFixture(t)
	tok, err := f.maker.Issue("u1", "alice")
	require.NoError(t, err)

	ws := f.dial(t, tok)
	require.Eventually(t, func() bool {
		return f.registry.OnlineUsers() == 1
	}, time.Second, 5*time.Millisecond)

	_ = ws.Close()
	require.Eventually(t, func() bool {
		return f.registry.OnlineUsers() == 0
	}, time.Second, 5*time.Millisecond)
}

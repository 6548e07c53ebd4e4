package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
)

func testConn(userID string) *Conn { return newConn(nil, userID, userID) }

func drain(c *Conn) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.send:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// 没有任何连接时推送是安全的 no-op
func TestPushNoListeners(t *testing.T) {
	r := NewRegistry()
	assert.Zero(t, r.Push("nobody", Connected("nobody", "nobody")))
	assert.Zero(t, r.OnlineUsers())
}

// 同一用户多端在线时每个连接都收到事件
func TestPushMultiDevice(t *testing.T) {
	r := NewRegistry()
	phone := testConn("u1")
	laptop := testConn("u1")
	r.Register("u1", phone)
	r.Register("u1", laptop)
	other := testConn("u2")
	r.Register("u2", other)
	assert.Equal(t, 2, r.OnlineUsers())

	ev := PostLiked("p1", model.UserSnapshot{ID: "liker", Username: "liker"})
	assert.Equal(t, 2, r.Push("u1", ev))

	require.Len(t, drain(phone), 1)
	require.Len(t, drain(laptop), 1)
	assert.Empty(t, drain(other))
}

func TestUnregisterStopsDelivery(t *testing.T) {
	r := NewRegistry()
	c := testConn("u1")
	r.Register("u1", c)
	r.Unregister("u1", c)
	assert.Zero(t, r.Push("u1", Connected("u1", "u1")))
	assert.Zero(t, r.OnlineUsers())
}

// 缓冲打满的慢连接在推送时被关闭并摘除，不影响其他连接
func TestPushEvictsSlowConn(t *testing.T) {
	r := NewRegistry()
	slow := testConn("u1")
	healthy := testConn("u1")
	r.Register("u1", slow)
	r.Register("u1", healthy)

	ev := Connected("u1", "u1")
	for i := 0; i < sendBuffer; i++ {
		require.True(t, slow.Send(ev))
	}

	assert.Equal(t, 1, r.Push("u1", ev))

	select {
	case <-slow.closed:
	default:
		t.Fatal("slow conn not closed")
	}
	// 摘除后只剩健康连接
	assert.Equal(t, 1, r.Push("u1", ev))
}

func TestSendAfterCloseFails(t *testing.T) {
	c := testConn("u1")
	c.Close()
	assert.False(t, c.Send(Connected("u1", "u1")))
	c.Close() // 重复 Close 幂等
}

func TestRegistryConcurrency(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i%4)
			for j := 0; j < 100; j++ {
				c := testConn(userID)
				r.Register(userID, c)
				r.Push(userID, Connected(userID, userID))
				drain(c)
				r.Unregister(userID, c)
			}
		}(i)
	}
	wg.Wait()
	assert.Zero(t, r.OnlineUsers())
}

// Notifier 异步投递到注册表；队列满时丢弃而不阻塞调用方
func TestNotifierDelivers(t *testing.T) {
	r := NewRegistry()
	c := testConn("u1")
	r.Register("u1", c)

	n := NewNotifier(r, 16)
	stop := n.Start(2)
	defer func() { _ = stop(context.Background()) }()

	n.Notify("u1", Connected("u1", "u1"))

	require.Eventually(t, func() bool {
		return len(c.send) >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestNotifierDropsWhenFull(t *testing.T) {
	r := NewRegistry()
	n := NewNotifier(r, 1)
	// 未 Start：队列容量 1，第二条必须立刻被丢弃而不是阻塞
	done := make(chan struct{})
	go func() {
		n.Notify("u1", Connected("u1", "u1"))
		n.Notify("u1", Connected("u1", "u1"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on full queue")
	}
	assert.Equal(t, 1, n.QueueLen())
}

package realtime

import (
	"sync"
)

// Registry 进程内连接注册表：user_id -> 活跃连接集合（同一用户可多端在线）。
// 进程启动时为空，仅通过 Register/Unregister 变更，不做任何持久化；
// 空表是合法状态，表示当前没有监听者。
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[*Conn]struct{})}
}

func (r *Registry) Register(userID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[*Conn]struct{})
		r.conns[userID] = set
	}
	set[c] = struct{}{}
}

func (r *Registry) Unregister(userID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// Push 向用户的全部在线连接投递事件；无连接时安全 no-op。
// 投递失败（慢客户端 / 死连接）只关闭该连接，不向调用方传播。
// 返回实际投递的连接数。
func (r *Registry) Push(userID string, ev Event) int {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.conns[userID]))
	for c := range r.conns[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(ev) {
			delivered++
		} else {
			c.Close()
			r.Unregister(userID, c)
		}
	}
	return delivered
}

// OnlineUsers 当前在线用户数（采样值）。
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

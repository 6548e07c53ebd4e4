package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
	"github.com/lapasovanvarbek/mini-twitter/internal/realtime"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Follow{}, &model.Fan{},
		&model.Post{}, &model.Like{}, &model.Inbox{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

type pushed struct {
	UserID string
	Event  realtime.Event
}

// recordingPusher 同步记录推送，onNotify 可用于在推送时刻做断言
type recordingPusher struct {
	mu       sync.Mutex
	events   []pushed
	onNotify func(userID string, ev realtime.Event)
}

func (p *recordingPusher) Notify(userID string, ev realtime.Event) {
	if p.onNotify != nil {
		p.onNotify(userID, ev)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushed{UserID: userID, Event: ev})
}

func (p *recordingPusher) all() []pushed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushed(nil), p.events...)
}

func (p *recordingPusher) byType(eventType string) []pushed {
	var out []pushed
	for _, e := range p.all() {
		if e.Event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type enqueued struct {
	Type    string
	Payload interface{}
}

type stubEnqueuer struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (e *stubEnqueuer) Enqueue(_ context.Context, jobType string, payload interface{}) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, enqueued{Type: jobType, Payload: payload})
	return uuid.New().String(), nil
}

func (e *stubEnqueuer) all() []enqueued {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]enqueued(nil), e.jobs...)
}

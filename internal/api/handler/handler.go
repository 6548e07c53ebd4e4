package handler

import (
	"github.com/lapasovanvarbek/mini-twitter/internal/queue"
	"github.com/lapasovanvarbek/mini-twitter/internal/service"
)

// Handler 聚合全部 HTTP 处理器依赖
type Handler struct {
	authService     *service.AuthService
	userService     *service.UserService
	postService     *service.PostService
	relService      service.RelationshipService
	timelineService *service.TimelineService
	fanoutQueue     *queue.Queue
}

func New(
	authService *service.AuthService,
	userService *service.UserService,
	postService *service.PostService,
	relService service.RelationshipService,
	timelineService *service.TimelineService,
	fanoutQueue *queue.Queue,
) *Handler {
	return &Handler{
		authService:     authService,
		userService:     userService,
		postService:     postService,
		relService:      relService,
		timelineService: timelineService,
		fanoutQueue:     fanoutQueue,
	}
}

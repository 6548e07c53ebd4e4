package api

import (
	"regexp"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/lapasovanvarbek/mini-twitter/config"
	_ "github.com/lapasovanvarbek/mini-twitter/docs"
	"github.com/lapasovanvarbek/mini-twitter/internal/api/handler"
	"github.com/lapasovanvarbek/mini-twitter/internal/api/middleware"
	"github.com/lapasovanvarbek/mini-twitter/internal/realtime"
	"github.com/lapasovanvarbek/mini-twitter/pkg/token"
)

var usernameRe = regexp.MustCompile(`^\w{3,32}$`)

// NewRouter 组装全部路由与中间件。
func NewRouter(cfg *config.Config, h *handler.Handler, gateway *realtime.Gateway, maker *token.Maker) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRe.MatchString(fl.Field().String())
		})
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	r.Use(otelgin.Middleware("mini-twitter"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.RateLimit(rate.Limit(50), 100))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// websocket 握手自带 token 校验，不走 Auth 中间件
	r.GET("/ws", gateway.Handle)

	auth := middleware.Auth(maker)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/register", h.Register)
		v1.POST("/auth/login", h.Login)

		v1.GET("/users/:username", h.GetProfile)
		v1.GET("/users/:username/posts", h.ListUserPosts)
		v1.GET("/users/:username/followers", h.ListFollowers)
		v1.GET("/users/:username/following", h.ListFollowing)
		v1.PUT("/users/me", auth, h.UpdateMe)

		v1.POST("/relations/follow", auth, h.Follow)
		v1.POST("/relations/unfollow", auth, h.Unfollow)

		v1.GET("/posts", h.ListRecentPosts)
		v1.POST("/posts", auth, h.CreatePost)
		v1.GET("/posts/:id", h.GetPost)
		v1.DELETE("/posts/:id", auth, h.DeletePost)
		v1.POST("/posts/:id/like", auth, h.LikePost)
		v1.DELETE("/posts/:id/like", auth, h.UnlikePost)

		v1.GET("/timeline", auth, h.HomeTimeline)
	}

	admin := r.Group("/admin", auth)
	{
		admin.GET("/queue/failed", h.QueueFailed)
		admin.GET("/queue/stats", h.QueueStats)
	}

	return r
}

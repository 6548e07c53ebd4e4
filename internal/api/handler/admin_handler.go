package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lapasovanvarbek/mini-twitter/internal/api/middleware"
	"github.com/lapasovanvarbek/mini-twitter/pkg/logger"
	"github.com/lapasovanvarbek/mini-twitter/pkg/response"
)

// QueueFailed 死信任务列表，供人工排查 / 重放
// @Summary 扇出死信列表
// @Tags 运维
// @Security BearerAuth
// @Param limit query int false "条数" default(100)
// @Success 200 {object} response.Response
// @Router /admin/queue/failed [get]
func (h *Handler) QueueFailed(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
	logger.Info("dead letter inspection",
		zap.String("operator", middleware.CurrentUsername(c)), zap.Int64("limit", limit))
	jobs, err := h.fanoutQueue.FailedJobs(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, jobs)
}

// QueueStats 队列积压概览
// @Summary 扇出队列状态
// @Tags 运维
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/queue/stats [get]
func (h *Handler) QueueStats(c *gin.Context) {
	stats, err := h.fanoutQueue.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, stats)
}

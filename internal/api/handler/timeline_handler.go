package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lapasovanvarbek/mini-twitter/internal/api/middleware"
	"github.com/lapasovanvarbek/mini-twitter/pkg/response"
)

// HomeTimeline 当前用户的主时间线（物化 feed 直读）
// @Summary 主时间线
// @Tags 时间线
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Router /api/v1/timeline [get]
func (h *Handler) HomeTimeline(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	posts, err := h.timelineService.GetHomeTimeline(c.Request.Context(), middleware.CurrentUserID(c), page, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "limit": limit, "list": posts})
}

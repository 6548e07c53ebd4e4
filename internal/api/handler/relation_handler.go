package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lapasovanvarbek/mini-twitter/internal/api/middleware"
	"github.com/lapasovanvarbek/mini-twitter/internal/service"
	"github.com/lapasovanvarbek/mini-twitter/pkg/response"
)

type followRequest struct {
	ToUserID string `json:"to_user_id" binding:"required"`
}

// Follow 建立关注
// @Summary 关注用户
// @Tags 关系链
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body followRequest true "关注对象"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/relations/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	already, err := h.relService.Follow(c.Request.Context(), middleware.CurrentUserID(c), req.ToUserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFollowSelf):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFound(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	if already {
		response.SuccessMsg(c, "already following", nil)
		return
	}
	response.Success(c, nil)
}

// Unfollow 取消关注
// @Summary 取消关注
// @Tags 关系链
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body followRequest true "取关对象"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/relations/unfollow [post]
func (h *Handler) Unfollow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	removed, err := h.relService.Unfollow(c.Request.Context(), middleware.CurrentUserID(c), req.ToUserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	if !removed {
		response.SuccessMsg(c, "not following", nil)
		return
	}
	response.Success(c, nil)
}

// ListFollowers 查询某用户的粉丝
// @Summary 查询粉丝列表
// @Tags 关系链
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/users/{username}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	username := c.Param("username")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	list, err := h.relService.ListFollowers(c.Request.Context(), username, page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// ListFollowing 查询某用户关注的人
// @Summary 查询关注列表
// @Tags 关系链
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/users/{username}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	username := c.Param("username")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	list, err := h.relService.ListFollowing(c.Request.Context(), username, page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

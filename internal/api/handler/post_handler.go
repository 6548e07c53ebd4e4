package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lapasovanvarbek/mini-twitter/internal/api/middleware"
	"github.com/lapasovanvarbek/mini-twitter/internal/service"
	"github.com/lapasovanvarbek/mini-twitter/pkg/response"
)

type createPostRequest struct {
	Content       string  `json:"content" binding:"required,max=280"`
	ReplyToPostID *string `json:"reply_to_post_id"`
}

// CreatePost 发帖并触发扇出
// @Summary 发帖
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "帖子内容"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.postService.Create(c.Request.Context(), middleware.CurrentUserID(c), req.Content, req.ReplyToPostID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContentEmpty), errors.Is(err, service.ErrContentTooLong):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrUserNotFound):
			response.NotFound(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Success(c, post)
}

// GetPost 查看单帖
// @Summary 帖子详情
// @Tags 帖子
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.postService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, post)
}

// DeletePost 删帖（仅作者），级联清理全量时间线条目
// @Summary 删帖
// @Tags 帖子
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	err := h.postService.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, service.ErrNotPostAuthor):
			response.Forbidden(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Success(c, nil)
}

// LikePost 点赞
// @Summary 点赞
// @Tags 帖子
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/like [post]
func (h *Handler) LikePost(c *gin.Context) {
	already, err := h.postService.Like(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	if already {
		response.SuccessMsg(c, "already liked", nil)
		return
	}
	response.Success(c, nil)
}

// UnlikePost 取消点赞
// @Summary 取消点赞
// @Tags 帖子
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Router /api/v1/posts/{id}/like [delete]
func (h *Handler) UnlikePost(c *gin.Context) {
	already, err := h.postService.Unlike(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if already {
		response.SuccessMsg(c, "like not found", nil)
		return
	}
	response.Success(c, nil)
}

// ListUserPosts 查询某用户的帖子
// @Summary 用户帖子列表
// @Tags 帖子
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Router /api/v1/users/{username}/posts [get]
func (h *Handler) ListUserPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	posts, err := h.postService.ListByAuthor(c.Request.Context(), c.Param("username"), page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": posts})
}

// ListRecentPosts 全站最新帖子
// @Summary 最新帖子
// @Tags 帖子
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Router /api/v1/posts [get]
func (h *Handler) ListRecentPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	posts, err := h.postService.ListRecent(c.Request.Context(), page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": posts})
}

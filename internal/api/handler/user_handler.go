package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/lapasovanvarbek/mini-twitter/internal/api/middleware"
	"github.com/lapasovanvarbek/mini-twitter/internal/service"
	"github.com/lapasovanvarbek/mini-twitter/pkg/response"
)

type updateProfileRequest struct {
	DisplayName  string `json:"display_name" binding:"max=64"`
	Bio          string `json:"bio" binding:"max=256"`
	ProfileImage string `json:"profile_image" binding:"max=256"`
}

// GetProfile 查看用户主页
// @Summary 用户主页
// @Tags 用户
// @Param username path string true "用户名"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{username} [get]
func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, user)
}

// UpdateMe 更新当前用户档案
// @Summary 更新档案
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body updateProfileRequest true "档案字段"
// @Success 200 {object} response.Response
// @Router /api/v1/users/me [put]
func (h *Handler) UpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), req.DisplayName, req.Bio, req.ProfileImage)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, user)
}

package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-chat/internal/chat"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/internal/service"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/middleware"
	"github.com/weiawesome/wes-chat/pkg/response"
)

// Handler serves the group and profile API.
type Handler struct {
	groupService   service.GroupService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(groupService service.GroupService, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		groupService:   groupService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.Use(h.authMiddleware.RequireAuth())
	{
		groups := api.Group("/groups/:name")
		{
			groups.PUT("/name", h.RenameGroup)
			groups.PUT("/description", h.UpdateDescription)
			groups.PUT("/avatar", h.UpdateAvatar)
			groups.PUT("/members", h.UpdateMembers)
			groups.POST("/leave", h.LeaveGroup)
			groups.DELETE("", h.DeleteGroup)
			groups.POST("/admins", h.AddAdmin)
			groups.DELETE("/admins/:target", h.RemoveAdmin)
			groups.GET("/polls", h.ListPolls)
		}

		api.PUT("/users/me/profile", h.UpdateProfile)
	}
}

// fail maps a service error onto the response envelope.
func fail(c *gin.Context, err error, action string) {
	l := log.Ctx(c.Request.Context())

	msg := err.Error()
	var re *service.RuleError
	if errors.As(err, &re) {
		msg = re.Message
	}

	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrNotAdmin):
		response.BadRequest(c, msg)
	case errors.Is(err, service.ErrForbidden), errors.Is(err, chat.ErrNotMember):
		response.Forbidden(c, msg)
	case errors.Is(err, repository.ErrGroupNotFound), errors.Is(err, repository.ErrUserNotFound):
		response.NotFound(c, msg)
	case errors.Is(err, repository.ErrGroupExists), errors.Is(err, service.ErrAlreadyAdmin):
		response.Conflict(c, msg)
	default:
		l.Error().Err(err).Msg(action + " failed")
		response.InternalError(c, "failed to "+action)
	}
}

// RenameGroup renames a group; its messages and polls follow.
func (h *Handler) RenameGroup(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.RenameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid rename request")
		response.BadRequest(c, err.Error())
		return
	}

	g, err := h.groupService.RenameGroup(ctx, middleware.GetUsername(c), c.Param("name"), req.NewName)
	if err != nil {
		fail(c, err, "rename group")
		return
	}
	response.Success(c, g)
}

func (h *Handler) UpdateDescription(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.UpdateDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid description request")
		response.BadRequest(c, err.Error())
		return
	}

	g, err := h.groupService.UpdateDescription(ctx, middleware.GetUsername(c), c.Param("name"), req.Description)
	if err != nil {
		fail(c, err, "update description")
		return
	}
	response.Success(c, g)
}

func (h *Handler) UpdateAvatar(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.UpdateGroupAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid avatar request")
		response.BadRequest(c, err.Error())
		return
	}

	g, err := h.groupService.UpdateAvatar(ctx, middleware.GetUsername(c), c.Param("name"), req.AvatarURL)
	if err != nil {
		fail(c, err, "update avatar")
		return
	}
	response.Success(c, g)
}

// UpdateMembers replaces the member list. Admins only.
func (h *Handler) UpdateMembers(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.UpdateMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid members request")
		response.BadRequest(c, err.Error())
		return
	}

	g, err := h.groupService.UpdateMembers(ctx, middleware.GetUsername(c), c.Param("name"), req.Members)
	if err != nil {
		fail(c, err, "update members")
		return
	}
	response.Success(c, g)
}

func (h *Handler) LeaveGroup(c *gin.Context) {
	if err := h.groupService.LeaveGroup(c.Request.Context(), middleware.GetUsername(c), c.Param("name")); err != nil {
		fail(c, err, "leave group")
		return
	}
	response.Success(c, gin.H{"message": "left group"})
}

// DeleteGroup removes a group with its messages and polls. Creator only.
func (h *Handler) DeleteGroup(c *gin.Context) {
	if err := h.groupService.DeleteGroup(c.Request.Context(), middleware.GetUsername(c), c.Param("name")); err != nil {
		fail(c, err, "delete group")
		return
	}
	response.Success(c, gin.H{"message": "group deleted"})
}

func (h *Handler) AddAdmin(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.AddAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid add admin request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.groupService.AddAdmin(ctx, middleware.GetUsername(c), c.Param("name"), req.TargetUser)
	if err != nil {
		fail(c, err, "add admin")
		return
	}
	response.Success(c, domain.AdminResult{Message: msg})
}

func (h *Handler) RemoveAdmin(c *gin.Context) {
	msg, err := h.groupService.RemoveAdmin(c.Request.Context(), middleware.GetUsername(c), c.Param("name"), c.Param("target"))
	if err != nil {
		fail(c, err, "remove admin")
		return
	}
	response.Success(c, domain.AdminResult{Message: msg})
}

func (h *Handler) ListPolls(c *gin.Context) {
	polls, err := h.groupService.ListPolls(c.Request.Context(), middleware.GetUsername(c), c.Param("name"))
	if err != nil {
		fail(c, err, "list polls")
		return
	}
	response.Success(c, polls)
}

// UpdateProfile sets the caller's bio and avatar.
func (h *Handler) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid profile request")
		response.BadRequest(c, err.Error())
		return
	}

	u, err := h.groupService.UpdateProfile(ctx, middleware.GetUsername(c), req.Bio, req.AvatarURL)
	if err != nil {
		fail(c, err, "update profile")
		return
	}
	response.Success(c, u)
}

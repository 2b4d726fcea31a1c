package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/service"
)

type ChannelHandler struct {
	channelService service.IChannelService
	log            *zap.Logger
}

func NewChannelHandler(channelService service.IChannelService, log *zap.Logger) *ChannelHandler {
	return &ChannelHandler{channelService: channelService, log: log}
}

// CreateChannel handles channel creation
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req service.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ch, err := h.channelService.CreateChannel(c.Request.Context(), actor(c), &req)
	respond(c, h.log, http.StatusCreated, ch, err)
}

// ListChannels lists the caller's channels
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	list, err := h.channelService.ListChannels(c.Request.Context(), actor(c))
	respond(c, h.log, http.StatusOK, list, err)
}

func (h *ChannelHandler) GetChannel(c *gin.Context) {
	ch, err := h.channelService.GetChannel(c.Request.Context(), actor(c), c.Param("id"))
	respond(c, h.log, http.StatusOK, ch, err)
}

func (h *ChannelHandler) UpdateChannel(c *gin.Context) {
	var req service.UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ch, err := h.channelService.UpdateChannel(c.Request.Context(), actor(c), c.Param("id"), &req)
	respond(c, h.log, http.StatusOK, ch, err)
}

func (h *ChannelHandler) ArchiveChannel(c *gin.Context) {
	ch, err := h.channelService.ArchiveChannel(c.Request.Context(), actor(c), c.Param("id"))
	respond(c, h.log, http.StatusOK, ch, err)
}

// ListMembers lists memberships; ?include_removed=true adds removed ones
func (h *ChannelHandler) ListMembers(c *gin.Context) {
	includeRemoved, _ := strconv.ParseBool(c.Query("include_removed"))
	members, err := h.channelService.ListMembers(c.Request.Context(), actor(c), c.Param("id"), includeRemoved)
	respond(c, h.log, http.StatusOK, members, err)
}

func (h *ChannelHandler) AddMember(c *gin.Context) {
	var req service.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.channelService.AddMember(c.Request.Context(), actor(c), c.Param("id"), &req)
	respond(c, h.log, http.StatusCreated, m, err)
}

// RemoveMember removes a member; removing yourself leaves the channel
func (h *ChannelHandler) RemoveMember(c *gin.Context) {
	m, err := h.channelService.RemoveMember(c.Request.Context(), actor(c), c.Param("id"), c.Param("userID"))
	respond(c, h.log, http.StatusOK, m, err)
}

func (h *ChannelHandler) ChangeMemberRole(c *gin.Context) {
	var req service.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.channelService.ChangeMemberRole(c.Request.Context(), actor(c), c.Param("id"), c.Param("userID"), &req)
	respond(c, h.log, http.StatusOK, m, err)
}

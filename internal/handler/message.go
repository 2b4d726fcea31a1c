package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/service"
)

type MessageHandler struct {
	messageService service.IMessageService
	log            *zap.Logger
}

func NewMessageHandler(messageService service.IMessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, log: log}
}

// SendMessage posts into the channel in the path
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.messageService.SendMessage(c.Request.Context(), actor(c), c.Param("id"), &req)
	respond(c, h.log, http.StatusCreated, m, err)
}

// ListMessages pages with ?after_seq=&limit=&include_deleted=
func (h *MessageHandler) ListMessages(c *gin.Context) {
	var req service.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.messageService.ListMessages(c.Request.Context(), actor(c), c.Param("id"), &req)
	respond(c, h.log, http.StatusOK, page, err)
}

func (h *MessageHandler) EditMessage(c *gin.Context) {
	var req service.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.messageService.EditMessage(c.Request.Context(), actor(c), c.Param("id"), &req)
	respond(c, h.log, http.StatusOK, m, err)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	err := h.messageService.DeleteMessage(c.Request.Context(), actor(c), c.Param("id"))
	respond[any](c, h.log, http.StatusNoContent, nil, err)
}

func (h *MessageHandler) AddReaction(c *gin.Context) {
	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.messageService.AddReaction(c.Request.Context(), actor(c), c.Param("id"), req.Emoji)
	respond(c, h.log, http.StatusCreated, m, err)
}

func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	m, err := h.messageService.RemoveReaction(c.Request.Context(), actor(c), c.Param("id"), c.Param("emoji"))
	respond(c, h.log, http.StatusOK, m, err)
}

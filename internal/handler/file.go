package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/service"
)

type FileHandler struct {
	fileService service.IFileService
	log         *zap.Logger
}

func NewFileHandler(fileService service.IFileService, log *zap.Logger) *FileHandler {
	return &FileHandler{fileService: fileService, log: log}
}

// UploadFile registers file metadata; the bytes go to object storage under the returned key
func (h *FileHandler) UploadFile(c *gin.Context) {
	var req service.UploadFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	f, err := h.fileService.UploadFile(c.Request.Context(), actor(c), &req)
	respond(c, h.log, http.StatusCreated, f, err)
}

func (h *FileHandler) GetFile(c *gin.Context) {
	f, err := h.fileService.GetFile(c.Request.Context(), actor(c), c.Param("id"))
	respond(c, h.log, http.StatusOK, f, err)
}

func (h *FileHandler) DeleteFile(c *gin.Context) {
	f, err := h.fileService.DeleteFile(c.Request.Context(), actor(c), c.Param("id"))
	respond(c, h.log, http.StatusOK, f, err)
}

func (h *FileHandler) RestoreFile(c *gin.Context) {
	f, err := h.fileService.RestoreFile(c.Request.Context(), actor(c), c.Param("id"))
	respond(c, h.log, http.StatusOK, f, err)
}

// ListChannelFiles lists a channel's files; ?include_deleted=true adds deleted ones
func (h *FileHandler) ListChannelFiles(c *gin.Context) {
	includeDeleted, _ := strconv.ParseBool(c.Query("include_deleted"))
	files, err := h.fileService.ListChannelFiles(c.Request.Context(), actor(c), c.Param("id"), includeDeleted)
	respond(c, h.log, http.StatusOK, files, err)
}

package sandbox

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/middleware"
	"marketplace-chat/internal/transport/httpdto"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadBytes = 10 << 20

type Handler struct {
	backend *Backend
}

func NewHandler(backend *Backend) *Handler {
	return &Handler{backend: backend}
}

func (h *Handler) ListConversations(c *gin.Context) {
	userID := c.Param("userId")
	if userID != middleware.CurrentUserID(c) {
		c.JSON(http.StatusForbidden, httpdto.Fail(httpdto.CodeForbidden, "forbidden"))
		return
	}
	c.JSON(http.StatusOK, h.backend.ConversationList(userID))
}

func (h *Handler) GetMessages(c *gin.Context) {
	var req httpdto.GetMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationID == "" {
		c.JSON(http.StatusBadRequest, httpdto.Fail(httpdto.CodeInvalidRequest, "invalid request"))
		return
	}
	items, err := h.backend.Messages(string(req.ConversationID), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(items) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": items})
}

func (h *Handler) StartConversation(c *gin.Context) {
	var req httpdto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.User1ID == "" || req.User2ID == "" || req.AdID == "" {
		c.JSON(http.StatusBadRequest, httpdto.Fail(httpdto.CodeInvalidRequest, "invalid request"))
		return
	}
	if string(req.User1ID) != middleware.CurrentUserID(c) {
		c.JSON(http.StatusForbidden, httpdto.Fail(httpdto.CodeForbidden, "forbidden"))
		return
	}
	id, created := h.backend.StartConversation(string(req.User1ID), string(req.User2ID), string(req.AdID))
	status := "existing"
	if created {
		status = "created"
	}
	c.JSON(http.StatusOK, httpdto.StartConversationResponse{ConversationID: httpdto.ID(formatID(id)), Status: status})
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationID == "" {
		c.JSON(http.StatusBadRequest, httpdto.Fail(httpdto.CodeInvalidRequest, "invalid request"))
		return
	}
	if string(req.SenderID) != middleware.CurrentUserID(c) {
		c.JSON(http.StatusForbidden, httpdto.Fail(httpdto.CodeForbidden, "forbidden"))
		return
	}
	kind := domain.ParseMessageKind(req.MessageType)
	if (kind.IsMedia() && req.MediaURL == "") || (!kind.IsMedia() && strings.TrimSpace(req.MessageText) == "") {
		c.JSON(http.StatusBadRequest, httpdto.Fail(httpdto.CodeInvalidRequest, "message is empty"))
		return
	}
	id, err := h.backend.SendMessage(string(req.ConversationID), string(req.SenderID), kind, req.MessageText, req.MediaURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.SendMessageResponse{MessageID: httpdto.ID(formatID(id))})
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	var req httpdto.DeleteMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.MessageIDs) == 0 {
		c.JSON(http.StatusBadRequest, httpdto.Fail(httpdto.CodeInvalidRequest, "invalid request"))
		return
	}
	deleteType := domain.DeleteType(req.DeleteType)
	if !deleteType.Valid() {
		c.JSON(http.StatusBadRequest, httpdto.Fail(httpdto.CodeInvalidRequest, "invalid delete_type"))
		return
	}
	ids := make([]string, len(req.MessageIDs))
	for i, id := range req.MessageIDs {
		ids[i] = string(id)
	}
	if err := h.backend.DeleteMessages(ids, deleteType, middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.OK[any](nil))
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	var req httpdto.DeleteConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationID == "" {
		c.JSON(http.StatusBadRequest, httpdto.Fail(httpdto.CodeInvalidRequest, "invalid request"))
		return
	}
	if err := h.backend.DeleteConversation(string(req.ConversationID), middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.OK[any](nil))
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req httpdto.MarkMessagesReadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationID == "" {
		c.JSON(http.StatusBadRequest, httpdto.Fail(httpdto.CodeInvalidRequest, "invalid request"))
		return
	}
	ids := make([]string, len(req.MessageIDs))
	for i, id := range req.MessageIDs {
		ids[i] = string(id)
	}
	if err := h.backend.MarkRead(string(req.ConversationID), ids, middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.OK[any](nil))
}

// Upload returns a handler for one multipart field ("image" or "audio").
func (h *Handler) Upload(field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile(field)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.Fail(httpdto.CodeInvalidRequest, "missing file field "+field))
			return
		}
		if fh.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, httpdto.Fail(httpdto.CodeTooLarge, "file too large"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			_ = c.Error(err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			_ = c.Error(err)
			return
		}
		ref := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
		h.backend.StoreUpload(ref, data)
		c.JSON(http.StatusOK, h.backend.uploadView(ref))
	}
}

// ServeUpload returns stored media by reference so resolved URLs load.
func (h *Handler) ServeUpload(c *gin.Context) {
	data, ok := h.backend.Upload(c.Param("name"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.Fail(httpdto.CodeNotFound, "not found"))
	case errors.Is(err, chat_errors.ErrUnauthorized):
		c.JSON(http.StatusForbidden, httpdto.Fail(httpdto.CodeForbidden, "forbidden"))
	default:
		_ = c.Error(err)
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/dto"
	"github.com/ignatzorin/marketplace-backend/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-backend/internal/service"
)

type SupportHandler struct {
	svc *service.SupportService
}

func NewSupportHandler(s *service.SupportService) *SupportHandler {
	return &SupportHandler{svc: s}
}

// SendMessage POST /support/messages
func (h *SupportHandler) SendMessage(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.SupportMessageRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	msg, err := h.svc.SendFromClient(c.Request.Context(), userID, req.Subject, req.Message, req.Attachment, req.AttachmentType)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetMyDialog GET /support/messages
func (h *SupportHandler) GetMyDialog(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	messages, err := h.svc.GetDialog(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// CountUnread GET /support/unread
func (h *SupportHandler) CountUnread(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	count, err := h.svc.CountUnread(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// ListAll GET /admin/support/messages
func (h *SupportHandler) ListAll(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	messages, err := h.svc.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{Items: messages, Limit: limit, Offset: offset})
}

// GetClientDialog GET /admin/support/clients/:id
func (h *SupportHandler) GetClientDialog(c *gin.Context) {
	clientID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	messages, err := h.svc.GetDialog(c.Request.Context(), clientID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// Reply POST /admin/support/reply
func (h *SupportHandler) Reply(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.SupportReplyRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		common.RespondBadRequest(c, "некорректный идентификатор клиента")
		return
	}

	msg, err := h.svc.ReplyFromAdmin(c.Request.Context(), clientID, adminID, req.Message)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

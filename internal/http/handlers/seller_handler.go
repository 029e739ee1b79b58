package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/dto"
	"github.com/ignatzorin/marketplace-backend/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/service"
)

type SellerHandler struct {
	svc *service.SellerService
}

func NewSellerHandler(s *service.SellerService) *SellerHandler {
	return &SellerHandler{svc: s}
}

// Apply POST /seller/apply
func (h *SellerHandler) Apply(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.SellerApplyRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	app, err := h.svc.Apply(c.Request.Context(), userID, service.ApplyInput{
		BusinessName: req.BusinessName,
		BusinessType: req.BusinessType,
		TaxID:        req.TaxID,
		Phone:        req.Phone,
		Email:        req.Email,
		Documents:    req.Documents,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// GetMyApplication GET /seller/application
func (h *SellerHandler) GetMyApplication(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	app, err := h.svc.GetMyApplication(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// GetEligibility GET /seller/eligibility
func (h *SellerHandler) GetEligibility(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	eligibility, err := h.svc.GetReapplicationEligibility(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibility)
}

// ListApplications GET /admin/seller-applications
func (h *SellerHandler) ListApplications(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	status := c.DefaultQuery("status", models.ApplicationStatusPending)

	apps, err := h.svc.ListByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{Items: apps, Limit: limit, Offset: offset})
}

// ApproveApplication POST /admin/seller-applications/:id/approve
func (h *SellerHandler) ApproveApplication(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	applicationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ReviewApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		common.RespondBadRequest(c, err.Error())
		return
	}

	app, err := h.svc.Approve(c.Request.Context(), applicationID, adminID, req.ReviewNotes)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// RejectApplication POST /admin/seller-applications/:id/reject
func (h *SellerHandler) RejectApplication(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	applicationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ReviewApplicationRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	app, err := h.svc.Reject(c.Request.Context(), applicationID, adminID, req.RejectionReason, req.ReviewNotes)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

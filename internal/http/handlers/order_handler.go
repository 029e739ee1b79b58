package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/dto"
	"github.com/ignatzorin/marketplace-backend/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-backend/internal/service"
)

type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(s *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: s}
}

// Checkout POST /orders/checkout
func (h *OrderHandler) Checkout(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CheckoutRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		common.RespondBadRequest(c, "некорректный идентификатор варианта")
		return
	}

	result, err := h.svc.Checkout(c.Request.Context(), userID, variantID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CheckoutResponse{
		Order:       result.Order,
		CheckoutURL: result.CheckoutURL,
	})
}

// GetOrder GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.svc.GetOrder(c.Request.Context(), orderID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListMyOrders GET /orders
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	orders, err := h.svc.ListMyOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{Items: orders, Limit: limit, Offset: offset})
}

// CancelOrder POST /orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.svc.Cancel(c.Request.Context(), orderID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListAllOrders GET /admin/orders
func (h *OrderHandler) ListAllOrders(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	orders, err := h.svc.ListAllOrders(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{Items: orders, Limit: limit, Offset: offset})
}

// SetOrderStatus PATCH /admin/orders/:id/status
func (h *OrderHandler) SetOrderStatus(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SetOrderStatusRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	status, err := valueobject.NewOrderStatus(req.Status)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	order, err := h.svc.SetStatus(c.Request.Context(), orderID, status, adminID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrderTransaction GET /admin/orders/:id/transaction
func (h *OrderHandler) GetOrderTransaction(c *gin.Context) {
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	transaction, err := h.svc.GetTransaction(c.Request.Context(), orderID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, transaction)
}

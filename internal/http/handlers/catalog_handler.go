package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/dto"
	"github.com/ignatzorin/marketplace-backend/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

// CatalogHandler отдаёт публичный каталог товаров.
type CatalogHandler struct {
	products *repository.ProductRepository
}

func NewCatalogHandler(products *repository.ProductRepository) *CatalogHandler {
	return &CatalogHandler{products: products}
}

// ListProducts GET /catalog/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	products, err := h.products.ListActive(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{Items: products, Limit: limit, Offset: offset})
}

// ListVariants GET /catalog/products/:id/variants
func (h *CatalogHandler) ListVariants(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondBadRequest(c, "некорректный идентификатор товара")
		return
	}

	variants, err := h.products.ListVariants(c.Request.Context(), productID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, variants)
}

// GetVariant GET /catalog/variants/:id
func (h *CatalogHandler) GetVariant(c *gin.Context) {
	variantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondBadRequest(c, "некорректный идентификатор варианта")
		return
	}

	variant, err := h.products.GetVariantWithProduct(c.Request.Context(), variantID)
	if err != nil {
		if errors.Is(err, repository.ErrVariantNotFound) {
			common.RespondError(c, http.StatusNotFound, "вариант товара не найден")
			return
		}
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, variant)
}

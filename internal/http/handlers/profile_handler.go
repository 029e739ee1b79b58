package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/dto"
	"github.com/ignatzorin/marketplace-backend/internal/http/handlers/common"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/ratelimit"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
	"github.com/ignatzorin/marketplace-backend/internal/validation"
)

// ProfileHandler отвечает за работу с профилем.
type ProfileHandler struct {
	users   *repository.UserRepository
	limiter ratelimit.Limiter
}

// NewProfileHandler создаёт экземпляр.
func NewProfileHandler(users *repository.UserRepository, limiter ratelimit.Limiter) *ProfileHandler {
	return &ProfileHandler{users: users, limiter: limiter}
}

// GetMe возвращает профиль текущего пользователя.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "профиль не найден"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe обновляет имя и телефон текущего пользователя.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	if err := h.limiter.Allow(c.Request.Context(), userID.String(), "update_profile"); err != nil {
		common.RespondAppError(c, apperror.New(apperror.ErrCodeRateLimited, "слишком много обновлений профиля, попробуйте позже"))
		return
	}

	var req dto.UpdateProfileRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateName(req.Name); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.users.UpdateProfile(c.Request.Context(), userID, req.Name, req.Phone); err != nil {
		common.RespondAppError(c, err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

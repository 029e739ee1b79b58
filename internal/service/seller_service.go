package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/audit"
	"github.com/ignatzorin/marketplace-backend/internal/goroutine"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/notify"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/ratelimit"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
	"github.com/ignatzorin/marketplace-backend/internal/validation"
)

// SellerApplicationRepo описывает операции с заявками продавцов.
type SellerApplicationRepo interface {
	Create(ctx context.Context, app *models.SellerApplication) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SellerApplication, error)
	GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerApplication, error)
	Approve(ctx context.Context, applicationID, userID, adminID uuid.UUID, reviewNotes *string) error
	Reject(ctx context.Context, applicationID, userID, adminID uuid.UUID, rejectionReason string, reviewNotes *string) error
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.SellerApplication, error)
}

// SellerUserRepo отдаёт пользователя для проверки бана перед одобрением.
type SellerUserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ApplyInput — данные заявки на статус продавца.
type ApplyInput struct {
	BusinessName string          `json:"business_name"`
	BusinessType string          `json:"business_type"`
	TaxID        *string         `json:"tax_id,omitempty"`
	Phone        *string         `json:"phone,omitempty"`
	Email        string          `json:"email"`
	Documents    json.RawMessage `json:"documents,omitempty"`
}

// SellerService реализует подачу и рассмотрение заявок на статус продавца.
// Поле now подменяется в тестах для проверки кулдауна повторной подачи.
type SellerService struct {
	applications SellerApplicationRepo
	users        SellerUserRepo
	notifier     notify.Dispatcher
	audit        audit.Sink
	limiter      ratelimit.Limiter

	reapplyCooldown time.Duration
	now             func() time.Time
}

func NewSellerService(
	applications SellerApplicationRepo,
	users SellerUserRepo,
	notifier notify.Dispatcher,
	auditSink audit.Sink,
	limiter ratelimit.Limiter,
	reapplyCooldown time.Duration,
) *SellerService {
	return &SellerService{
		applications:    applications,
		users:           users,
		notifier:        notifier,
		audit:           auditSink,
		limiter:         limiter,
		reapplyCooldown: reapplyCooldown,
		now:             time.Now,
	}
}

// Apply подаёт заявку на статус продавца. Повторная подача после отказа
// возможна только по истечении кулдауна; при открытой или одобренной
// заявке подача запрещена.
func (s *SellerService) Apply(ctx context.Context, userID uuid.UUID, input ApplyInput) (*models.SellerApplication, error) {
	if err := s.limiter.Allow(ctx, userID.String(), "seller_apply"); err != nil {
		return nil, err
	}

	if err := validation.ValidateCompanyName(input.BusinessName); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if input.BusinessType != models.BusinessTypeIndividual && input.BusinessType != models.BusinessTypeCompany {
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый тип бизнеса")
	}
	if err := validation.ValidateEmail(input.Email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if input.TaxID != nil {
		if err := validation.ValidateTaxID(*input.TaxID); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	eligibility, err := s.eligibility(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanReapply {
		return nil, apperror.New(apperror.ErrCodeConflict, eligibility.Reason)
	}

	app := &models.SellerApplication{
		UserID:       userID,
		BusinessName: strings.TrimSpace(input.BusinessName),
		BusinessType: input.BusinessType,
		TaxID:        input.TaxID,
		Phone:        input.Phone,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Documents:    input.Documents,
		Status:       models.ApplicationStatusPending,
	}
	if err := s.applications.Create(ctx, app); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать заявку")
	}

	s.audit.LogEvent("seller_application_submitted", map[string]interface{}{
		"application_id": app.ID,
		"user_id":        userID,
		"business_type":  app.BusinessType,
	})

	s.notifyText(fmt.Sprintf("Новая заявка продавца: %s (%s)", app.BusinessName, app.BusinessType))
	return app, nil
}

// Approve одобряет заявку: пользователь получает роль SELLER. Повторное
// рассмотрение уже обработанной заявки отклоняется.
func (s *SellerService) Approve(ctx context.Context, applicationID, adminID uuid.UUID, reviewNotes *string) (*models.SellerApplication, error) {
	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repository.ErrApplicationNotFound) {
			return nil, apperror.ErrApplicationNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявку")
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, apperror.ErrAlreadyReviewed
	}

	applicant, err := s.users.GetByID(ctx, app.UserID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявителя")
	}
	if applicant.Banned {
		return nil, apperror.New(apperror.ErrCodeConflict, "заблокированный пользователь не может стать продавцом")
	}

	if err := s.applications.Approve(ctx, applicationID, app.UserID, adminID, reviewNotes); err != nil {
		if errors.Is(err, repository.ErrApplicationAlreadyReviewed) {
			return nil, apperror.ErrAlreadyReviewed
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось одобрить заявку")
	}

	s.audit.LogEvent("seller_application_approved", map[string]interface{}{
		"application_id": applicationID,
		"user_id":        app.UserID,
		"admin_id":       adminID,
	})

	s.notifyText(fmt.Sprintf("Заявка продавца %s одобрена", app.BusinessName))
	return s.applications.GetByID(ctx, applicationID)
}

// Reject отклоняет заявку с обязательной причиной не короче
// validation.MinRejectionReasonLength символов.
func (s *SellerService) Reject(ctx context.Context, applicationID, adminID uuid.UUID, rejectionReason string, reviewNotes *string) (*models.SellerApplication, error) {
	if err := validation.ValidateRejectionReason(rejectionReason); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repository.ErrApplicationNotFound) {
			return nil, apperror.ErrApplicationNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявку")
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, apperror.ErrAlreadyReviewed
	}

	if err := s.applications.Reject(ctx, applicationID, app.UserID, adminID, strings.TrimSpace(rejectionReason), reviewNotes); err != nil {
		if errors.Is(err, repository.ErrApplicationAlreadyReviewed) {
			return nil, apperror.ErrAlreadyReviewed
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отклонить заявку")
	}

	s.audit.LogEvent("seller_application_rejected", map[string]interface{}{
		"application_id": applicationID,
		"user_id":        app.UserID,
		"admin_id":       adminID,
	})

	s.notifyText(fmt.Sprintf("Заявка продавца %s отклонена", app.BusinessName))
	return s.applications.GetByID(ctx, applicationID)
}

// GetMyApplication возвращает последнюю заявку пользователя.
func (s *SellerService) GetMyApplication(ctx context.Context, userID uuid.UUID) (*models.SellerApplication, error) {
	app, err := s.applications.GetLatestByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrApplicationNotFound) {
			return nil, apperror.ErrApplicationNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявку")
	}
	return app, nil
}

// GetReapplicationEligibility сообщает, может ли пользователь подать заявку.
// Ответ вычисляется на каждый вызов из последней заявки, нигде не хранится.
func (s *SellerService) GetReapplicationEligibility(ctx context.Context, userID uuid.UUID) (*models.ReapplicationEligibility, error) {
	return s.eligibility(ctx, userID)
}

func (s *SellerService) eligibility(ctx context.Context, userID uuid.UUID) (*models.ReapplicationEligibility, error) {
	last, err := s.applications.GetLatestByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrApplicationNotFound) {
			return &models.ReapplicationEligibility{CanReapply: true}, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить историю заявок")
	}

	switch last.Status {
	case models.ApplicationStatusPending:
		return &models.ReapplicationEligibility{
			CanReapply: false,
			Reason:     "заявка уже на рассмотрении",
		}, nil
	case models.ApplicationStatusApproved:
		return &models.ReapplicationEligibility{
			CanReapply: false,
			Reason:     "заявка уже одобрена",
		}, nil
	case models.ApplicationStatusRejected:
		cooldownEnd := last.CreatedAt.Add(s.reapplyCooldown)
		if s.now().Before(cooldownEnd) {
			return &models.ReapplicationEligibility{
				CanReapply:     false,
				Reason:         "повторная подача доступна после окончания кулдауна",
				CooldownEndsAt: &cooldownEnd,
			}, nil
		}
		return &models.ReapplicationEligibility{CanReapply: true}, nil
	}

	return nil, apperror.New(apperror.ErrCodeInternal,
		fmt.Sprintf("неизвестный статус заявки: %s", last.Status))
}

// ListPending возвращает очередь заявок на рассмотрение (для администратора).
func (s *SellerService) ListPending(ctx context.Context, limit, offset int) ([]models.SellerApplication, error) {
	limit, offset = normalizePage(limit, offset)
	apps, err := s.applications.ListByStatus(ctx, models.ApplicationStatusPending, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявки")
	}
	return apps, nil
}

// ListByStatus возвращает заявки в заданном статусе (для администратора).
func (s *SellerService) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.SellerApplication, error) {
	switch status {
	case models.ApplicationStatusPending, models.ApplicationStatusApproved, models.ApplicationStatusRejected:
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый статус заявки")
	}
	limit, offset = normalizePage(limit, offset)
	apps, err := s.applications.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявки")
	}
	return apps, nil
}

func (s *SellerService) notifyText(text string) {
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.notifier.NotifyMessage(ctx, text)
	})
}

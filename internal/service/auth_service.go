package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/marketplace-backend/internal/audit"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
	"github.com/ignatzorin/marketplace-backend/internal/validation"
)

// AuthUserRepository описывает взаимодействие сервиса с хранилищем пользователей.
type AuthUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthService отвечает за регистрацию и вход.
type AuthService struct {
	users  AuthUserRepository
	tokens *TokenManager
	audit  audit.Sink
}

func NewAuthService(users AuthUserRepository, tokens *TokenManager, auditSink audit.Sink) *AuthService {
	return &AuthService{users: users, tokens: tokens, audit: auditSink}
}

// Register создаёт пользователя с ролью USER.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	name = strings.TrimSpace(name)
	if err := validation.ValidateName(name); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось захэшировать пароль")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         models.RoleUser,
		SellerStatus: models.SellerStatusNone,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailAlreadyTaken) {
			return nil, nil, apperror.New(apperror.ErrCodeConflict, "пользователь с таким email уже существует")
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать пользователя")
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}

	return user, pair, nil
}

// Login проверяет учётные данные и выпускает пару токенов.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.audit.LogEvent("login_failed", map[string]interface{}{"email": email, "reason": "unknown_email"})
			return nil, nil, apperror.ErrInvalidCredentials
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось найти пользователя")
	}

	if user.Banned {
		s.audit.LogEvent("login_failed", map[string]interface{}{"user_id": user.ID, "reason": "banned"})
		return nil, nil, apperror.ErrForbidden
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.audit.LogEvent("login_failed", map[string]interface{}{"user_id": user.ID, "reason": "wrong_password"})
		return nil, nil, apperror.ErrInvalidCredentials
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}

	return user, pair, nil
}

// Refresh выпускает новую пару токенов по refresh токену. Роль берётся из
// актуальной записи пользователя, а не из старого токена.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}
	if user.Banned {
		return nil, apperror.ErrForbidden
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}
	return pair, nil
}

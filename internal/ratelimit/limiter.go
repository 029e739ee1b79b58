package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// Limiter — квота на мутирующие операции, ключ actor:action. Превышение
// квоты — отказ, а не очередь: операция сразу завершается ошибкой RateLimited.
type Limiter interface {
	Allow(ctx context.Context, actorID, action string) error
}

// Quota — лимит операций на фиксированное окно.
type Quota struct {
	Limit  int64
	Period time.Duration
}

// Квоты операций, доступных обычным пользователям.
var (
	QuotaCheckout    = Quota{Limit: 5, Period: time.Minute}
	QuotaDispute     = Quota{Limit: 5, Period: 24 * time.Hour}
	QuotaSupport     = Quota{Limit: 20, Period: time.Minute}
	QuotaSellerApply = Quota{Limit: 3, Period: time.Hour}
	QuotaProfile     = Quota{Limit: 10, Period: time.Minute}
)

// MemoryLimiter считает операции в памяти процесса. Для распределённого
// развёртывания подменяется реализацией поверх внешнего стора.
type MemoryLimiter struct {
	store    limiter.Store
	quotas   map[string]Quota
	fallback Quota
}

// NewMemoryLimiter создаёт лимитер с отдельной квотой на каждое действие.
func NewMemoryLimiter(fallback Quota, quotas map[string]Quota) *MemoryLimiter {
	if fallback.Limit <= 0 {
		fallback = Quota{Limit: 10, Period: time.Minute}
	}
	if quotas == nil {
		quotas = map[string]Quota{}
	}
	return &MemoryLimiter{
		store:    memory.NewStore(),
		quotas:   quotas,
		fallback: fallback,
	}
}

// DefaultQuotas возвращает квоты всех мутирующих операций площадки.
func DefaultQuotas() map[string]Quota {
	return map[string]Quota{
		"checkout":       QuotaCheckout,
		"create_dispute": QuotaDispute,
		"support":        QuotaSupport,
		"seller_apply":   QuotaSellerApply,
		"update_profile": QuotaProfile,
	}
}

// Allow регистрирует попытку и возвращает ErrRateLimited при переборе квоты.
func (l *MemoryLimiter) Allow(ctx context.Context, actorID, action string) error {
	quota, ok := l.quotas[action]
	if !ok {
		quota = l.fallback
	}

	instance := limiter.New(l.store, limiter.Rate{
		Period: quota.Period,
		Limit:  quota.Limit,
	})

	key := fmt.Sprintf("%s:%s", actorID, action)
	lctx, err := instance.Get(ctx, key)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "rate limiter недоступен")
	}

	if lctx.Reached {
		return apperror.ErrRateLimited
	}
	return nil
}

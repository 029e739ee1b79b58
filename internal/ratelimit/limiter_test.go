package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

func TestMemoryLimiter_RejectsOverQuota(t *testing.T) {
	l := NewMemoryLimiter(Quota{Limit: 3, Period: time.Minute}, map[string]Quota{
		"checkout": {Limit: 3, Period: time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Allow(ctx, "user-1", "checkout"), "попытка %d", i+1)
	}

	err := l.Allow(ctx, "user-1", "checkout")
	assert.Error(t, err)
	assert.True(t, apperror.IsRateLimited(err))
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(Quota{Limit: 1, Period: time.Minute}, nil)
	ctx := context.Background()

	assert.NoError(t, l.Allow(ctx, "user-1", "checkout"))
	assert.Error(t, l.Allow(ctx, "user-1", "checkout"))

	// Другой пользователь и другое действие не задеты.
	assert.NoError(t, l.Allow(ctx, "user-2", "checkout"))
	assert.NoError(t, l.Allow(ctx, "user-1", "support"))
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l := NewMemoryLimiter(Quota{Limit: 1, Period: 50 * time.Millisecond}, map[string]Quota{
		"checkout": {Limit: 1, Period: 50 * time.Millisecond},
	})
	ctx := context.Background()

	assert.NoError(t, l.Allow(ctx, "user-1", "checkout"))
	assert.Error(t, l.Allow(ctx, "user-1", "checkout"))

	time.Sleep(80 * time.Millisecond)

	assert.NoError(t, l.Allow(ctx, "user-1", "checkout"))
}

func TestMemoryLimiter_FallbackQuota(t *testing.T) {
	l := NewMemoryLimiter(Quota{Limit: 2, Period: time.Minute}, DefaultQuotas())
	ctx := context.Background()

	// Действие без явной квоты получает дефолтную.
	assert.NoError(t, l.Allow(ctx, "user-1", "unknown_action"))
	assert.NoError(t, l.Allow(ctx, "user-1", "unknown_action"))
	assert.Error(t, l.Allow(ctx, "user-1", "unknown_action"))
}

package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

// SafeGo запускает горутину с обработкой panic. Используется для
// fire-and-forget побочных эффектов (уведомления, аудит), падение
// которых не должно ронять процесс.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithComponent("goroutine").Errorf("panic in goroutine: %v\nstack:\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithComponent("goroutine").Errorf("panic in goroutine: %v\nstack:\n%s", r, debug.Stack())
			}
		}()
		fn(ctx)
	}()
}

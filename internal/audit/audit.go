package audit

import (
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

// Sink — приёмник событий безопасности: отказы в доступе, срабатывания
// rate limiter, переходы статусов, решения администраторов. Запись события
// никогда не блокирует и не роняет вызывающую операцию.
type Sink interface {
	LogEvent(event string, details map[string]interface{})
}

// LogSink пишет события в структурированный лог.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink() *LogSink {
	return &LogSink{log: logger.WithComponent("audit")}
}

func (s *LogSink) LogEvent(event string, details map[string]interface{}) {
	fields := logrus.Fields{"event": event}
	for k, v := range details {
		fields[k] = v
	}
	s.log.WithFields(fields).Info("security event")
}

// NopSink используется в тестах.
type NopSink struct{}

func (NopSink) LogEvent(string, map[string]interface{}) {}

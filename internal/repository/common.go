package repository

import (
	"errors"

	"github.com/lib/pq"
)

// isUniqueViolation распознаёт нарушение уникального ограничения PostgreSQL.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/wanderlust/internal/model"
)

// PostgreSQLのunique_violation
const pqUniqueViolation = "23505"

// translateUniqueViolation は一意制約違反をDuplicateKeyエラーに変換する。
// それ以外のエラーはnilを返す。
func translateUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return nil
	}

	field := "value"
	switch {
	case strings.Contains(pqErr.Constraint, "email"):
		field = "email"
	case strings.Contains(pqErr.Constraint, "username"):
		field = "username"
	}
	return model.NewDuplicateKeyError(field)
}

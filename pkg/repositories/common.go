package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/database"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// conn returns the scoped connection stored in ctx by the database middleware
// or a ScopeProvider.
func conn(ctx context.Context) (*database.UserScope, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok || scope == nil || scope.Conn == nil {
		return nil, fmt.Errorf("no user scope in context")
	}
	return scope, nil
}

func normalizePageParams(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// notFound maps pgx.ErrNoRows to apperrors.ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// whereBuilder accumulates AND conditions with positional arguments.
type whereBuilder struct {
	conditions []string
	args       []any
}

func newWhere(condition string, args ...any) *whereBuilder {
	w := &whereBuilder{}
	w.add(condition, args...)
	return w
}

// add appends a condition whose placeholders are written as "?" and numbered here.
func (w *whereBuilder) add(condition string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		condition = strings.Replace(condition, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conditions = append(w.conditions, condition)
}

func (w *whereBuilder) String() string {
	return strings.Join(w.conditions, " AND ")
}

// next returns the next positional placeholder index.
func (w *whereBuilder) next() int {
	return len(w.args) + 1
}

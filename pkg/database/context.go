package database

import (
	"context"
	"fmt"
)

type contextKey string

const (
	// UserScopeKey is the context key for storing the user-scoped database connection.
	UserScopeKey contextKey = "userScope"
)

// GetUserScope retrieves the user-scoped database connection from context.
// Returns nil and false if not present.
func GetUserScope(ctx context.Context) (*UserScope, bool) {
	scope, ok := ctx.Value(UserScopeKey).(*UserScope)
	return scope, ok
}

// SetUserScope stores the user-scoped database connection in context.
func SetUserScope(ctx context.Context, scope *UserScope) context.Context {
	return context.WithValue(ctx, UserScopeKey, scope)
}

// ScopeProvider creates scoped contexts for work that does not start from an
// HTTP request: MCP tools, CLI commands and scheduled jobs.
type ScopeProvider interface {
	WithUserScope(ctx context.Context, userID string) (context.Context, func(), error)
	WithSystemScope(ctx context.Context) (context.Context, func(), error)
}

// PoolScopeProvider implements ScopeProvider on top of a DB.
type PoolScopeProvider struct {
	db *DB
}

var _ ScopeProvider = (*PoolScopeProvider)(nil)

// NewScopeProvider creates a PoolScopeProvider for the given database.
func NewScopeProvider(db *DB) *PoolScopeProvider {
	return &PoolScopeProvider{db: db}
}

// WithUserScope returns a context with a connection scoped to userID.
// The cleanup function must be called when the scope is no longer needed.
func (p *PoolScopeProvider) WithUserScope(ctx context.Context, userID string) (context.Context, func(), error) {
	scope, err := p.db.WithUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return SetUserScope(ctx, scope), func() { scope.Close() }, nil
}

// WithSystemScope returns a context with an unscoped connection.
// The cleanup function must be called when the scope is no longer needed.
func (p *PoolScopeProvider) WithSystemScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := p.db.WithoutUser(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetUserScope(ctx, scope), func() { scope.Close() }, nil
}

// RunInTx runs fn inside a transaction on the scoped connection stored in ctx.
// Repositories called from fn use the same connection, so their statements
// commit or roll back together.
func RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	scope, ok := GetUserScope(ctx)
	if !ok || scope == nil || scope.Conn == nil {
		return fmt.Errorf("no user scope in context")
	}

	if _, err := scope.Conn.Exec(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_, _ = scope.Conn.Exec(context.Background(), "ROLLBACK")
			panic(p)
		}
		if err != nil {
			_, _ = scope.Conn.Exec(context.Background(), "ROLLBACK")
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}
	if _, err = scope.Conn.Exec(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

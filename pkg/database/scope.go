package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserScope wraps a connection with user context and ensures cleanup.
// The connection has app.current_user_id set for RLS policy evaluation.
// A scope acquired with WithoutUser has no user set and sees every row.
type UserScope struct {
	Conn   *pgxpool.Conn
	UserID string
}

// IsSystem reports whether the scope was acquired without a user.
func (s *UserScope) IsSystem() bool {
	return s.UserID == ""
}

// Close resets user context and releases the connection to the pool.
// This MUST be called to prevent user context from leaking to the next request.
func (s *UserScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_user_id")
	s.Conn.Release()
}

// WithUser acquires a connection and sets the user context for RLS.
// The returned UserScope MUST be closed with defer scope.Close().
func (db *DB) WithUser(ctx context.Context, userID string) (*UserScope, error) {
	if userID == "" {
		return nil, fmt.Errorf("user scope requires a user id")
	}

	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_user_id', $1, false)", userID)
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &UserScope{Conn: conn, UserID: userID}, nil
}

// WithoutUser acquires a connection without user context.
// Use this for maintenance operations that span all users (cleanup, scheduled timeout sweeps).
// The returned UserScope MUST be closed with defer scope.Close().
func (db *DB) WithoutUser(ctx context.Context) (*UserScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &UserScope{Conn: conn}, nil
}

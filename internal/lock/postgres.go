package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLocker uses session-level advisory locks. Each held lock pins one
// pool connection until released; waiters hold a connection only while they
// try.
type PostgresLocker struct {
	pool *pgxpool.Pool
}

func NewPostgresLocker(pool *pgxpool.Pool) *PostgresLocker {
	return &PostgresLocker{pool: pool}
}

func (l *PostgresLocker) Acquire(ctx context.Context, key string, wait time.Duration) (ReleaseFunc, error) {
	var conn *pgxpool.Conn
	err := poll(ctx, wait, func() (bool, error) {
		ok, c, err := l.try(ctx, key)
		if ok {
			conn = c
		}
		return ok, err
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		var ok bool
		err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key).Scan(&ok)
		if err != nil {
			// Closing the session drops every advisory lock it holds.
			_ = conn.Hijack().Close(context.Background())
			return fmt.Errorf("advisory unlock %s: %w", key, err)
		}
		conn.Release()
		return nil
	}, nil
}

// try returns the connection only when the lock was taken on it.
func (l *PostgresLocker) try(ctx context.Context, key string) (bool, *pgxpool.Conn, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("acquire lock conn: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&ok); err != nil {
		conn.Release()
		return false, nil, fmt.Errorf("advisory lock %s: %w", key, err)
	}
	if !ok {
		conn.Release()
		return false, nil, nil
	}
	return true, conn, nil
}

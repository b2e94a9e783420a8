package session

import (
	"context"
	"errors"
	"fmt"

	"storefront-core/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context, sessionID, key string) (string, error) {
	const q = `
SELECT value
FROM storefront_session_values
WHERE session_id = $1 AND key = $2
`
	var value string
	if err := r.pool.QueryRow(ctx, q, sessionID, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *postgresRepo) Put(ctx context.Context, sessionID string, values map[string]string) error {
	if sessionID == "" {
		return errors.New("session id required")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for key, value := range values {
		if value == "" {
			if _, err := tx.Exec(ctx, `
DELETE FROM storefront_session_values
WHERE session_id = $1 AND key = $2
`, sessionID, key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO storefront_session_values (session_id, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (session_id, key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = EXCLUDED.updated_at
`, sessionID, key, value); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *postgresRepo) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM storefront_session_values WHERE session_id = $1`, sessionID)
	return err
}

package session

import (
	"context"
	"errors"
	"testing"

	"storefront-core/internal/db"
	"storefront-core/internal/domain"
	"storefront-core/internal/migrate"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgres_PutGetDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pool := testPool(ctx, t)

	require.NoError(t, migrate.Apply(ctx, pool))

	repo := NewPostgres(pool)
	sessionID := gofakeit.UUID()

	require.NoError(t, repo.Put(ctx, sessionID, map[string]string{
		KeyAuthToken: "token-1",
		KeyCartID:    "cart_1",
	}))

	token, err := repo.Get(ctx, sessionID, KeyAuthToken)
	require.NoError(t, err)
	require.Equal(t, "token-1", token)

	require.NoError(t, repo.Put(ctx, sessionID, map[string]string{KeyCartID: "cart_2"}))
	cartID, err := repo.Get(ctx, sessionID, KeyCartID)
	require.NoError(t, err)
	require.Equal(t, "cart_2", cartID)

	require.NoError(t, repo.Put(ctx, sessionID, map[string]string{KeyAuthToken: ""}))
	_, err = repo.Get(ctx, sessionID, KeyAuthToken)
	require.True(t, errors.Is(err, domain.ErrNotFound), "expected not found, got %v", err)

	require.NoError(t, repo.DeleteSession(ctx, sessionID))
	_, err = repo.Get(ctx, sessionID, KeyCartID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	container, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.WithDatabase("storefront_test"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.ConnectWith(ctx, dsn, db.PoolOptions{MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

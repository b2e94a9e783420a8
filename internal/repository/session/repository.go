package session

import "context"

// Keys persisted per storefront session.
const (
	KeyAuthToken = "auth_token"
	KeyCartID    = "cart_id"
)

// Repository is durable key-value storage scoped by storefront session id.
// Put writes all keys atomically; an empty value deletes the key.
type Repository interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Put(ctx context.Context, sessionID string, values map[string]string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

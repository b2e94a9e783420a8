package session

import (
	"context"
	"errors"

	"storefront-core/internal/domain"
	sessionrepo "storefront-core/internal/repository/session"
)

// Store persists the auth token and active cart id of one storefront session.
// It does no validation: a stored cart id may point at a cart the backend has dropped.
type Store struct {
	repo      sessionrepo.Repository
	sessionID string
}

func New(repo sessionrepo.Repository, sessionID string) *Store {
	return &Store{repo: repo, sessionID: sessionID}
}

// SessionID returns the storefront session this store is bound to.
func (s *Store) SessionID() string {
	return s.sessionID
}

func (s *Store) Token(ctx context.Context) (string, error) {
	return s.get(ctx, sessionrepo.KeyAuthToken)
}

// SetToken stores token; an empty token clears it.
func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.repo.Put(ctx, s.sessionID, map[string]string{sessionrepo.KeyAuthToken: token})
}

func (s *Store) CartID(ctx context.Context) (string, error) {
	return s.get(ctx, sessionrepo.KeyCartID)
}

// SetCartID stores id; an empty id clears it.
func (s *Store) SetCartID(ctx context.Context, id string) error {
	return s.repo.Put(ctx, s.sessionID, map[string]string{sessionrepo.KeyCartID: id})
}

// Save writes token and cart id in one durable operation.
func (s *Store) Save(ctx context.Context, token, cartID string) error {
	return s.repo.Put(ctx, s.sessionID, map[string]string{
		sessionrepo.KeyAuthToken: token,
		sessionrepo.KeyCartID:    cartID,
	})
}

// Clear removes both keys.
func (s *Store) Clear(ctx context.Context) error {
	return s.Save(ctx, "", "")
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.repo.Get(ctx, s.sessionID, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

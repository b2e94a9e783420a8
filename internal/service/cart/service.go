// Package cart owns the session's active cart: acquisition, login transfer
// and line item changes. Callers always receive copies of the snapshot.
package cart

import (
	"context"
	"fmt"
	"sync"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway"
	"storefront-core/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type cartGateway interface {
	CreateCart(ctx context.Context, regionID, token string) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID, token string) (*domain.Cart, error)
	TransferCart(ctx context.Context, cartID, token string) (*domain.Cart, error)
	AddLineItem(ctx context.Context, cartID, variantID string, quantity int, token string) (*domain.Cart, error)
	UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int, token string) (*domain.Cart, error)
	RemoveLineItem(ctx context.Context, cartID, lineItemID, token string) (gateway.RemovalResult, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
}

type sessionStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	CartID(ctx context.Context) (string, error)
	SetCartID(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

type Options struct {
	RegionID string
	Logger   *zap.Logger
}

type Service struct {
	gateway  cartGateway
	store    sessionStore
	regionID string
	logger   *zap.Logger

	acquire singleflight.Group

	mu       sync.Mutex
	cart     *domain.Cart
	updating map[string]int
}

func New(gw cartGateway, store sessionStore, opts Options) *Service {
	return &Service{
		gateway:  gw,
		store:    store,
		regionID: opts.RegionID,
		logger:   logging.OrNop(opts.Logger),
		updating: make(map[string]int),
	}
}

// EnsureCart returns the session's active cart, loading or creating it on
// first use. Concurrent callers share one acquisition.
func (s *Service) EnsureCart(ctx context.Context) (*domain.Cart, error) {
	if cart := s.Current(); cart != nil {
		return cart, nil
	}
	// The acquisition is shared, so one caller's cancellation must not fail the rest.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.acquire.Do("cart", func() (interface{}, error) {
		if cart := s.snapshot(); cart != nil {
			return cart, nil
		}
		return s.load(shared)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart).Clone(), nil
}

func (s *Service) load(ctx context.Context) (*domain.Cart, error) {
	token, err := s.store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	cartID, err := s.store.CartID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cart id: %w", err)
	}

	if cartID != "" {
		cart, err := s.gateway.GetCart(ctx, cartID, token)
		switch {
		case err == nil && !cart.IsCompleted():
			if token != "" {
				cart = s.transfer(ctx, cart, token)
			}
			s.setCart(cart)
			return cart, nil
		case err == nil:
			s.logger.Info("persisted cart already completed, starting a new one", zap.String("cart_id", cartID))
		case gateway.IsNotFound(err):
			s.logger.Info("persisted cart not found, starting a new one", zap.String("cart_id", cartID))
		default:
			return nil, fmt.Errorf("fetch cart %s: %w", cartID, err)
		}
		if err := s.store.SetCartID(ctx, ""); err != nil {
			return nil, fmt.Errorf("clear cart id: %w", err)
		}
	}
	return s.create(ctx, token)
}

// transfer moves a guest cart to the authenticated customer. On failure the
// untransferred cart is kept.
func (s *Service) transfer(ctx context.Context, cart *domain.Cart, token string) *domain.Cart {
	transferred, err := s.gateway.TransferCart(ctx, cart.ID, token)
	if err != nil {
		s.logger.Warn("cart transfer failed, keeping guest cart", zap.String("cart_id", cart.ID), zap.Error(err))
		return cart
	}
	return transferred
}

func (s *Service) create(ctx context.Context, token string) (*domain.Cart, error) {
	cart, err := s.gateway.CreateCart(ctx, s.regionID, token)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	if token != "" && cart.CustomerID == "" {
		cart = s.transfer(ctx, cart, token)
	}
	if err := s.store.SetCartID(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("persist cart id: %w", err)
	}
	s.setCart(cart)
	s.logger.Debug("cart created", zap.String("cart_id", cart.ID))
	return cart, nil
}

// Login authenticates, persists the token and re-acquires the cart so the
// guest cart is transferred to the customer.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Cart, error) {
	token, err := s.gateway.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetToken(ctx, token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	s.setCart(nil)
	return s.EnsureCart(ctx)
}

// Logout forgets the token, the cart id and the in-memory cart.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.setCart(nil)
	return nil
}

// Discard forgets the active cart so the next EnsureCart starts a new one.
func (s *Service) Discard(ctx context.Context) error {
	if err := s.store.SetCartID(ctx, ""); err != nil {
		return fmt.Errorf("clear cart id: %w", err)
	}
	s.setCart(nil)
	return nil
}

// CreateFreshCart unconditionally starts a new cart, e.g. after an order is placed.
func (s *Service) CreateFreshCart(ctx context.Context) (*domain.Cart, error) {
	token, err := s.store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	cart, err := s.create(ctx, token)
	if err != nil {
		return nil, err
	}
	return cart.Clone(), nil
}

// Refresh re-reads the current cart from the backend.
func (s *Service) Refresh(ctx context.Context) (*domain.Cart, error) {
	cartID, token, err := s.currentRef(ctx)
	if err != nil {
		return nil, err
	}
	cart, err := s.gateway.GetCart(ctx, cartID, token)
	if err != nil {
		return nil, err
	}
	s.setCart(cart)
	return cart.Clone(), nil
}

// Current returns a copy of the in-memory cart, or nil before acquisition.
func (s *Service) Current() *domain.Cart {
	return s.snapshot().Clone()
}

func (s *Service) Token(ctx context.Context) (string, error) {
	return s.store.Token(ctx)
}

// Replace installs cart as the session's snapshot and persists its id.
func (s *Service) Replace(ctx context.Context, cart *domain.Cart) error {
	if cart == nil {
		return domain.ErrNoCart
	}
	prev := s.snapshot()
	if prev == nil || prev.ID != cart.ID {
		if err := s.store.SetCartID(ctx, cart.ID); err != nil {
			return fmt.Errorf("persist cart id: %w", err)
		}
	}
	s.setCart(cart.Clone())
	return nil
}

// currentRef resolves the cart id to operate on without creating a cart.
// CartID returns the active cart's id, or the persisted one when nothing is
// loaded yet. It is empty when the session has no cart.
func (s *Service) CartID(ctx context.Context) (string, error) {
	if cart := s.snapshot(); cart != nil {
		return cart.ID, nil
	}
	return s.store.CartID(ctx)
}

func (s *Service) currentRef(ctx context.Context) (string, string, error) {
	token, err := s.store.Token(ctx)
	if err != nil {
		return "", "", fmt.Errorf("read token: %w", err)
	}
	if cart := s.snapshot(); cart != nil {
		return cart.ID, token, nil
	}
	cartID, err := s.store.CartID(ctx)
	if err != nil {
		return "", "", fmt.Errorf("read cart id: %w", err)
	}
	if cartID == "" {
		return "", "", domain.ErrNoCart
	}
	return cartID, token, nil
}

func (s *Service) snapshot() *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}

func (s *Service) setCart(cart *domain.Cart) {
	s.mu.Lock()
	s.cart = cart
	s.mu.Unlock()
}

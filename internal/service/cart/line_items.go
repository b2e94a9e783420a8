package cart

import (
	"context"
	"fmt"
	"sort"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway"

	"go.uber.org/zap"
)

// AddToCart adds quantity of variantID. If the backend no longer knows the
// cart, a new one is created and the add is retried exactly once.
func (s *Service) AddToCart(ctx context.Context, variantID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	s.markUpdating(variantID)
	defer s.clearUpdating(variantID)

	cart, err := s.EnsureCart(ctx)
	if err != nil {
		return nil, err
	}
	token, err := s.store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	updated, err := s.gateway.AddLineItem(ctx, cart.ID, variantID, quantity, token)
	if gateway.IsNotFound(err) && s.cartGone(ctx, cart.ID, token) {
		s.logger.Info("cart vanished during add, recreating", zap.String("cart_id", cart.ID), zap.String("variant_id", variantID))
		if err := s.store.SetCartID(ctx, ""); err != nil {
			return nil, fmt.Errorf("clear cart id: %w", err)
		}
		s.setCart(nil)
		fresh, err := s.create(ctx, token)
		if err != nil {
			return nil, err
		}
		updated, err = s.gateway.AddLineItem(ctx, fresh.ID, variantID, quantity, token)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	s.setCart(updated)
	return updated.Clone(), nil
}

// cartGone tells a missing cart apart from a 404 about the variant. An open
// cart found on re-read replaces the cached one.
func (s *Service) cartGone(ctx context.Context, cartID, token string) bool {
	cart, err := s.gateway.GetCart(ctx, cartID, token)
	switch {
	case gateway.IsNotFound(err):
		return true
	case err != nil:
		s.logger.Warn("re-read cart after failed add", zap.String("cart_id", cartID), zap.Error(err))
		return false
	case cart.IsCompleted():
		return true
	}
	s.setCart(cart)
	return false
}

// UpdateQuantity sets a line's quantity. Zero or negative quantities are ignored;
// removal goes through RemoveFromCart.
func (s *Service) UpdateQuantity(ctx context.Context, lineItemID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return s.Current(), nil
	}
	s.markUpdating(lineItemID)
	defer s.clearUpdating(lineItemID)

	cart, err := s.EnsureCart(ctx)
	if err != nil {
		return nil, err
	}
	token, err := s.store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	updated, err := s.gateway.UpdateLineItem(ctx, cart.ID, lineItemID, quantity, token)
	if err != nil {
		return nil, err
	}
	s.setCart(updated)
	return updated.Clone(), nil
}

// RemoveFromCart deletes a line. It never creates a cart: a stale reference
// only triggers one refresh.
func (s *Service) RemoveFromCart(ctx context.Context, lineItemID string) (*domain.Cart, error) {
	s.markUpdating(lineItemID)
	defer s.clearUpdating(lineItemID)

	cartID, token, err := s.currentRef(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.RemoveLineItem(ctx, cartID, lineItemID, token)
	if err != nil {
		if !gateway.IsNotFound(err) {
			return nil, err
		}
		s.logger.Info("line item or cart not found on remove, refreshing", zap.String("cart_id", cartID), zap.String("line_item_id", lineItemID))
		refreshed, rerr := s.gateway.GetCart(ctx, cartID, token)
		if rerr != nil {
			return nil, err
		}
		s.setCart(refreshed)
		return refreshed.Clone(), nil
	}

	if res.Cart != nil {
		s.setCart(res.Cart)
		return res.Cart.Clone(), nil
	}
	if res.CartID != "" {
		cartID = res.CartID
	}
	refetched, err := s.gateway.GetCart(ctx, cartID, token)
	if err != nil {
		return nil, fmt.Errorf("refetch cart after remove: %w", err)
	}
	s.setCart(refetched)
	return refetched.Clone(), nil
}

// IsUpdating reports whether an operation on id is in flight.
func (s *Service) IsUpdating(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updating[id] > 0
}

func (s *Service) UpdatingItems() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.updating))
	for id := range s.updating {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Service) markUpdating(id string) {
	s.mu.Lock()
	s.updating[id]++
	s.mu.Unlock()
}

func (s *Service) clearUpdating(id string) {
	s.mu.Lock()
	if s.updating[id] <= 1 {
		delete(s.updating, id)
	} else {
		s.updating[id]--
	}
	s.mu.Unlock()
}

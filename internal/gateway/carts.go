package gateway

import (
	"context"
	"net/http"

	"storefront-core/internal/domain"
)

// CartUpdate is the partial cart body; nil fields are left untouched.
type CartUpdate struct {
	Email           string          `json:"email,omitempty"`
	RegionID        string          `json:"region_id,omitempty"`
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
	BillingAddress  *domain.Address `json:"billing_address,omitempty"`
}

type createCartRequest struct {
	RegionID string `json:"region_id,omitempty"`
}

func (c *Client) CreateCart(ctx context.Context, regionID, token string) (*domain.Cart, error) {
	body, err := c.do(ctx, http.MethodPost, storePath("/carts"), nil, createCartRequest{RegionID: regionID}, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

func (c *Client) GetCart(ctx context.Context, cartID, token string) (*domain.Cart, error) {
	body, err := c.do(ctx, http.MethodGet, storePath("/carts/%s", cartID), nil, nil, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

func (c *Client) UpdateCart(ctx context.Context, cartID string, update CartUpdate, token string) (*domain.Cart, error) {
	body, err := c.do(ctx, http.MethodPost, storePath("/carts/%s", cartID), nil, update, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

// TransferCart assigns a guest cart to the customer identified by token.
func (c *Client) TransferCart(ctx context.Context, cartID, token string) (*domain.Cart, error) {
	body, err := c.do(ctx, http.MethodPost, storePath("/carts/%s/transfer", cartID), nil, struct{}{}, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

// CompleteCart places the order. A refusal is returned as *APIError.
func (c *Client) CompleteCart(ctx context.Context, cartID, token string) (*domain.Order, error) {
	body, err := c.do(ctx, http.MethodPost, storePath("/carts/%s/complete", cartID), nil, struct{}{}, token)
	if err != nil {
		return nil, err
	}
	return decodeCompletion(body)
}

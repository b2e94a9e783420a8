package gateway

import (
	"context"
	"net/http"

	"storefront-core/internal/domain"
)

type addLineItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type updateLineItemRequest struct {
	Quantity int `json:"quantity"`
}

func (c *Client) AddLineItem(ctx context.Context, cartID, variantID string, quantity int, token string) (*domain.Cart, error) {
	req := addLineItemRequest{VariantID: variantID, Quantity: quantity}
	body, err := c.do(ctx, http.MethodPost, storePath("/carts/%s/line-items", cartID), nil, req, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

func (c *Client) UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int, token string) (*domain.Cart, error) {
	body, err := c.do(ctx, http.MethodPost, storePath("/carts/%s/line-items/%s", cartID, lineItemID), nil, updateLineItemRequest{Quantity: quantity}, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

// RemoveLineItem deletes a line. The backend may or may not echo the cart back;
// RemovalResult.Cart is nil when it did not.
func (c *Client) RemoveLineItem(ctx context.Context, cartID, lineItemID, token string) (RemovalResult, error) {
	body, err := c.do(ctx, http.MethodDelete, storePath("/carts/%s/line-items/%s", cartID, lineItemID), nil, nil, token)
	if err != nil {
		return RemovalResult{}, err
	}
	result, err := decodeRemoval(body)
	if err != nil {
		return RemovalResult{}, err
	}
	if result.CartID == "" {
		result.CartID = cartID
	}
	return result, nil
}

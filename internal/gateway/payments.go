package gateway

import (
	"context"
	"net/http"

	"storefront-core/internal/domain"
)

type createPaymentCollectionRequest struct {
	CartID string `json:"cart_id"`
}

type initPaymentSessionRequest struct {
	ProviderID string                 `json:"provider_id"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func (c *Client) CreatePaymentCollection(ctx context.Context, cartID, token string) (*domain.PaymentCollection, error) {
	body, err := c.do(ctx, http.MethodPost, storePath("/payment-collections"), nil, createPaymentCollectionRequest{CartID: cartID}, token)
	if err != nil {
		return nil, err
	}
	return decodePaymentCollection(body)
}

// InitPaymentSession opens a session with providerID and returns the updated collection.
func (c *Client) InitPaymentSession(ctx context.Context, collectionID, providerID string, data map[string]interface{}, token string) (*domain.PaymentCollection, error) {
	req := initPaymentSessionRequest{ProviderID: providerID, Data: data}
	body, err := c.do(ctx, http.MethodPost, storePath("/payment-collections/%s/payment-sessions", collectionID), nil, req, token)
	if err != nil {
		return nil, err
	}
	return decodePaymentCollection(body)
}

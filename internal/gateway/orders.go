package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"storefront-core/internal/domain"
)

// ListOrdersParams pages through the customer's orders, newest first by default.
type ListOrdersParams struct {
	Limit  int
	Offset int
	Order  string
}

type createReturnRequest struct {
	OrderID string              `json:"order_id"`
	Items   []domain.ReturnItem `json:"items"`
	Reason  string              `json:"reason,omitempty"`
}

func (c *Client) ListOrders(ctx context.Context, params ListOrdersParams, token string) ([]domain.Order, error) {
	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}
	order := params.Order
	if order == "" {
		order = "-created_at"
	}
	query.Set("order", order)

	body, err := c.do(ctx, http.MethodGet, storePath("/orders"), query, nil, token)
	if err != nil {
		return nil, err
	}
	return decodeOrders(body)
}

func (c *Client) GetOrder(ctx context.Context, orderID, token string) (*domain.Order, error) {
	body, err := c.do(ctx, http.MethodGet, storePath("/orders/%s", orderID), nil, nil, token)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

func (c *Client) CreateReturn(ctx context.Context, req domain.ReturnRequest, token string) (*domain.Return, error) {
	payload := createReturnRequest{OrderID: req.OrderID, Items: req.Items, Reason: req.Reason}
	body, err := c.do(ctx, http.MethodPost, storePath("/returns"), nil, payload, token)
	if err != nil {
		return nil, err
	}
	return decodeReturn(body)
}

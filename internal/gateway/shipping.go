package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"storefront-core/internal/domain"

	"github.com/shopspring/decimal"
)

type rateQuoteRequest struct {
	CartID      string `json:"cart_id"`
	PaymentType string `json:"payment_type"`
}

type addShippingMethodRequest struct {
	OptionID string                 `json:"option_id"`
	Amount   *json.Number           `json:"amount,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

func (c *Client) ListShippingOptions(ctx context.Context, cartID, token string) ([]domain.ShippingOption, error) {
	query := url.Values{"cart_id": []string{cartID}}
	body, err := c.do(ctx, http.MethodGet, storePath("/shipping-options"), query, nil, token)
	if err != nil {
		return nil, err
	}
	return decodeShippingOptions(body)
}

// QuoteShippingRates asks the carrier rate service for live prices. Online
// payment is quoted as prepaid.
func (c *Client) QuoteShippingRates(ctx context.Context, cartID string, mode domain.PaymentMode, token string) ([]domain.RateQuote, error) {
	paymentType := "cod"
	if mode == domain.PaymentModeOnline {
		paymentType = "prepaid"
	}
	body, err := c.do(ctx, http.MethodPost, storePath("/shipping/rates"), nil, rateQuoteRequest{CartID: cartID, PaymentType: paymentType}, token)
	if err != nil {
		return nil, err
	}
	return decodeRateQuotes(body)
}

func (c *Client) AddShippingMethod(ctx context.Context, cartID, optionID, token string) (*domain.Cart, error) {
	body, err := c.do(ctx, http.MethodPost, storePath("/carts/%s/shipping-methods", cartID), nil, addShippingMethodRequest{OptionID: optionID}, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

// AddQuotedShippingMethod attaches an option at a live-quoted amount.
func (c *Client) AddQuotedShippingMethod(ctx context.Context, cartID, optionID string, amount decimal.Decimal, data map[string]interface{}, token string) (*domain.Cart, error) {
	n := json.Number(amount.String())
	req := addShippingMethodRequest{OptionID: optionID, Amount: &n, Data: data}
	body, err := c.do(ctx, http.MethodPost, storePath("/carts/%s/shipping-methods/quoted", cartID), nil, req, token)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

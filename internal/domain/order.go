package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                string          `json:"id"`
	DisplayID         int             `json:"display_id,omitempty"`
	Status            string          `json:"status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	PaymentStatus     string          `json:"payment_status"`
	Email             string          `json:"email,omitempty"`
	CurrencyCode      string          `json:"currency_code,omitempty"`
	Items             []LineItem      `json:"items"`
	ShippingAddress   *Address        `json:"shipping_address,omitempty"`
	BillingAddress    *Address        `json:"billing_address,omitempty"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	TaxTotal          decimal.Decimal `json:"tax_total"`
	ShippingTotal     decimal.Decimal `json:"shipping_total"`
	Total             decimal.Decimal `json:"total"`
	CreatedAt         time.Time       `json:"created_at"`
}

// IsDelivered reports whether a return may be requested.
func (o Order) IsDelivered() bool {
	switch strings.ToLower(o.FulfillmentStatus) {
	case "delivered", "partially_delivered":
		return true
	}
	return false
}

type ReturnItem struct {
	LineItemID string `json:"id"`
	Quantity   int    `json:"quantity"`
}

type ReturnRequest struct {
	OrderID string       `json:"order_id"`
	Items   []ReturnItem `json:"items"`
	Reason  string       `json:"reason,omitempty"`
}

type Return struct {
	ID      string       `json:"id"`
	OrderID string       `json:"order_id"`
	Status  string       `json:"status"`
	Items   []ReturnItem `json:"items"`
}

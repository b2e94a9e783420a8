package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the canonical cart shape produced by the gateway normalizers.
type Cart struct {
	ID                string             `json:"id"`
	RegionID          string             `json:"region_id,omitempty"`
	CustomerID        string             `json:"customer_id,omitempty"`
	Email             string             `json:"email,omitempty"`
	CurrencyCode      string             `json:"currency_code,omitempty"`
	Items             []LineItem         `json:"items"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	BillingAddress    *Address           `json:"billing_address,omitempty"`
	ShippingMethods   []ShippingMethod   `json:"shipping_methods,omitempty"`
	PaymentCollection *PaymentCollection `json:"payment_collection,omitempty"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	TaxTotal          decimal.Decimal    `json:"tax_total"`
	ShippingTotal     decimal.Decimal    `json:"shipping_total"`
	Total             decimal.Decimal    `json:"total"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

type LineItem struct {
	ID        string          `json:"id"`
	CartID    string          `json:"cart_id,omitempty"`
	VariantID string          `json:"variant_id"`
	ProductID string          `json:"product_id,omitempty"`
	Title     string          `json:"title"`
	Thumbnail string          `json:"thumbnail,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

type ShippingMethod struct {
	ID               string          `json:"id"`
	ShippingOptionID string          `json:"shipping_option_id"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
}

// ComputedTotal returns subtotal + tax + shipping.
func (c Cart) ComputedTotal() decimal.Decimal {
	return c.Subtotal.Add(c.TaxTotal).Add(c.ShippingTotal)
}

// ItemsSubtotal sums the line totals.
func (c Cart) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Total)
	}
	return sum
}

// IsCompleted reports whether the backend already turned this cart into an order.
func (c Cart) IsCompleted() bool {
	return c.CompletedAt != nil
}

// HasShippingMethod reports whether at least one shipping method is attached.
func (c Cart) HasShippingMethod() bool {
	return len(c.ShippingMethods) > 0
}

func (c Cart) FindItem(lineItemID string) (LineItem, bool) {
	for _, item := range c.Items {
		if item.ID == lineItemID {
			return item, true
		}
	}
	return LineItem{}, false
}

// ItemCount is the total quantity across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Clone returns a deep enough copy for handing the snapshot to callers.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = append([]LineItem(nil), c.Items...)
	out.ShippingMethods = append([]ShippingMethod(nil), c.ShippingMethods...)
	if c.ShippingAddress != nil {
		addr := *c.ShippingAddress
		out.ShippingAddress = &addr
	}
	if c.BillingAddress != nil {
		addr := *c.BillingAddress
		out.BillingAddress = &addr
	}
	if c.PaymentCollection != nil {
		pc := *c.PaymentCollection
		pc.Sessions = append([]PaymentSession(nil), c.PaymentCollection.Sessions...)
		out.PaymentCollection = &pc
	}
	return &out
}

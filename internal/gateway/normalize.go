package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront-core/internal/domain"

	"github.com/shopspring/decimal"
)

// Wire shapes. Totals are pointers so an absent field can be told apart from zero.

type wireLineItem struct {
	ID           string           `json:"id"`
	CartID       string           `json:"cart_id"`
	VariantID    string           `json:"variant_id"`
	ProductID    string           `json:"product_id"`
	Title        string           `json:"title"`
	ProductTitle string           `json:"product_title"`
	Thumbnail    string           `json:"thumbnail"`
	Quantity     int              `json:"quantity"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	Total        *decimal.Decimal `json:"total"`
	Subtotal     *decimal.Decimal `json:"subtotal"`
}

type wireShippingMethod struct {
	ID               string           `json:"id"`
	ShippingOptionID string           `json:"shipping_option_id"`
	Name             string           `json:"name"`
	Amount           *decimal.Decimal `json:"amount"`
	Total            *decimal.Decimal `json:"total"`
}

type wirePaymentSession struct {
	ID           string                 `json:"id"`
	ProviderID   string                 `json:"provider_id"`
	Status       string                 `json:"status"`
	Amount       decimal.Decimal        `json:"amount"`
	CurrencyCode string                 `json:"currency_code"`
	Data         map[string]interface{} `json:"data"`
}

type wirePaymentCollection struct {
	ID              string               `json:"id"`
	Status          string               `json:"status"`
	Amount          decimal.Decimal      `json:"amount"`
	CurrencyCode    string               `json:"currency_code"`
	PaymentSessions []wirePaymentSession `json:"payment_sessions"`
}

type wireCart struct {
	ID                string                 `json:"id"`
	RegionID          string                 `json:"region_id"`
	CustomerID        string                 `json:"customer_id"`
	Email             string                 `json:"email"`
	CurrencyCode      string                 `json:"currency_code"`
	Items             []wireLineItem         `json:"items"`
	ShippingAddress   *domain.Address        `json:"shipping_address"`
	BillingAddress    *domain.Address        `json:"billing_address"`
	ShippingMethods   []wireShippingMethod   `json:"shipping_methods"`
	PaymentCollection *wirePaymentCollection `json:"payment_collection"`
	Subtotal          *decimal.Decimal       `json:"subtotal"`
	ItemSubtotal      *decimal.Decimal       `json:"item_subtotal"`
	TaxTotal          *decimal.Decimal       `json:"tax_total"`
	ShippingTotal     *decimal.Decimal       `json:"shipping_total"`
	Total             *decimal.Decimal       `json:"total"`
	CompletedAt       *time.Time             `json:"completed_at"`
	CreatedAt         time.Time              `json:"created_at"`
}

type wireOrder struct {
	ID                string           `json:"id"`
	DisplayID         int              `json:"display_id"`
	Status            string           `json:"status"`
	FulfillmentStatus string           `json:"fulfillment_status"`
	PaymentStatus     string           `json:"payment_status"`
	Email             string           `json:"email"`
	CurrencyCode      string           `json:"currency_code"`
	Items             []wireLineItem   `json:"items"`
	ShippingAddress   *domain.Address  `json:"shipping_address"`
	BillingAddress    *domain.Address  `json:"billing_address"`
	Subtotal          *decimal.Decimal `json:"subtotal"`
	ItemSubtotal      *decimal.Decimal `json:"item_subtotal"`
	TaxTotal          *decimal.Decimal `json:"tax_total"`
	ShippingTotal     *decimal.Decimal `json:"shipping_total"`
	Total             *decimal.Decimal `json:"total"`
	CreatedAt         time.Time        `json:"created_at"`
}

type wireCalculatedPrice struct {
	CalculatedAmount *decimal.Decimal `json:"calculated_amount"`
}

type wireShippingOptionType struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type wireShippingOption struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Amount          *decimal.Decimal        `json:"amount"`
	CalculatedPrice *wireCalculatedPrice    `json:"calculated_price"`
	Type            *wireShippingOptionType `json:"type"`
	Metadata        map[string]interface{}  `json:"metadata"`
}

type wireRateQuote struct {
	Type        string          `json:"type"`
	ServiceType string          `json:"service_type"`
	Amount      decimal.Decimal `json:"amount"`
	ETA         string          `json:"eta"`
	ETADays     int             `json:"eta_days"`
	Carrier     string          `json:"carrier"`
}

type wireCustomerAddress struct {
	domain.Address
	ID                string `json:"id"`
	IsDefaultShipping bool   `json:"is_default_shipping"`
	IsDefaultBilling  bool   `json:"is_default_billing"`
}

type wireCustomer struct {
	ID        string                `json:"id"`
	Email     string                `json:"email"`
	FirstName string                `json:"first_name"`
	LastName  string                `json:"last_name"`
	Phone     string                `json:"phone"`
	Addresses []wireCustomerAddress `json:"addresses"`
	CreatedAt time.Time             `json:"created_at"`
}

type wireReturn struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Items   []struct {
		ID       string `json:"id"`
		ItemID   string `json:"item_id"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
}

// unwrap returns the payload stored under key, or body itself when the
// backend answered with the bare entity.
func unwrap(body []byte, key string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode %s: empty response", key)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s envelope: %w", key, err)
	}
	if raw, ok := envelope[key]; ok && !isNull(raw) {
		return raw, nil
	}
	return trimmed, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeEntity(body []byte, key string, out interface{}) error {
	raw, err := unwrap(body, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func decodeCart(body []byte) (*domain.Cart, error) {
	var w wireCart
	if err := decodeEntity(body, "cart", &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, fmt.Errorf("decode cart: missing id")
	}
	return normalizeCart(w), nil
}

func normalizeLineItems(in []wireLineItem) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(in))
	for _, w := range in {
		title := w.Title
		if title == "" {
			title = w.ProductTitle
		}
		total := w.UnitPrice.Mul(decimal.NewFromInt(int64(w.Quantity)))
		if w.Total != nil {
			total = *w.Total
		} else if w.Subtotal != nil {
			total = *w.Subtotal
		}
		items = append(items, domain.LineItem{
			ID:        w.ID,
			CartID:    w.CartID,
			VariantID: w.VariantID,
			ProductID: w.ProductID,
			Title:     title,
			Thumbnail: w.Thumbnail,
			Quantity:  w.Quantity,
			UnitPrice: w.UnitPrice,
			Total:     total,
		})
	}
	return items
}

type totals struct {
	subtotal, tax, shipping, total decimal.Decimal
}

// computeTotals fills whatever the backend left out. The grand total is only
// derived when absent; a supplied total is trusted as-is.
func computeTotals(items []domain.LineItem, shippingSum decimal.Decimal, subtotal, itemSubtotal, tax, shipping, total *decimal.Decimal) totals {
	var out totals
	switch {
	case subtotal != nil:
		out.subtotal = *subtotal
	case itemSubtotal != nil:
		out.subtotal = *itemSubtotal
	default:
		out.subtotal = decimal.Zero
		for _, item := range items {
			out.subtotal = out.subtotal.Add(item.Total)
		}
	}
	out.tax = decimal.Zero
	if tax != nil {
		out.tax = *tax
	}
	out.shipping = shippingSum
	if shipping != nil {
		out.shipping = *shipping
	}
	if total != nil {
		out.total = *total
	} else {
		out.total = out.subtotal.Add(out.tax).Add(out.shipping)
	}
	return out
}

func normalizeCart(w wireCart) *domain.Cart {
	items := normalizeLineItems(w.Items)

	methods := make([]domain.ShippingMethod, 0, len(w.ShippingMethods))
	shippingSum := decimal.Zero
	for _, m := range w.ShippingMethods {
		amount := decimal.Zero
		if m.Amount != nil {
			amount = *m.Amount
		} else if m.Total != nil {
			amount = *m.Total
		}
		shippingSum = shippingSum.Add(amount)
		methods = append(methods, domain.ShippingMethod{
			ID:               m.ID,
			ShippingOptionID: m.ShippingOptionID,
			Name:             m.Name,
			Amount:           amount,
		})
	}

	t := computeTotals(items, shippingSum, w.Subtotal, w.ItemSubtotal, w.TaxTotal, w.ShippingTotal, w.Total)
	cart := &domain.Cart{
		ID:              w.ID,
		RegionID:        w.RegionID,
		CustomerID:      w.CustomerID,
		Email:           w.Email,
		CurrencyCode:    strings.ToLower(w.CurrencyCode),
		Items:           items,
		ShippingAddress: w.ShippingAddress,
		BillingAddress:  w.BillingAddress,
		ShippingMethods: methods,
		Subtotal:        t.subtotal,
		TaxTotal:        t.tax,
		ShippingTotal:   t.shipping,
		Total:           t.total,
		CompletedAt:     w.CompletedAt,
		CreatedAt:       w.CreatedAt,
	}
	if w.PaymentCollection != nil {
		cart.PaymentCollection = normalizePaymentCollection(*w.PaymentCollection)
	}
	return cart
}

func normalizePaymentCollection(w wirePaymentCollection) *domain.PaymentCollection {
	pc := &domain.PaymentCollection{
		ID:           w.ID,
		Status:       domain.NormalizePaymentStatus(w.Status),
		Amount:       w.Amount,
		CurrencyCode: strings.ToLower(w.CurrencyCode),
	}
	for _, s := range w.PaymentSessions {
		pc.Sessions = append(pc.Sessions, domain.PaymentSession{
			ID:           s.ID,
			ProviderID:   s.ProviderID,
			Status:       domain.NormalizePaymentStatus(s.Status),
			Amount:       s.Amount,
			CurrencyCode: strings.ToLower(s.CurrencyCode),
			Data:         s.Data,
		})
	}
	return pc
}

func decodePaymentCollection(body []byte) (*domain.PaymentCollection, error) {
	var w wirePaymentCollection
	if err := decodeEntity(body, "payment_collection", &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, fmt.Errorf("decode payment collection: missing id")
	}
	return normalizePaymentCollection(w), nil
}

func normalizeOrder(w wireOrder) domain.Order {
	items := normalizeLineItems(w.Items)
	t := computeTotals(items, decimal.Zero, w.Subtotal, w.ItemSubtotal, w.TaxTotal, w.ShippingTotal, w.Total)
	return domain.Order{
		ID:                w.ID,
		DisplayID:         w.DisplayID,
		Status:            w.Status,
		FulfillmentStatus: w.FulfillmentStatus,
		PaymentStatus:     w.PaymentStatus,
		Email:             w.Email,
		CurrencyCode:      strings.ToLower(w.CurrencyCode),
		Items:             items,
		ShippingAddress:   w.ShippingAddress,
		BillingAddress:    w.BillingAddress,
		Subtotal:          t.subtotal,
		TaxTotal:          t.tax,
		ShippingTotal:     t.shipping,
		Total:             t.total,
		CreatedAt:         w.CreatedAt,
	}
}

func decodeOrder(body []byte) (*domain.Order, error) {
	var w wireOrder
	if err := decodeEntity(body, "order", &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, fmt.Errorf("decode order: missing id")
	}
	order := normalizeOrder(w)
	return &order, nil
}

func decodeOrders(body []byte) ([]domain.Order, error) {
	var ws []wireOrder
	if err := decodeList(body, "orders", &ws); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(ws))
	for _, w := range ws {
		orders = append(orders, normalizeOrder(w))
	}
	return orders, nil
}

// decodeList accepts either {"<key>": [...]} or a bare array.
func decodeList(body []byte, key string, out interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return fmt.Errorf("decode %s envelope: %w", key, err)
	}
	raw, ok := envelope[key]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func normalizeShippingOption(w wireShippingOption) domain.ShippingOption {
	amount := decimal.Zero
	switch {
	case w.Amount != nil:
		amount = *w.Amount
	case w.CalculatedPrice != nil && w.CalculatedPrice.CalculatedAmount != nil:
		amount = *w.CalculatedPrice.CalculatedAmount
	}
	opt := domain.ShippingOption{
		ID:       w.ID,
		Name:     w.Name,
		Amount:   amount,
		Metadata: w.Metadata,
	}
	if w.Type != nil {
		opt.Type = strings.ToLower(strings.TrimSpace(w.Type.Code))
	}
	return opt
}

func decodeShippingOptions(body []byte) ([]domain.ShippingOption, error) {
	var ws []wireShippingOption
	if err := decodeList(body, "shipping_options", &ws); err != nil {
		return nil, err
	}
	options := make([]domain.ShippingOption, 0, len(ws))
	for _, w := range ws {
		options = append(options, normalizeShippingOption(w))
	}
	return options, nil
}

func decodeRateQuotes(body []byte) ([]domain.RateQuote, error) {
	var ws []wireRateQuote
	if err := decodeList(body, "rates", &ws); err != nil {
		return nil, err
	}
	quotes := make([]domain.RateQuote, 0, len(ws))
	for _, w := range ws {
		typ := w.Type
		if typ == "" {
			typ = w.ServiceType
		}
		quotes = append(quotes, domain.RateQuote{
			Type:    strings.ToLower(strings.TrimSpace(typ)),
			Amount:  w.Amount,
			ETA:     w.ETA,
			ETADays: w.ETADays,
			Carrier: w.Carrier,
		})
	}
	return quotes, nil
}

func normalizeCustomer(w wireCustomer) *domain.Customer {
	c := &domain.Customer{
		ID:        w.ID,
		Email:     w.Email,
		FirstName: w.FirstName,
		LastName:  w.LastName,
		Phone:     w.Phone,
		CreatedAt: w.CreatedAt,
	}
	for _, a := range w.Addresses {
		c.Addresses = append(c.Addresses, normalizeCustomerAddress(a))
	}
	return c
}

func normalizeCustomerAddress(w wireCustomerAddress) domain.CustomerAddress {
	return domain.CustomerAddress{
		Address:           w.Address,
		ID:                w.ID,
		IsDefaultShipping: w.IsDefaultShipping,
		IsDefaultBilling:  w.IsDefaultBilling,
	}
}

func decodeCustomer(body []byte) (*domain.Customer, error) {
	var w wireCustomer
	if err := decodeEntity(body, "customer", &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, fmt.Errorf("decode customer: missing id")
	}
	return normalizeCustomer(w), nil
}

func decodeAddresses(body []byte) ([]domain.CustomerAddress, error) {
	var ws []wireCustomerAddress
	if err := decodeList(body, "addresses", &ws); err != nil {
		return nil, err
	}
	out := make([]domain.CustomerAddress, 0, len(ws))
	for _, w := range ws {
		out = append(out, normalizeCustomerAddress(w))
	}
	return out, nil
}

func decodeReturn(body []byte) (*domain.Return, error) {
	var w wireReturn
	if err := decodeEntity(body, "return", &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, fmt.Errorf("decode return: missing id")
	}
	ret := &domain.Return{ID: w.ID, OrderID: w.OrderID, Status: w.Status}
	for _, item := range w.Items {
		id := item.ItemID
		if id == "" {
			id = item.ID
		}
		ret.Items = append(ret.Items, domain.ReturnItem{LineItemID: id, Quantity: item.Quantity})
	}
	return ret, nil
}

// RemovalResult is what a line item delete told us. Cart is nil when the
// backend did not send a full cart and the caller has to re-fetch.
type RemovalResult struct {
	CartID  string
	Deleted bool
	Cart    *domain.Cart
}

// decodeRemoval accepts an empty body, {"id","object","deleted","parent": cart},
// {"cart": cart} or a bare cart.
func decodeRemoval(body []byte) (RemovalResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return RemovalResult{}, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return RemovalResult{}, fmt.Errorf("decode removal: %w", err)
	}

	var result RemovalResult
	if raw, ok := envelope["deleted"]; ok {
		_ = json.Unmarshal(raw, &result.Deleted)
	}
	for _, key := range []string{"cart", "parent"} {
		raw, ok := envelope[key]
		if !ok || isNull(raw) {
			continue
		}
		cart, id, err := fullCart(raw)
		if err != nil {
			return RemovalResult{}, err
		}
		result.CartID = id
		result.Cart = cart
		return result, nil
	}

	var object string
	if raw, ok := envelope["object"]; ok {
		_ = json.Unmarshal(raw, &object)
	}
	if object == "" || object == "cart" {
		cart, id, err := fullCart(trimmed)
		if err != nil {
			return RemovalResult{}, err
		}
		if cart != nil {
			result.CartID = id
			result.Cart = cart
		}
	}
	return result, nil
}

// fullCart decodes raw as a cart only when it carries its items; a partial
// parent reference yields just the id.
func fullCart(raw json.RawMessage) (*domain.Cart, string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, "", fmt.Errorf("decode removal cart: %w", err)
	}
	var id string
	if rawID, ok := probe["id"]; ok {
		_ = json.Unmarshal(rawID, &id)
	}
	if _, hasItems := probe["items"]; !hasItems || id == "" {
		return nil, id, nil
	}
	var w wireCart
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, "", fmt.Errorf("decode removal cart: %w", err)
	}
	return normalizeCart(w), id, nil
}

type completionEnvelope struct {
	Type  string          `json:"type"`
	Order json.RawMessage `json:"order"`
	Cart  json.RawMessage `json:"cart"`
	Error *struct {
		Message string `json:"message"`
		Name    string `json:"name"`
		Type    string `json:"type"`
	} `json:"error"`
}

// decodeCompletion turns a completion reply into the placed order. A reply
// that hands the cart back is a refusal and becomes an APIError.
func decodeCompletion(body []byte) (*domain.Order, error) {
	var env completionEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(body), &env); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if env.Type == "cart" || (isNull(env.Order) && !isNull(env.Cart)) {
		apiErr := &APIError{Status: http.StatusConflict, Message: "cart could not be completed"}
		if env.Error != nil {
			apiErr.Message = env.Error.Message
			apiErr.Type = env.Error.Type
			apiErr.Code = env.Error.Name
		}
		return nil, apiErr
	}
	return decodeOrder(body)
}

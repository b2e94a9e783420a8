// Package gatewaytest provides an in-memory commerce backend with the same
// method set as gateway.Client, for service and handler tests.
package gatewaytest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway"

	"github.com/shopspring/decimal"
)

// RemovalShape selects how RemoveLineItem answers.
type RemovalShape int

const (
	RemovalFullCart RemovalShape = iota
	RemovalParentRef
	RemovalEmpty
)

type Variant struct {
	Title string
	Price decimal.Decimal
	// Stock < 0 means unlimited.
	Stock int
}

// Backend is safe for concurrent use. Exported maps may be seeded before use.
type Backend struct {
	mu sync.Mutex

	Variants    map[string]Variant
	Options     []domain.ShippingOption
	Quotes      []domain.RateQuote
	Passwords   map[string]string
	Removal     RemovalShape
	CreateDelay time.Duration

	// OnGetCart runs under the lock on every successful GetCart with the
	// 1-based call number; tests use it to move payment status along.
	OnGetCart func(call int, cart *domain.Cart)

	carts       map[string]*domain.Cart
	owners      map[string]string
	collections map[string]*domain.PaymentCollection
	orders      map[string]*domain.Order
	customers   map[string]*domain.Customer
	tokens      map[string]string
	returns     []domain.Return
	calls       map[string]int
	failures    map[string][]error
	seq         int
}

func NewBackend() *Backend {
	return &Backend{
		Variants:    map[string]Variant{},
		Passwords:   map[string]string{},
		carts:       map[string]*domain.Cart{},
		owners:      map[string]string{},
		collections: map[string]*domain.PaymentCollection{},
		orders:      map[string]*domain.Order{},
		customers:   map[string]*domain.Customer{},
		tokens:      map[string]string{},
		calls:       map[string]int{},
		failures:    map[string][]error{},
	}
}

func NotFound(msg string) error {
	return &gateway.APIError{Status: http.StatusNotFound, Type: "not_found", Message: msg}
}

func BadRequest(msg string) error {
	return &gateway.APIError{Status: http.StatusBadRequest, Type: "invalid_data", Message: msg}
}

// FailNext queues errors returned by the next calls of method, in order.
func (b *Backend) FailNext(method string, errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method] = append(b.failures[method], errs...)
}

func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// AddCustomer registers a customer that can log in with email and password.
func (b *Backend) AddCustomer(email, password string) *domain.Customer {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Passwords[email] = password
	b.seq++
	c := &domain.Customer{ID: fmt.Sprintf("cus_%d", b.seq), Email: email, CreatedAt: time.Now().UTC()}
	b.customers[email] = c
	return c
}

// PutOrder stores an order visible to the customer with email.
func (b *Backend) PutOrder(email string, order domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := order
	b.orders[o.ID] = &o
	b.owners[o.ID] = email
}

// DropCart makes the backend forget a cart, as if it expired.
func (b *Backend) DropCart(cartID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.carts, cartID)
}

// CompleteExternally marks a cart completed without going through CompleteCart.
func (b *Backend) CompleteExternally(cartID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.carts[cartID]; ok {
		now := time.Now().UTC()
		c.CompletedAt = &now
	}
}

// SetPaymentStatus sets the status of every session in the cart's collection.
func (b *Backend) SetPaymentStatus(cartID string, status domain.PaymentStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	setPaymentStatus(b.carts[cartID], status)
}

// SetPaymentStatusOf is the lock-free variant for use inside OnGetCart.
func SetPaymentStatusOf(cart *domain.Cart, status domain.PaymentStatus) {
	setPaymentStatus(cart, status)
}

func setPaymentStatus(cart *domain.Cart, status domain.PaymentStatus) {
	if cart == nil || cart.PaymentCollection == nil {
		return
	}
	for i := range cart.PaymentCollection.Sessions {
		cart.PaymentCollection.Sessions[i].Status = status
	}
}

func (b *Backend) Cart(cartID string) (*domain.Cart, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[cartID]
	return c.Clone(), ok
}

func (b *Backend) Returns() []domain.Return {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Return(nil), b.returns...)
}

// begin counts the call and pops a queued failure. Caller holds the lock.
func (b *Backend) begin(method string) error {
	b.calls[method]++
	queue := b.failures[method]
	if len(queue) == 0 {
		return nil
	}
	b.failures[method] = queue[1:]
	return queue[0]
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s_%d", prefix, b.seq)
}

func (b *Backend) customerFor(token string) (*domain.Customer, bool) {
	email, ok := b.tokens[token]
	if !ok {
		return nil, false
	}
	c, ok := b.customers[email]
	return c, ok
}

func (b *Backend) cartFor(cartID string) (*domain.Cart, error) {
	c, ok := b.carts[cartID]
	if !ok {
		return nil, NotFound(fmt.Sprintf("Cart id %s not found", cartID))
	}
	return c, nil
}

func (b *Backend) openCart(cartID string) (*domain.Cart, error) {
	c, err := b.cartFor(cartID)
	if err != nil {
		return nil, err
	}
	if c.IsCompleted() {
		return nil, BadRequest(fmt.Sprintf("Cart %s is already completed", cartID))
	}
	return c, nil
}

func recompute(c *domain.Cart) {
	for i := range c.Items {
		c.Items[i].Total = c.Items[i].UnitPrice.Mul(decimal.NewFromInt(int64(c.Items[i].Quantity)))
	}
	c.Subtotal = c.ItemsSubtotal()
	c.ShippingTotal = decimal.Zero
	for _, m := range c.ShippingMethods {
		c.ShippingTotal = c.ShippingTotal.Add(m.Amount)
	}
	c.Total = c.ComputedTotal()
}

func (b *Backend) CreateCart(ctx context.Context, regionID, token string) (*domain.Cart, error) {
	if b.CreateDelay > 0 {
		select {
		case <-time.After(b.CreateDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("CreateCart"); err != nil {
		return nil, err
	}
	c := &domain.Cart{
		ID:           b.nextID("cart"),
		RegionID:     regionID,
		CurrencyCode: "inr",
		Items:        []domain.LineItem{},
		CreatedAt:    time.Now().UTC(),
	}
	if cust, ok := b.customerFor(token); ok {
		c.CustomerID = cust.ID
		c.Email = cust.Email
	}
	recompute(c)
	b.carts[c.ID] = c
	return c.Clone(), nil
}

func (b *Backend) GetCart(_ context.Context, cartID, _ string) (*domain.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("GetCart"); err != nil {
		return nil, err
	}
	c, err := b.cartFor(cartID)
	if err != nil {
		return nil, err
	}
	if b.OnGetCart != nil {
		b.OnGetCart(b.calls["GetCart"], c)
	}
	return c.Clone(), nil
}

func (b *Backend) UpdateCart(_ context.Context, cartID string, update gateway.CartUpdate, _ string) (*domain.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("UpdateCart"); err != nil {
		return nil, err
	}
	c, err := b.openCart(cartID)
	if err != nil {
		return nil, err
	}
	if update.Email != "" {
		c.Email = update.Email
	}
	if update.RegionID != "" {
		c.RegionID = update.RegionID
	}
	if update.ShippingAddress != nil {
		addr := *update.ShippingAddress
		c.ShippingAddress = &addr
	}
	if update.BillingAddress != nil {
		addr := *update.BillingAddress
		c.BillingAddress = &addr
	}
	return c.Clone(), nil
}

func (b *Backend) TransferCart(_ context.Context, cartID, token string) (*domain.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("TransferCart"); err != nil {
		return nil, err
	}
	c, err := b.openCart(cartID)
	if err != nil {
		return nil, err
	}
	cust, ok := b.customerFor(token)
	if !ok {
		return nil, &gateway.APIError{Status: http.StatusUnauthorized, Type: "unauthorized", Message: "Unauthorized"}
	}
	c.CustomerID = cust.ID
	c.Email = cust.Email
	return c.Clone(), nil
}

func (b *Backend) AddLineItem(_ context.Context, cartID, variantID string, quantity int, _ string) (*domain.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("AddLineItem"); err != nil {
		return nil, err
	}
	c, err := b.openCart(cartID)
	if err != nil {
		return nil, err
	}
	v, ok := b.Variants[variantID]
	if !ok {
		return nil, BadRequest(fmt.Sprintf("Variant %s not found", variantID))
	}
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			if v.Stock >= 0 && c.Items[i].Quantity+quantity > v.Stock {
				return nil, insufficientInventory(variantID)
			}
			c.Items[i].Quantity += quantity
			recompute(c)
			return c.Clone(), nil
		}
	}
	if v.Stock >= 0 && quantity > v.Stock {
		return nil, insufficientInventory(variantID)
	}
	c.Items = append(c.Items, domain.LineItem{
		ID:        b.nextID("li"),
		CartID:    c.ID,
		VariantID: variantID,
		Title:     v.Title,
		Quantity:  quantity,
		UnitPrice: v.Price,
	})
	recompute(c)
	return c.Clone(), nil
}

func insufficientInventory(variantID string) error {
	return &gateway.APIError{
		Status:  http.StatusBadRequest,
		Type:    "not_allowed",
		Code:    "insufficient_inventory",
		Message: fmt.Sprintf("Variant %s does not have the required inventory", variantID),
	}
}

func (b *Backend) UpdateLineItem(_ context.Context, cartID, lineItemID string, quantity int, _ string) (*domain.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("UpdateLineItem"); err != nil {
		return nil, err
	}
	c, err := b.openCart(cartID)
	if err != nil {
		return nil, err
	}
	for i := range c.Items {
		if c.Items[i].ID == lineItemID {
			c.Items[i].Quantity = quantity
			recompute(c)
			return c.Clone(), nil
		}
	}
	return nil, NotFound(fmt.Sprintf("Line item %s not found", lineItemID))
}

func (b *Backend) RemoveLineItem(_ context.Context, cartID, lineItemID, _ string) (gateway.RemovalResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("RemoveLineItem"); err != nil {
		return gateway.RemovalResult{}, err
	}
	c, err := b.openCart(cartID)
	if err != nil {
		return gateway.RemovalResult{}, err
	}
	idx := -1
	for i := range c.Items {
		if c.Items[i].ID == lineItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return gateway.RemovalResult{}, NotFound(fmt.Sprintf("Line item %s not found", lineItemID))
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	recompute(c)

	switch b.Removal {
	case RemovalParentRef:
		return gateway.RemovalResult{CartID: cartID, Deleted: true}, nil
	case RemovalEmpty:
		return gateway.RemovalResult{CartID: cartID}, nil
	default:
		return gateway.RemovalResult{CartID: cartID, Deleted: true, Cart: c.Clone()}, nil
	}
}

func (b *Backend) ListShippingOptions(_ context.Context, cartID, _ string) ([]domain.ShippingOption, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("ListShippingOptions"); err != nil {
		return nil, err
	}
	if _, err := b.cartFor(cartID); err != nil {
		return nil, err
	}
	out := make([]domain.ShippingOption, 0, len(b.Options))
	for _, o := range b.Options {
		cp := o
		if o.Metadata != nil {
			cp.Metadata = make(map[string]interface{}, len(o.Metadata))
			for k, v := range o.Metadata {
				cp.Metadata[k] = v
			}
		}
		out = append(out, cp)
	}
	return out, nil
}

func (b *Backend) QuoteShippingRates(_ context.Context, _ string, _ domain.PaymentMode, _ string) ([]domain.RateQuote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("QuoteShippingRates"); err != nil {
		return nil, err
	}
	return append([]domain.RateQuote(nil), b.Quotes...), nil
}

func (b *Backend) findOption(optionID string) (domain.ShippingOption, bool) {
	for _, o := range b.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return domain.ShippingOption{}, false
}

func (b *Backend) attachShipping(cartID, optionID string, amount *decimal.Decimal) (*domain.Cart, error) {
	c, err := b.openCart(cartID)
	if err != nil {
		return nil, err
	}
	opt, ok := b.findOption(optionID)
	if !ok {
		return nil, BadRequest(fmt.Sprintf("Shipping option %s is not valid for this cart", optionID))
	}
	price := opt.Amount
	if amount != nil {
		price = *amount
	}
	c.ShippingMethods = []domain.ShippingMethod{{
		ID:               b.nextID("sm"),
		ShippingOptionID: opt.ID,
		Name:             opt.Name,
		Amount:           price,
	}}
	recompute(c)
	return c.Clone(), nil
}

func (b *Backend) AddShippingMethod(_ context.Context, cartID, optionID, _ string) (*domain.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("AddShippingMethod"); err != nil {
		return nil, err
	}
	return b.attachShipping(cartID, optionID, nil)
}

func (b *Backend) AddQuotedShippingMethod(_ context.Context, cartID, optionID string, amount decimal.Decimal, _ map[string]interface{}, _ string) (*domain.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("AddQuotedShippingMethod"); err != nil {
		return nil, err
	}
	return b.attachShipping(cartID, optionID, &amount)
}

func (b *Backend) CreatePaymentCollection(_ context.Context, cartID, _ string) (*domain.PaymentCollection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("CreatePaymentCollection"); err != nil {
		return nil, err
	}
	c, err := b.openCart(cartID)
	if err != nil {
		return nil, err
	}
	pc := &domain.PaymentCollection{
		ID:           b.nextID("pay_col"),
		Status:       domain.PaymentPending,
		Amount:       c.Total,
		CurrencyCode: c.CurrencyCode,
	}
	c.PaymentCollection = pc
	b.collections[pc.ID] = pc
	cp := *pc
	return &cp, nil
}

func (b *Backend) InitPaymentSession(_ context.Context, collectionID, providerID string, data map[string]interface{}, _ string) (*domain.PaymentCollection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("InitPaymentSession"); err != nil {
		return nil, err
	}
	pc, ok := b.collections[collectionID]
	if !ok {
		return nil, NotFound(fmt.Sprintf("Payment collection %s not found", collectionID))
	}
	sessionData := map[string]interface{}{}
	for k, v := range data {
		sessionData[k] = v
	}
	if !strings.HasPrefix(providerID, "pp_system") {
		sessionData["id"] = b.nextID("order_rzp")
	}
	pc.Sessions = append(pc.Sessions, domain.PaymentSession{
		ID:           b.nextID("payses"),
		ProviderID:   providerID,
		Status:       domain.PaymentPending,
		Amount:       pc.Amount,
		CurrencyCode: pc.CurrencyCode,
		Data:         sessionData,
	})
	cp := *pc
	cp.Sessions = append([]domain.PaymentSession(nil), pc.Sessions...)
	return &cp, nil
}

func (b *Backend) CompleteCart(_ context.Context, cartID, token string) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("CompleteCart"); err != nil {
		return nil, err
	}
	c, err := b.openCart(cartID)
	if err != nil {
		return nil, err
	}
	if !c.HasShippingMethod() {
		return nil, BadRequest("No shipping method selected")
	}
	if c.PaymentCollection == nil || len(c.PaymentCollection.Sessions) == 0 {
		return nil, BadRequest("Payment sessions are required to complete cart")
	}
	now := time.Now().UTC()
	c.CompletedAt = &now
	b.seq++
	order := &domain.Order{
		ID:                fmt.Sprintf("order_%d", b.seq),
		DisplayID:         b.seq,
		Status:            "pending",
		FulfillmentStatus: "not_fulfilled",
		PaymentStatus:     string(c.PaymentCollection.Resolve()),
		Email:             c.Email,
		CurrencyCode:      c.CurrencyCode,
		Items:             append([]domain.LineItem(nil), c.Items...),
		ShippingAddress:   c.ShippingAddress,
		BillingAddress:    c.BillingAddress,
		Subtotal:          c.Subtotal,
		TaxTotal:          c.TaxTotal,
		ShippingTotal:     c.ShippingTotal,
		Total:             c.Total,
		CreatedAt:         now,
	}
	b.orders[order.ID] = order
	if email, ok := b.tokens[token]; ok {
		b.owners[order.ID] = email
	}
	cp := *order
	return &cp, nil
}

func (b *Backend) ListOrders(_ context.Context, _ gateway.ListOrdersParams, token string) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("ListOrders"); err != nil {
		return nil, err
	}
	email, ok := b.tokens[token]
	if !ok {
		return nil, &gateway.APIError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	var out []domain.Order
	for id, o := range b.orders {
		if b.owners[id] == email {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b *Backend) GetOrder(_ context.Context, orderID, token string) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("GetOrder"); err != nil {
		return nil, err
	}
	o, ok := b.orders[orderID]
	if !ok || b.owners[orderID] != b.tokens[token] {
		return nil, NotFound(fmt.Sprintf("Order %s not found", orderID))
	}
	cp := *o
	return &cp, nil
}

func (b *Backend) CreateReturn(_ context.Context, req domain.ReturnRequest, _ string) (*domain.Return, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("CreateReturn"); err != nil {
		return nil, err
	}
	if _, ok := b.orders[req.OrderID]; !ok {
		return nil, NotFound(fmt.Sprintf("Order %s not found", req.OrderID))
	}
	ret := domain.Return{ID: b.nextID("ret"), OrderID: req.OrderID, Status: "requested", Items: req.Items}
	b.returns = append(b.returns, ret)
	return &ret, nil
}

func (b *Backend) Authenticate(_ context.Context, email, password string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("Authenticate"); err != nil {
		return "", err
	}
	if want, ok := b.Passwords[email]; !ok || want != password {
		return "", &gateway.APIError{Status: http.StatusUnauthorized, Type: "unauthorized", Message: "Invalid email or password"}
	}
	token := "tok_" + email
	b.tokens[token] = email
	return token, nil
}

func (b *Backend) Register(_ context.Context, email, password string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("Register"); err != nil {
		return "", err
	}
	if _, exists := b.Passwords[email]; exists {
		return "", &gateway.APIError{Status: http.StatusUnauthorized, Type: "unauthorized", Message: "Identity with email already exists"}
	}
	b.Passwords[email] = password
	token := "reg_" + email
	b.tokens[token] = email
	return token, nil
}

func (b *Backend) CreateCustomer(_ context.Context, in gateway.NewCustomer, token string) (*domain.Customer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("CreateCustomer"); err != nil {
		return nil, err
	}
	if b.tokens[token] != in.Email {
		return nil, &gateway.APIError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	c := &domain.Customer{
		ID:        b.nextID("cus"),
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		CreatedAt: time.Now().UTC(),
	}
	b.customers[in.Email] = c
	return cloneCustomer(c), nil
}

func cloneCustomer(c *domain.Customer) *domain.Customer {
	cp := *c
	cp.Addresses = append([]domain.CustomerAddress(nil), c.Addresses...)
	return &cp
}

func (b *Backend) authed(token string) (*domain.Customer, error) {
	c, ok := b.customerFor(token)
	if !ok {
		return nil, &gateway.APIError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	return c, nil
}

func (b *Backend) GetCustomer(_ context.Context, token string) (*domain.Customer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("GetCustomer"); err != nil {
		return nil, err
	}
	c, err := b.authed(token)
	if err != nil {
		return nil, err
	}
	return cloneCustomer(c), nil
}

func (b *Backend) UpdateCustomer(_ context.Context, update domain.ProfileUpdate, token string) (*domain.Customer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("UpdateCustomer"); err != nil {
		return nil, err
	}
	c, err := b.authed(token)
	if err != nil {
		return nil, err
	}
	if update.FirstName != nil {
		c.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		c.LastName = *update.LastName
	}
	if update.Phone != nil {
		c.Phone = *update.Phone
	}
	return cloneCustomer(c), nil
}

func (b *Backend) ListAddresses(_ context.Context, token string) ([]domain.CustomerAddress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("ListAddresses"); err != nil {
		return nil, err
	}
	c, err := b.authed(token)
	if err != nil {
		return nil, err
	}
	return append([]domain.CustomerAddress{}, c.Addresses...), nil
}

func (b *Backend) AddAddress(_ context.Context, addr domain.CustomerAddress, token string) (*domain.Customer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("AddAddress"); err != nil {
		return nil, err
	}
	c, err := b.authed(token)
	if err != nil {
		return nil, err
	}
	addr.ID = b.nextID("caddr")
	c.Addresses = append(c.Addresses, addr)
	return cloneCustomer(c), nil
}

func (b *Backend) UpdateAddress(_ context.Context, addr domain.CustomerAddress, token string) (*domain.Customer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("UpdateAddress"); err != nil {
		return nil, err
	}
	c, err := b.authed(token)
	if err != nil {
		return nil, err
	}
	for i := range c.Addresses {
		if c.Addresses[i].ID == addr.ID {
			c.Addresses[i] = addr
			return cloneCustomer(c), nil
		}
	}
	return nil, NotFound(fmt.Sprintf("Address %s not found", addr.ID))
}

func (b *Backend) DeleteAddress(_ context.Context, addressID, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("DeleteAddress"); err != nil {
		return err
	}
	c, err := b.authed(token)
	if err != nil {
		return err
	}
	for i := range c.Addresses {
		if c.Addresses[i].ID == addressID {
			c.Addresses = append(c.Addresses[:i], c.Addresses[i+1:]...)
			return nil
		}
	}
	return NotFound(fmt.Sprintf("Address %s not found", addressID))
}

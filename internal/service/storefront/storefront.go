// Package storefront assembles the per-session service graph and exposes the
// operations a shopper can perform.
package storefront

import (
	"context"
	"errors"
	"strings"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway"
	"storefront-core/internal/logging"
	sessionrepo "storefront-core/internal/repository/session"
	"storefront-core/internal/service/cart"
	"storefront-core/internal/service/checkout"
	"storefront-core/internal/service/customer"
	"storefront-core/internal/service/order"
	"storefront-core/internal/service/session"
	"storefront-core/internal/service/shipping"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Backend is the full commerce API surface; *gateway.Client implements it.
type Backend interface {
	CreateCart(ctx context.Context, regionID, token string) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID, token string) (*domain.Cart, error)
	UpdateCart(ctx context.Context, cartID string, update gateway.CartUpdate, token string) (*domain.Cart, error)
	TransferCart(ctx context.Context, cartID, token string) (*domain.Cart, error)
	CompleteCart(ctx context.Context, cartID, token string) (*domain.Order, error)

	AddLineItem(ctx context.Context, cartID, variantID string, quantity int, token string) (*domain.Cart, error)
	UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int, token string) (*domain.Cart, error)
	RemoveLineItem(ctx context.Context, cartID, lineItemID, token string) (gateway.RemovalResult, error)

	ListShippingOptions(ctx context.Context, cartID, token string) ([]domain.ShippingOption, error)
	QuoteShippingRates(ctx context.Context, cartID string, mode domain.PaymentMode, token string) ([]domain.RateQuote, error)
	AddShippingMethod(ctx context.Context, cartID, optionID, token string) (*domain.Cart, error)
	AddQuotedShippingMethod(ctx context.Context, cartID, optionID string, amount decimal.Decimal, data map[string]interface{}, token string) (*domain.Cart, error)

	CreatePaymentCollection(ctx context.Context, cartID, token string) (*domain.PaymentCollection, error)
	InitPaymentSession(ctx context.Context, collectionID, providerID string, data map[string]interface{}, token string) (*domain.PaymentCollection, error)

	ListOrders(ctx context.Context, params gateway.ListOrdersParams, token string) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID, token string) (*domain.Order, error)
	CreateReturn(ctx context.Context, req domain.ReturnRequest, token string) (*domain.Return, error)

	Authenticate(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password string) (string, error)
	CreateCustomer(ctx context.Context, in gateway.NewCustomer, token string) (*domain.Customer, error)
	GetCustomer(ctx context.Context, token string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, update domain.ProfileUpdate, token string) (*domain.Customer, error)
	ListAddresses(ctx context.Context, token string) ([]domain.CustomerAddress, error)
	AddAddress(ctx context.Context, addr domain.CustomerAddress, token string) (*domain.Customer, error)
	UpdateAddress(ctx context.Context, addr domain.CustomerAddress, token string) (*domain.Customer, error)
	DeleteAddress(ctx context.Context, addressID, token string) error
}

var _ Backend = (*gateway.Client)(nil)

type Deps struct {
	Backend   Backend
	Sessions  sessionrepo.Repository
	SessionID string
	RegionID  string
	Payment   checkout.Config
	Logger    *zap.Logger
}

// Storefront is one shopper's session. It is safe for concurrent use, but
// concurrent mutations of the same cart follow last-writer-wins.
type Storefront struct {
	sessionID string
	carts     *cart.Service
	shipping  *shipping.Service
	checkout  *checkout.Service
	orders    *order.Service
	customers *customer.Service
	logger    *zap.Logger
}

func New(d Deps) *Storefront {
	logger := logging.OrNop(d.Logger).With(zap.String("session_id", d.SessionID))
	store := session.New(d.Sessions, d.SessionID)
	carts := cart.New(d.Backend, store, cart.Options{RegionID: d.RegionID, Logger: logger})
	ship := shipping.New(d.Backend, carts, logger)
	orders := order.New(d.Backend, carts, logger)
	return &Storefront{
		sessionID: d.SessionID,
		carts:     carts,
		shipping:  ship,
		checkout:  checkout.New(d.Backend, carts, ship, orders, d.Payment, logger),
		orders:    orders,
		customers: customer.New(d.Backend, carts, logger),
		logger:    logger,
	}
}

func (s *Storefront) SessionID() string {
	return s.sessionID
}

// fail sanitizes err and logs what the shopper will not see.
func (s *Storefront) fail(op string, err error) *UserError {
	uerr := Sanitize(err)
	if uerr == nil {
		return nil
	}
	if uerr.Kind == KindUnavailable || uerr.Kind == KindUnknown {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Info(op+" rejected", zap.String("kind", string(uerr.Kind)), zap.Error(err))
	}
	return uerr
}

// result keeps the Go nil-interface rule out of every call site.
func result(uerr *UserError) error {
	if uerr == nil {
		return nil
	}
	return uerr
}

// Cart returns the active cart, creating one on first use.
func (s *Storefront) Cart(ctx context.Context) (*domain.Cart, error) {
	c, err := s.carts.EnsureCart(ctx)
	if err != nil {
		return s.carts.Current(), result(s.fail("load cart", err))
	}
	return c, nil
}

func (s *Storefront) AddToCart(ctx context.Context, variantID string, quantity int) (*domain.Cart, error) {
	c, err := s.carts.AddToCart(ctx, variantID, quantity)
	if err != nil {
		return s.carts.Current(), result(s.fail("add to cart", err))
	}
	return c, nil
}

func (s *Storefront) UpdateQuantity(ctx context.Context, lineItemID string, quantity int) (*domain.Cart, error) {
	c, err := s.carts.UpdateQuantity(ctx, lineItemID, quantity)
	if err != nil {
		return s.carts.Current(), result(s.fail("update quantity", err))
	}
	return c, nil
}

func (s *Storefront) RemoveFromCart(ctx context.Context, lineItemID string) (*domain.Cart, error) {
	c, err := s.carts.RemoveFromCart(ctx, lineItemID)
	if err != nil {
		return s.carts.Current(), result(s.fail("remove from cart", err))
	}
	return c, nil
}

func (s *Storefront) IsUpdating(id string) bool {
	return s.carts.IsUpdating(id)
}

func (s *Storefront) UpdatingItems() []string {
	return s.carts.UpdatingItems()
}

// Login signs in and carries the guest cart over to the customer.
func (s *Storefront) Login(ctx context.Context, email, password string) (*domain.Cart, error) {
	c, err := s.carts.Login(ctx, email, password)
	if err != nil {
		if gateway.IsUnauthorized(err) {
			return s.carts.Current(), &UserError{Kind: KindUnauthorized, Message: "Invalid email or password.", Err: err}
		}
		return s.carts.Current(), result(s.fail("login", err))
	}
	return c, nil
}

func (s *Storefront) Logout(ctx context.Context) error {
	return result(s.fail("logout", s.carts.Logout(ctx)))
}

// Register creates the account and signs the new customer in.
func (s *Storefront) Register(ctx context.Context, in customer.RegisterInput) (*domain.Customer, error) {
	c, err := s.customers.Register(ctx, in)
	if err != nil {
		return nil, result(s.fail("register", err))
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.Login(ctx, email, strings.TrimSpace(in.Password)); err != nil {
		return c, err
	}
	return c, nil
}

func (s *Storefront) CheckoutState() checkout.State {
	return s.checkout.State()
}

func (s *Storefront) UpdateAddresses(ctx context.Context, shippingAddr, billingAddr *domain.Address, mode domain.PaymentMode) ([]domain.ShippingOption, error) {
	options, err := s.checkout.UpdateAddresses(ctx, shippingAddr, billingAddr, mode)
	if err != nil {
		return nil, result(s.fail("update addresses", err))
	}
	return options, nil
}

// ShippingOptions lists options for the active cart without touching checkout state.
func (s *Storefront) ShippingOptions(ctx context.Context, mode domain.PaymentMode) ([]domain.ShippingOption, error) {
	c, err := s.carts.EnsureCart(ctx)
	if err != nil {
		return nil, result(s.fail("shipping options", err))
	}
	options, err := s.shipping.GetShippingOptions(ctx, c.ID, mode)
	if err != nil {
		return nil, result(s.fail("shipping options", err))
	}
	return options, nil
}

func (s *Storefront) SelectShippingOption(optionID string) error {
	return result(s.fail("select shipping", s.checkout.SelectShippingOption(optionID)))
}

func (s *Storefront) CompleteCheckout(ctx context.Context, in checkout.Input) (*domain.Order, error) {
	o, err := s.checkout.CompleteCheckout(ctx, in)
	if err != nil {
		return nil, result(s.fail("complete checkout", err))
	}
	return o, nil
}

func (s *Storefront) StartOnlinePayment(ctx context.Context, in checkout.Input) (*checkout.OnlinePayment, error) {
	p, err := s.checkout.StartOnlinePayment(ctx, in)
	if err != nil {
		return nil, result(s.fail("start online payment", err))
	}
	return p, nil
}

// ConfirmOnlinePayment confirms payment, or the pending payment when payment is nil.
func (s *Storefront) ConfirmOnlinePayment(ctx context.Context, payment *checkout.OnlinePayment) (*domain.Order, error) {
	if payment == nil {
		pending, ok := s.checkout.PendingPayment()
		if !ok {
			return nil, &UserError{Kind: KindConflict, Message: msgStepOrder, Err: errors.New("no pending online payment")}
		}
		payment = pending
	}
	o, err := s.checkout.ConfirmOnlinePayment(ctx, *payment)
	if err != nil {
		return nil, result(s.fail("confirm online payment", err))
	}
	return o, nil
}

func (s *Storefront) CancelOnlinePayment(ctx context.Context) (*domain.Cart, error) {
	c, err := s.checkout.CancelOnlinePayment(ctx)
	if err != nil {
		return s.carts.Current(), result(s.fail("cancel online payment", err))
	}
	return c, nil
}

func (s *Storefront) PayOnline(ctx context.Context, in checkout.Input, widget checkout.Widget, prefill checkout.Prefill) (*checkout.Result, error) {
	r, err := s.checkout.PayOnline(ctx, in, widget, prefill)
	if err != nil {
		return nil, result(s.fail("pay online", err))
	}
	return r, nil
}

func (s *Storefront) Orders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.FetchOrders(ctx)
	if err != nil {
		return s.orders.Orders(), result(s.fail("list orders", err))
	}
	return orders, nil
}

func (s *Storefront) Order(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := s.orders.RetrieveOrder(ctx, orderID)
	if err != nil {
		return nil, result(s.fail("retrieve order", err))
	}
	return o, nil
}

func (s *Storefront) CreateReturn(ctx context.Context, orderID string, items []domain.ReturnItem, reason string) (*domain.Return, error) {
	r, err := s.orders.CreateReturn(ctx, orderID, items, reason)
	if err != nil {
		return nil, result(s.fail("create return", err))
	}
	return r, nil
}

func (s *Storefront) Profile(ctx context.Context) (*domain.Customer, error) {
	c, err := s.customers.Profile(ctx)
	if err != nil {
		return nil, result(s.fail("profile", err))
	}
	return c, nil
}

func (s *Storefront) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.Customer, error) {
	c, err := s.customers.UpdateProfile(ctx, update)
	if err != nil {
		return nil, result(s.fail("update profile", err))
	}
	return c, nil
}

func (s *Storefront) Addresses(ctx context.Context) ([]domain.CustomerAddress, error) {
	a, err := s.customers.Addresses(ctx)
	if err != nil {
		return nil, result(s.fail("list addresses", err))
	}
	return a, nil
}

func (s *Storefront) AddAddress(ctx context.Context, addr domain.CustomerAddress) ([]domain.CustomerAddress, error) {
	a, err := s.customers.AddAddress(ctx, addr)
	if err != nil {
		return nil, result(s.fail("add address", err))
	}
	return a, nil
}

func (s *Storefront) UpdateAddress(ctx context.Context, addr domain.CustomerAddress) ([]domain.CustomerAddress, error) {
	a, err := s.customers.UpdateAddress(ctx, addr)
	if err != nil {
		return nil, result(s.fail("update address", err))
	}
	return a, nil
}

func (s *Storefront) DeleteAddress(ctx context.Context, addressID string) error {
	return result(s.fail("delete address", s.customers.DeleteAddress(ctx, addressID)))
}

// CheckoutAddress copies a saved address into a checkout address.
func (s *Storefront) CheckoutAddress(ctx context.Context, addressID string) (*domain.Address, error) {
	a, err := s.customers.CheckoutAddress(ctx, addressID)
	if err != nil {
		return nil, result(s.fail("checkout address", err))
	}
	return a, nil
}

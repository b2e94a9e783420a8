// Package checkout drives a cart through addresses, shipping and payment to an order.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway"
	"storefront-core/internal/logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type checkoutGateway interface {
	GetCart(ctx context.Context, cartID, token string) (*domain.Cart, error)
	UpdateCart(ctx context.Context, cartID string, update gateway.CartUpdate, token string) (*domain.Cart, error)
	AddShippingMethod(ctx context.Context, cartID, optionID, token string) (*domain.Cart, error)
	AddQuotedShippingMethod(ctx context.Context, cartID, optionID string, amount decimal.Decimal, data map[string]interface{}, token string) (*domain.Cart, error)
	CreatePaymentCollection(ctx context.Context, cartID, token string) (*domain.PaymentCollection, error)
	InitPaymentSession(ctx context.Context, collectionID, providerID string, data map[string]interface{}, token string) (*domain.PaymentCollection, error)
	CompleteCart(ctx context.Context, cartID, token string) (*domain.Order, error)
}

type cartSession interface {
	EnsureCart(ctx context.Context) (*domain.Cart, error)
	Refresh(ctx context.Context) (*domain.Cart, error)
	Replace(ctx context.Context, cart *domain.Cart) error
	CreateFreshCart(ctx context.Context) (*domain.Cart, error)
	Discard(ctx context.Context) error
	Token(ctx context.Context) (string, error)
	CartID(ctx context.Context) (string, error)
}

type shippingLister interface {
	GetShippingOptions(ctx context.Context, cartID string, mode domain.PaymentMode) ([]domain.ShippingOption, error)
}

type orderRefresher interface {
	FetchOrders(ctx context.Context) ([]domain.Order, error)
}

type Config struct {
	SystemProvider string
	OnlineProvider string
	OnlineKey      string
	PollAttempts   int
	PollDelay      time.Duration
}

// Input is one checkout submission. A nil BillingAddress reuses the shipping
// address; an empty ShippingOptionID uses the selected or default option.
type Input struct {
	Email            string
	ShippingAddress  *domain.Address
	BillingAddress   *domain.Address
	ShippingOptionID string
}

type Service struct {
	gateway  checkoutGateway
	cart     cartSession
	shipping shippingLister
	orders   orderRefresher
	poller   *Poller
	cfg      Config
	logger   *zap.Logger

	machine Machine

	mu       sync.Mutex
	options  []domain.ShippingOption
	selected string
	pending  *OnlinePayment
}

func New(gw checkoutGateway, cart cartSession, shipping shippingLister, orders orderRefresher, cfg Config, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	return &Service{
		gateway:  gw,
		cart:     cart,
		shipping: shipping,
		orders:   orders,
		poller:   NewPoller(gw, cart, cfg.PollAttempts, cfg.PollDelay, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *Service) State() State {
	return s.machine.State()
}

// UpdateAddresses validates both addresses, writes them in one cart update and
// returns the shipping options for the updated cart.
func (s *Service) UpdateAddresses(ctx context.Context, shipping, billing *domain.Address, mode domain.PaymentMode) ([]domain.ShippingOption, error) {
	shipAddr, billAddr, err := normalizeAddresses(shipping, billing)
	if err != nil {
		return nil, err
	}
	cart, err := s.cart.EnsureCart(ctx)
	if err != nil {
		return nil, err
	}
	token, err := s.cart.Token(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.machine.Apply(EventAddressesSet); err != nil {
		return nil, err
	}

	updated, err := s.gateway.UpdateCart(ctx, cart.ID, gateway.CartUpdate{ShippingAddress: shipAddr, BillingAddress: billAddr}, token)
	if err != nil {
		return nil, fmt.Errorf("update addresses: %w", err)
	}
	if err := s.cart.Replace(ctx, updated); err != nil {
		return nil, err
	}
	return s.loadOptions(ctx, updated.ID, mode)
}

func (s *Service) loadOptions(ctx context.Context, cartID string, mode domain.PaymentMode) ([]domain.ShippingOption, error) {
	options, err := s.shipping.GetShippingOptions(ctx, cartID, mode)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.options = append([]domain.ShippingOption(nil), options...)
	s.mu.Unlock()
	return options, nil
}

// SelectShippingOption records the customer's choice among the loaded options.
func (s *Service) SelectShippingOption(optionID string) error {
	s.mu.Lock()
	known := len(s.options) == 0
	for _, o := range s.options {
		if o.ID == optionID {
			known = true
			break
		}
	}
	s.mu.Unlock()
	if !known || optionID == "" {
		return fmt.Errorf("%w: %q", ErrUnknownShippingOption, optionID)
	}
	if err := s.machine.Apply(EventShippingSelected); err != nil {
		return err
	}
	s.mu.Lock()
	s.selected = optionID
	s.mu.Unlock()
	return nil
}

// DefaultOption picks the first option so a form can preselect something.
func DefaultOption(options []domain.ShippingOption) (domain.ShippingOption, bool) {
	if len(options) == 0 {
		return domain.ShippingOption{}, false
	}
	return options[0], true
}

// CompleteCheckout places a pay-on-delivery order. Any failing step aborts
// with its error; nothing already written is rolled back.
func (s *Service) CompleteCheckout(ctx context.Context, in Input) (*domain.Order, error) {
	cart, token, err := s.prepare(ctx, in, domain.PaymentModeCOD)
	if err != nil {
		return nil, err
	}
	if _, err := s.initPayment(ctx, cart, token, s.cfg.SystemProvider, nil); err != nil {
		return nil, err
	}
	return s.complete(ctx, cart.ID, token)
}

// prepare validates the input, writes shipping then billing address and
// attaches the chosen shipping method.
func (s *Service) prepare(ctx context.Context, in Input, mode domain.PaymentMode) (*domain.Cart, string, error) {
	shipAddr, billAddr, err := normalizeAddresses(in.ShippingAddress, in.BillingAddress)
	if err != nil {
		return nil, "", err
	}
	cart, err := s.cart.EnsureCart(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(cart.Items) == 0 {
		return nil, "", ErrEmptyCart
	}
	token, err := s.cart.Token(ctx)
	if err != nil {
		return nil, "", err
	}
	if err := s.machine.Apply(EventAddressesSet); err != nil {
		return nil, "", err
	}

	cart, err = s.updateCart(ctx, cart.ID, gateway.CartUpdate{Email: in.Email, ShippingAddress: shipAddr}, token)
	if err != nil {
		return nil, "", fmt.Errorf("set shipping address: %w", err)
	}
	cart, err = s.updateCart(ctx, cart.ID, gateway.CartUpdate{BillingAddress: billAddr}, token)
	if err != nil {
		return nil, "", fmt.Errorf("set billing address: %w", err)
	}

	option, err := s.resolveOption(ctx, cart.ID, in.ShippingOptionID, mode)
	if err != nil {
		return nil, "", err
	}
	if err := s.machine.Apply(EventShippingSelected); err != nil {
		return nil, "", err
	}
	cart, err = s.attachShipping(ctx, cart.ID, option, token)
	if err != nil {
		return nil, "", err
	}
	if err := s.machine.Apply(EventShippingAttached); err != nil {
		return nil, "", err
	}
	return cart, token, nil
}

func (s *Service) updateCart(ctx context.Context, cartID string, update gateway.CartUpdate, token string) (*domain.Cart, error) {
	updated, err := s.gateway.UpdateCart(ctx, cartID, update, token)
	if err != nil {
		return nil, err
	}
	if err := s.cart.Replace(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) resolveOption(ctx context.Context, cartID, optionID string, mode domain.PaymentMode) (domain.ShippingOption, error) {
	s.mu.Lock()
	if optionID == "" {
		optionID = s.selected
	}
	options := s.options
	s.mu.Unlock()

	if len(options) == 0 || !containsOption(options, optionID) {
		loaded, err := s.loadOptions(ctx, cartID, mode)
		if err != nil {
			return domain.ShippingOption{}, err
		}
		options = loaded
	}
	if optionID == "" {
		opt, ok := DefaultOption(options)
		if !ok {
			return domain.ShippingOption{}, ErrNoShippingOption
		}
		optionID = opt.ID
	}
	for _, o := range options {
		if o.ID == optionID {
			s.mu.Lock()
			s.selected = o.ID
			s.mu.Unlock()
			return o, nil
		}
	}
	return domain.ShippingOption{}, fmt.Errorf("%w: %q", ErrUnknownShippingOption, optionID)
}

func containsOption(options []domain.ShippingOption, id string) bool {
	if id == "" {
		return true
	}
	for _, o := range options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// attachShipping uses the quoted endpoint when a live quote priced the option.
func (s *Service) attachShipping(ctx context.Context, cartID string, option domain.ShippingOption, token string) (*domain.Cart, error) {
	var (
		updated *domain.Cart
		err     error
	)
	if option.IsQuoted() {
		data := map[string]interface{}{domain.MetaShippingType: option.TypeCode()}
		for _, key := range []string{domain.MetaETA, domain.MetaETADays} {
			if v, ok := option.Metadata[key]; ok {
				data[key] = v
			}
		}
		updated, err = s.gateway.AddQuotedShippingMethod(ctx, cartID, option.ID, option.Amount, data, token)
	} else {
		updated, err = s.gateway.AddShippingMethod(ctx, cartID, option.ID, token)
	}
	if err != nil {
		return nil, fmt.Errorf("attach shipping method: %w", err)
	}
	if !updated.HasShippingMethod() {
		return nil, fmt.Errorf("attach shipping method: cart %s has no shipping method", cartID)
	}
	if err := s.cart.Replace(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) initPayment(ctx context.Context, cart *domain.Cart, token, providerID string, data map[string]interface{}) (*domain.PaymentCollection, error) {
	if err := s.machine.Apply(EventPaymentInitialized); err != nil {
		return nil, err
	}
	pc, err := s.gateway.CreatePaymentCollection(ctx, cart.ID, token)
	if err != nil {
		return nil, fmt.Errorf("create payment collection: %w", err)
	}
	pc, err = s.gateway.InitPaymentSession(ctx, pc.ID, providerID, data, token)
	if err != nil {
		return nil, fmt.Errorf("init payment session: %w", err)
	}
	return pc, nil
}

// complete places the order, then refreshes the order list and starts a new
// cart. The last two are best effort: the order already exists.
func (s *Service) complete(ctx context.Context, cartID, token string) (*domain.Order, error) {
	if err := s.machine.Check(EventCompleted); err != nil {
		return nil, err
	}
	order, err := s.gateway.CompleteCart(ctx, cartID, token)
	if err != nil {
		return nil, fmt.Errorf("complete cart: %w", err)
	}
	if err := s.machine.Apply(EventCompleted); err != nil {
		s.logger.Warn("checkout state moved during completion", zap.String("cart_id", cartID), zap.Error(err))
	}
	s.logger.Info("order placed", zap.String("cart_id", cartID), zap.String("order_id", order.ID))

	if _, err := s.orders.FetchOrders(ctx); err != nil {
		s.logger.Warn("refresh orders after checkout", zap.Error(err))
	}
	if _, err := s.cart.CreateFreshCart(ctx); err != nil {
		s.logger.Warn("create fresh cart after checkout", zap.Error(err))
		if derr := s.cart.Discard(ctx); derr != nil {
			s.logger.Error("discard completed cart", zap.Error(derr))
		}
	}

	s.mu.Lock()
	s.selected = ""
	s.options = nil
	s.pending = nil
	s.mu.Unlock()
	_ = s.machine.Apply(EventReset)
	return order, nil
}

func normalizeAddresses(shipping, billing *domain.Address) (*domain.Address, *domain.Address, error) {
	if err := domain.ValidateAddress("shipping address", shipping); err != nil {
		return nil, nil, err
	}
	ship := shipping.Normalized()
	if billing == nil {
		bill := ship
		return &ship, &bill, nil
	}
	if err := domain.ValidateAddress("billing address", billing); err != nil {
		return nil, nil, err
	}
	bill := billing.Normalized()
	return &ship, &bill, nil
}

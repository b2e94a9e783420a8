package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-core/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OnlinePayment is what the payment widget needs to take the customer's money.
type OnlinePayment struct {
	CartID              string          `json:"cart_id"`
	PaymentCollectionID string          `json:"payment_collection_id"`
	SessionID           string          `json:"session_id"`
	ProviderOrderID     string          `json:"provider_order_id"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	ProviderKey         string          `json:"provider_key"`
}

// StartOnlinePayment prepares the cart like CompleteCheckout and opens a session
// with the online provider instead of completing.
func (s *Service) StartOnlinePayment(ctx context.Context, in Input) (*OnlinePayment, error) {
	cart, token, err := s.prepare(ctx, in, domain.PaymentModeOnline)
	if err != nil {
		return nil, err
	}
	pc, err := s.initPayment(ctx, cart, token, s.cfg.OnlineProvider, nil)
	if err != nil {
		return nil, err
	}
	session, ok := pc.SessionFor(s.cfg.OnlineProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider %s", ErrNoPaymentSession, s.cfg.OnlineProvider)
	}

	amount := session.Amount
	if amount.IsZero() {
		amount = pc.Amount
	}
	if amount.IsZero() {
		amount = cart.Total
	}
	currency := session.CurrencyCode
	if currency == "" {
		currency = pc.CurrencyCode
	}
	if currency == "" {
		currency = cart.CurrencyCode
	}

	payment := &OnlinePayment{
		CartID:              cart.ID,
		PaymentCollectionID: pc.ID,
		SessionID:           session.ID,
		ProviderOrderID:     providerOrderID(session.Data),
		Amount:              amount,
		Currency:            strings.ToUpper(currency),
		ProviderKey:         s.cfg.OnlineKey,
	}
	s.mu.Lock()
	s.pending = payment
	s.mu.Unlock()
	return payment, nil
}

// providerOrderID digs the provider's order reference out of session data.
func providerOrderID(data map[string]interface{}) string {
	for _, key := range []string{"razorpay_order_id", "order_id", "id"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	if nested, ok := data["razorpay_order"].(map[string]interface{}); ok {
		if v, ok := nested["id"].(string); ok {
			return v
		}
	}
	return ""
}

// PendingPayment returns the payment started by StartOnlinePayment, if any.
func (s *Service) PendingPayment() (*OnlinePayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, false
	}
	cp := *s.pending
	return &cp, true
}

// ConfirmOnlinePayment waits for the provider's verdict. On success the cart is
// completed; on failure or timeout the cart is refreshed and kept. The payment
// must belong to this session's pending payment or its active cart.
func (s *Service) ConfirmOnlinePayment(ctx context.Context, payment OnlinePayment) (*domain.Order, error) {
	if err := s.ownsPayment(ctx, payment); err != nil {
		return nil, err
	}
	_, err := s.poller.Await(ctx, payment.CartID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		s.logger.Warn("online payment not confirmed", zap.String("cart_id", payment.CartID), zap.Error(err))
		s.keepCart(ctx)
		return nil, err
	}
	if err := s.machine.Apply(EventPaymentResumed); err != nil {
		return nil, err
	}
	token, err := s.cart.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, payment.CartID, token)
}

func (s *Service) ownsPayment(ctx context.Context, payment OnlinePayment) error {
	if payment.CartID == "" {
		return ErrForeignPayment
	}
	if pending, ok := s.PendingPayment(); ok && pending.CartID == payment.CartID {
		return nil
	}
	cartID, err := s.cart.CartID(ctx)
	if err != nil {
		return fmt.Errorf("read cart id: %w", err)
	}
	if cartID != payment.CartID {
		return fmt.Errorf("%w: %s", ErrForeignPayment, payment.CartID)
	}
	return nil
}

// CancelOnlinePayment handles a dismissed widget: the cart stays as it is.
func (s *Service) CancelOnlinePayment(ctx context.Context) (*domain.Cart, error) {
	cart, err := s.cart.Refresh(ctx)
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	_ = s.machine.Apply(EventReset)
	if err != nil {
		return nil, fmt.Errorf("refresh cart: %w", err)
	}
	return cart, nil
}

func (s *Service) keepCart(ctx context.Context) {
	if _, err := s.cart.Refresh(ctx); err != nil {
		s.logger.Warn("refresh cart after failed payment", zap.Error(err))
	}
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	_ = s.machine.Apply(EventReset)
}

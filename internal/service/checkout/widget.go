package checkout

import (
	"context"
	"fmt"

	"storefront-core/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Prefill is shown in the payment widget so the customer need not retype it.
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type WidgetOptions struct {
	Key             string
	Amount          decimal.Decimal
	Currency        string
	ProviderOrderID string
	Description     string
	Prefill         Prefill
}

// PaymentResponse is the provider's success callback payload.
type PaymentResponse struct {
	ProviderPaymentID string
	ProviderOrderID   string
	Signature         string
}

// Widget is the provider's checkout UI. Exactly one of the callbacks fires.
type Widget interface {
	Open(opts WidgetOptions, onSuccess func(PaymentResponse), onDismiss func()) error
}

type widgetOutcome struct {
	response  PaymentResponse
	dismissed bool
}

// PayOnline runs start, widget and confirmation as one call. A dismissed
// widget returns ErrPaymentDismissed with the cart intact.
func (s *Service) PayOnline(ctx context.Context, in Input, widget Widget, prefill Prefill) (*Result, error) {
	payment, err := s.StartOnlinePayment(ctx, in)
	if err != nil {
		return nil, err
	}

	outcome := make(chan widgetOutcome, 1)
	onSuccess := func(resp PaymentResponse) {
		select {
		case outcome <- widgetOutcome{response: resp}:
		default:
		}
	}
	onDismiss := func() {
		select {
		case outcome <- widgetOutcome{dismissed: true}:
		default:
		}
	}
	opts := WidgetOptions{
		Key:             payment.ProviderKey,
		Amount:          payment.Amount,
		Currency:        payment.Currency,
		ProviderOrderID: payment.ProviderOrderID,
		Description:     "Order payment",
		Prefill:         prefill,
	}
	if err := widget.Open(opts, onSuccess, onDismiss); err != nil {
		if _, cerr := s.CancelOnlinePayment(ctx); cerr != nil {
			s.logger.Warn("cancel after widget failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("open payment widget: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-outcome:
		if out.dismissed {
			if _, err := s.CancelOnlinePayment(ctx); err != nil {
				s.logger.Warn("refresh cart after dismissal", zap.Error(err))
			}
			return nil, ErrPaymentDismissed
		}
		order, err := s.ConfirmOnlinePayment(ctx, *payment)
		if err != nil {
			return nil, err
		}
		return &Result{Order: order, Payment: out.response}, nil
	}
}

// Result pairs the placed order with the provider's payment reference.
type Result struct {
	Order   *domain.Order
	Payment PaymentResponse
}

package checkout

import (
	"errors"
	"fmt"

	"storefront-core/internal/domain"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrNoShippingOption      = errors.New("no shipping option available")
	ErrUnknownShippingOption = errors.New("unknown shipping option")
	ErrNoPaymentSession      = errors.New("payment session was not created")
	ErrPaymentTimeout        = errors.New("payment confirmation timed out")
	ErrPaymentDismissed      = errors.New("payment was dismissed")
	ErrForeignPayment        = errors.New("payment does not belong to this cart")
)

// PaymentFailedError is an explicit failure status from the provider.
type PaymentFailedError struct {
	CartID string
	Status domain.PaymentStatus
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment for cart %s %s", e.CartID, e.Status)
}

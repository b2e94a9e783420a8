package storefront

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway"
	"storefront-core/internal/service/checkout"
	"storefront-core/internal/service/customer"
	"storefront-core/internal/service/order"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindOutOfStock       Kind = "out_of_stock"
	KindNotFound         Kind = "not_found"
	KindUnauthorized     Kind = "unauthorized"
	KindConflict         Kind = "conflict"
	KindPaymentFailed    Kind = "payment_failed"
	KindPaymentTimeout   Kind = "payment_timeout"
	KindPaymentDismissed Kind = "payment_dismissed"
	KindUnavailable      Kind = "unavailable"
	KindUnknown          Kind = "unknown"
)

const maxMessageLen = 160

const (
	msgGeneric        = "Something went wrong. Please try again."
	msgUnavailable    = "The store is temporarily unavailable. Please try again."
	msgOutOfStock     = "This item is out of stock in the requested quantity."
	msgVariantGone    = "This product is no longer available."
	msgNotShippable   = "This product cannot be shipped right now. Please try again later."
	msgCartCompleted  = "This cart has already been checked out. Please refresh the page."
	msgNotFound       = "We could not find what you were looking for."
	msgSignIn         = "Please sign in to continue."
	msgStepOrder      = "Please complete the previous checkout step first."
	msgPaymentFailed  = "Your payment could not be completed. Your cart has been kept."
	msgPaymentPending = "We could not confirm your payment yet. Your cart has been kept."
	msgDismissed      = "Payment was cancelled."
)

// UserError is an error whose Message is safe to show to a shopper. The
// original error stays reachable through Unwrap.
type UserError struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Sanitize maps any error to a UserError. It returns nil for a nil error.
func Sanitize(err error) *UserError {
	if err == nil {
		return nil
	}
	var uerr *UserError
	if errors.As(err, &uerr) {
		return uerr
	}
	wrap := func(kind Kind, msg string) *UserError {
		return &UserError{Kind: kind, Message: msg, Err: err}
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return &UserError{Kind: KindValidation, Message: verr.Error(), Fields: verr.Fields, Err: err}
	}
	var terr *checkout.TransitionError
	if errors.As(err, &terr) {
		return wrap(KindConflict, msgStepOrder)
	}
	var perr *checkout.PaymentFailedError
	if errors.As(err, &perr) {
		return wrap(KindPaymentFailed, msgPaymentFailed)
	}

	switch {
	case errors.Is(err, checkout.ErrPaymentTimeout):
		return wrap(KindPaymentTimeout, msgPaymentPending)
	case errors.Is(err, checkout.ErrPaymentDismissed):
		return wrap(KindPaymentDismissed, msgDismissed)
	case errors.Is(err, checkout.ErrForeignPayment):
		return wrap(KindConflict, "This payment does not match your current cart.")
	case errors.Is(err, checkout.ErrEmptyCart):
		return wrap(KindValidation, "Your cart is empty.")
	case errors.Is(err, checkout.ErrNoShippingOption), errors.Is(err, checkout.ErrUnknownShippingOption):
		return wrap(KindValidation, "Please choose a shipping option.")
	case errors.Is(err, customer.ErrWeakPassword):
		return wrap(KindValidation, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		return wrap(KindValidation, "Quantity must be at least 1.")
	case errors.Is(err, order.ErrReturnNotAllowed):
		return wrap(KindConflict, "Returns are only possible for delivered orders.")
	case errors.Is(err, domain.ErrUnauthenticated):
		return wrap(KindUnauthorized, msgSignIn)
	case errors.Is(err, domain.ErrNoCart), errors.Is(err, domain.ErrNotFound):
		return wrap(KindNotFound, msgNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return wrap(KindUnavailable, msgUnavailable)
	}

	apiErr, ok := gateway.AsAPIError(err)
	if !ok {
		return wrap(KindUnavailable, msgUnavailable)
	}
	lower := strings.ToLower(apiErr.Message)
	switch {
	case strings.Contains(lower, "sales channel") || strings.Contains(lower, "stock location"):
		return wrap(KindUnavailable, msgNotShippable)
	case gateway.IsInventoryError(err):
		return wrap(KindOutOfStock, msgOutOfStock)
	case strings.Contains(lower, "variant") && strings.Contains(lower, "not found"):
		return wrap(KindNotFound, msgVariantGone)
	case strings.Contains(lower, "already completed"):
		return wrap(KindConflict, msgCartCompleted)
	case strings.Contains(lower, "already exists"):
		return wrap(KindConflict, "An account with this email already exists.")
	case gateway.IsUnauthorized(err):
		return wrap(KindUnauthorized, msgSignIn)
	case gateway.IsNotFound(err):
		return wrap(KindNotFound, msgNotFound)
	case apiErr.Status >= http.StatusInternalServerError:
		return wrap(KindUnavailable, msgUnavailable)
	case apiErr.Message == "" || len(apiErr.Message) > maxMessageLen:
		return wrap(KindUnknown, msgGeneric)
	case apiErr.Status == http.StatusBadRequest:
		return wrap(KindValidation, apiErr.Message)
	default:
		return wrap(KindUnknown, apiErr.Message)
	}
}

package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentStatus is a provider status after normalization.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentPaid       PaymentStatus = "paid"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentCanceled   PaymentStatus = "canceled"
	PaymentFailed     PaymentStatus = "failed"
	PaymentError      PaymentStatus = "error"
)

// NormalizePaymentStatus folds provider spellings into one vocabulary.
func NormalizePaymentStatus(raw string) PaymentStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return PaymentPending
	case "cancelled", "canceled", "voided", "void":
		return PaymentCanceled
	case "requires_more", "requires_action", "awaiting", "not_paid", "created", "initiated":
		return PaymentPending
	case "success", "successful":
		return PaymentSucceeded
	case "failure", "declined":
		return PaymentFailed
	}
	return PaymentStatus(s)
}

func (s PaymentStatus) IsSuccess() bool {
	switch s {
	case PaymentAuthorized, PaymentCaptured, PaymentSucceeded, PaymentPaid, PaymentCompleted:
		return true
	}
	return false
}

func (s PaymentStatus) IsFailure() bool {
	switch s {
	case PaymentCanceled, PaymentFailed, PaymentError:
		return true
	}
	return false
}

// IsTerminal reports whether no further change is expected.
func (s PaymentStatus) IsTerminal() bool {
	return s.IsSuccess() || s.IsFailure()
}

type PaymentCollection struct {
	ID           string           `json:"id"`
	Status       PaymentStatus    `json:"status"`
	Amount       decimal.Decimal  `json:"amount"`
	CurrencyCode string           `json:"currency_code,omitempty"`
	Sessions     []PaymentSession `json:"payment_sessions,omitempty"`
}

type PaymentSession struct {
	ID           string                 `json:"id"`
	ProviderID   string                 `json:"provider_id"`
	Status       PaymentStatus          `json:"status"`
	Amount       decimal.Decimal        `json:"amount"`
	CurrencyCode string                 `json:"currency_code,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// SessionFor returns the session created for providerID.
func (pc PaymentCollection) SessionFor(providerID string) (PaymentSession, bool) {
	for _, s := range pc.Sessions {
		if s.ProviderID == providerID {
			return s, true
		}
	}
	return PaymentSession{}, false
}

// Resolve summarises the collection: any successful session wins, then any failed one,
// then the collection-level status.
func (pc PaymentCollection) Resolve() PaymentStatus {
	var failed PaymentStatus
	for _, s := range pc.Sessions {
		if s.Status.IsSuccess() {
			return s.Status
		}
		if s.Status.IsFailure() && failed == "" {
			failed = s.Status
		}
	}
	if pc.Status.IsSuccess() {
		return pc.Status
	}
	if failed != "" {
		return failed
	}
	if pc.Status.IsFailure() {
		return pc.Status
	}
	return PaymentPending
}

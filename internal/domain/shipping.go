package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Shipping type codes that live carrier quotes can override.
const (
	ShippingTypeStandard = "standard"
	ShippingTypeExpress  = "express"
)

// Metadata keys written by the rate reconciler.
const (
	MetaETA          = "eta"
	MetaETADays      = "eta_days"
	MetaShippingType = "shipping_type"
	MetaQuoted       = "quoted"
)

// PaymentMode is passed to the carrier rate service; COD may be priced differently.
type PaymentMode string

const (
	PaymentModeCOD    PaymentMode = "cod"
	PaymentModeOnline PaymentMode = "online"
)

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	return m == PaymentModeCOD || m == PaymentModeOnline
}

type ShippingOption struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Amount   decimal.Decimal        `json:"amount"`
	Type     string                 `json:"type,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// TypeCode prefers the declared option type and falls back to metadata.shipping_type.
func (o ShippingOption) TypeCode() string {
	if code := strings.TrimSpace(o.Type); code != "" {
		return strings.ToLower(code)
	}
	if v, ok := o.Metadata[MetaShippingType].(string); ok {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return ""
}

// IsQuoted reports whether a live carrier quote set the amount.
func (o ShippingOption) IsQuoted() bool {
	v, ok := o.Metadata[MetaQuoted].(bool)
	return ok && v
}

// RateQuote is one live carrier price for a shipping type.
type RateQuote struct {
	Type    string          `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
	ETA     string          `json:"eta,omitempty"`
	ETADays int             `json:"eta_days,omitempty"`
	Carrier string          `json:"carrier,omitempty"`
}

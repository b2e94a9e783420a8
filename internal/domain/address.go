package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Address is shared by shipping, billing and the customer's address book.
type Address struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Company     string `json:"company,omitempty" validate:"max=200"`
	Address1    string `json:"address_1" validate:"required,max=300"`
	Address2    string `json:"address_2,omitempty" validate:"max=300"`
	City        string `json:"city" validate:"required,max=100"`
	Province    string `json:"province,omitempty" validate:"max=100"`
	PostalCode  string `json:"postal_code" validate:"required,max=20"`
	CountryCode string `json:"country_code" validate:"required,len=2,alpha"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
}

// CustomerAddress is a saved entry in a customer's address book.
type CustomerAddress struct {
	Address
	ID                string `json:"id"`
	IsDefaultShipping bool   `json:"is_default_shipping,omitempty"`
	IsDefaultBilling  bool   `json:"is_default_billing,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError lists the offending fields of a rejected input.
type ValidationError struct {
	Subject string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(names, ", "))
}

// ValidateAddress checks the address before it is sent anywhere.
func ValidateAddress(subject string, a *Address) error {
	if a == nil {
		return &ValidationError{Subject: subject, Fields: map[string]string{"address": "required"}}
	}
	trimmed := a.Normalized()
	if err := validate.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldName(fe.Field())] = fe.Tag()
		}
		return &ValidationError{Subject: subject, Fields: fields}
	}
	return nil
}

// Normalized trims whitespace and lower-cases the country code.
func (a Address) Normalized() Address {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.Company = strings.TrimSpace(a.Company)
	a.Address1 = strings.TrimSpace(a.Address1)
	a.Address2 = strings.TrimSpace(a.Address2)
	a.City = strings.TrimSpace(a.City)
	a.Province = strings.TrimSpace(a.Province)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.CountryCode = strings.ToLower(strings.TrimSpace(a.CountryCode))
	a.Phone = strings.TrimSpace(a.Phone)
	return a
}

func fieldName(goName string) string {
	switch goName {
	case "FirstName":
		return "first_name"
	case "LastName":
		return "last_name"
	case "Address1":
		return "address_1"
	case "Address2":
		return "address_2"
	case "PostalCode":
		return "postal_code"
	case "CountryCode":
		return "country_code"
	default:
		return strings.ToLower(goName)
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"storefront-core/internal/domain"
)

const (
	authPath     = "/auth/customer/emailpass"
	registerPath = "/auth/customer/emailpass/register"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// NewCustomer is the profile created right after registration.
type NewCustomer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type addressRequest struct {
	domain.Address
	IsDefaultShipping bool `json:"is_default_shipping,omitempty"`
	IsDefaultBilling  bool `json:"is_default_billing,omitempty"`
}

// Authenticate exchanges email and password for a bearer token.
func (c *Client) Authenticate(ctx context.Context, email, password string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, authPath, nil, credentials{Email: email, Password: password}, "")
	if err != nil {
		return "", err
	}
	return decodeToken(body)
}

// Register creates the auth identity. The returned token is only good for
// CreateCustomer; callers authenticate again afterwards.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, registerPath, nil, credentials{Email: email, Password: password}, "")
	if err != nil {
		return "", err
	}
	return decodeToken(body)
}

func decodeToken(body []byte) (string, error) {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("decode token: empty token")
	}
	return resp.Token, nil
}

func (c *Client) CreateCustomer(ctx context.Context, in NewCustomer, token string) (*domain.Customer, error) {
	body, err := c.do(ctx, http.MethodPost, storePath("/customers"), nil, in, token)
	if err != nil {
		return nil, err
	}
	return decodeCustomer(body)
}

func (c *Client) GetCustomer(ctx context.Context, token string) (*domain.Customer, error) {
	body, err := c.do(ctx, http.MethodGet, storePath("/customers/me"), nil, nil, token)
	if err != nil {
		return nil, err
	}
	return decodeCustomer(body)
}

func (c *Client) UpdateCustomer(ctx context.Context, update domain.ProfileUpdate, token string) (*domain.Customer, error) {
	body, err := c.do(ctx, http.MethodPost, storePath("/customers/me"), nil, update, token)
	if err != nil {
		return nil, err
	}
	return decodeCustomer(body)
}

func (c *Client) ListAddresses(ctx context.Context, token string) ([]domain.CustomerAddress, error) {
	body, err := c.do(ctx, http.MethodGet, storePath("/customers/me/addresses"), nil, nil, token)
	if err != nil {
		return nil, err
	}
	return decodeAddresses(body)
}

// AddAddress saves a new address and returns the customer with the updated book.
func (c *Client) AddAddress(ctx context.Context, addr domain.CustomerAddress, token string) (*domain.Customer, error) {
	req := addressRequest{Address: addr.Address, IsDefaultShipping: addr.IsDefaultShipping, IsDefaultBilling: addr.IsDefaultBilling}
	body, err := c.do(ctx, http.MethodPost, storePath("/customers/me/addresses"), nil, req, token)
	if err != nil {
		return nil, err
	}
	return decodeCustomer(body)
}

func (c *Client) UpdateAddress(ctx context.Context, addr domain.CustomerAddress, token string) (*domain.Customer, error) {
	req := addressRequest{Address: addr.Address, IsDefaultShipping: addr.IsDefaultShipping, IsDefaultBilling: addr.IsDefaultBilling}
	body, err := c.do(ctx, http.MethodPost, storePath("/customers/me/addresses/%s", addr.ID), nil, req, token)
	if err != nil {
		return nil, err
	}
	return decodeCustomer(body)
}

func (c *Client) DeleteAddress(ctx context.Context, addressID, token string) error {
	_, err := c.do(ctx, http.MethodDelete, storePath("/customers/me/addresses/%s", addressID), nil, nil, token)
	return err
}

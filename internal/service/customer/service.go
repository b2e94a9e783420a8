package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway"
	"storefront-core/internal/logging"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrWeakPassword wraps every password rule violation.
var ErrWeakPassword = errors.New("weak password")

type customerGateway interface {
	Register(ctx context.Context, email, password string) (string, error)
	CreateCustomer(ctx context.Context, in gateway.NewCustomer, token string) (*domain.Customer, error)
	GetCustomer(ctx context.Context, token string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, update domain.ProfileUpdate, token string) (*domain.Customer, error)
	ListAddresses(ctx context.Context, token string) ([]domain.CustomerAddress, error)
	AddAddress(ctx context.Context, addr domain.CustomerAddress, token string) (*domain.Customer, error)
	UpdateAddress(ctx context.Context, addr domain.CustomerAddress, token string) (*domain.Customer, error)
	DeleteAddress(ctx context.Context, addressID, token string) error
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Service handles signup, the profile and the address book of the signed-in customer.
type Service struct {
	gateway     customerGateway
	tokens      tokenSource
	validate    *validator.Validate
	passwordMin int
	logger      *zap.Logger
}

// New creates a Service with sane defaults.
func New(gw customerGateway, tokens tokenSource, logger *zap.Logger) *Service {
	return &Service{
		gateway:     gw,
		tokens:      tokens,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		passwordMin: 8,
		logger:      logging.OrNop(logger),
	}
}

// RegisterInput captures fields expected by the signup endpoint.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Phone     string `json:"phone" validate:"omitempty,min=6,max=20"`
}

// Register creates the auth identity and the customer profile. It does not
// sign the customer in; callers log in afterwards with the same credentials.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Customer, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationError("registration", err)
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, err
	}

	regToken, err := s.gateway.Register(ctx, in.Email, password)
	if err != nil {
		return nil, fmt.Errorf("register identity: %w", err)
	}
	c, err := s.gateway.CreateCustomer(ctx, gateway.NewCustomer{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
	}, regToken)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.logger.Info("customer registered", zap.String("customer_id", c.ID))
	return c, nil
}

func (s *Service) Profile(ctx context.Context) (*domain.Customer, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	return s.gateway.GetCustomer(ctx, token)
}

func (s *Service) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.Customer, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	if update.Phone != nil {
		phone := strings.TrimSpace(*update.Phone)
		if phone != "" && (len(phone) < 6 || len(phone) > 20) {
			return nil, &domain.ValidationError{Subject: "profile", Fields: map[string]string{"phone": "len"}}
		}
		update.Phone = &phone
	}
	return s.gateway.UpdateCustomer(ctx, update, token)
}

func (s *Service) Addresses(ctx context.Context) ([]domain.CustomerAddress, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	return s.gateway.ListAddresses(ctx, token)
}

// AddAddress validates and saves addr, returning the updated address book.
func (s *Service) AddAddress(ctx context.Context, addr domain.CustomerAddress) ([]domain.CustomerAddress, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAddress("address", &addr.Address); err != nil {
		return nil, err
	}
	addr.Address = addr.Address.Normalized()
	c, err := s.gateway.AddAddress(ctx, addr, token)
	if err != nil {
		return nil, err
	}
	return c.Addresses, nil
}

func (s *Service) UpdateAddress(ctx context.Context, addr domain.CustomerAddress) ([]domain.CustomerAddress, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(addr.ID) == "" {
		return nil, domain.ErrNotFound
	}
	if err := domain.ValidateAddress("address", &addr.Address); err != nil {
		return nil, err
	}
	addr.Address = addr.Address.Normalized()
	c, err := s.gateway.UpdateAddress(ctx, addr, token)
	if err != nil {
		return nil, err
	}
	return c.Addresses, nil
}

func (s *Service) DeleteAddress(ctx context.Context, addressID string) error {
	token, err := s.token(ctx)
	if err != nil {
		return err
	}
	return s.gateway.DeleteAddress(ctx, addressID, token)
}

// CheckoutAddress copies a saved address for use as a checkout address.
func (s *Service) CheckoutAddress(ctx context.Context, addressID string) (*domain.Address, error) {
	addresses, err := s.Addresses(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range addresses {
		if a.ID == addressID {
			addr := a.Address
			return &addr, nil
		}
	}
	return nil, fmt.Errorf("address %s: %w", addressID, domain.ErrNotFound)
}

func (s *Service) token(ctx context.Context) (string, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return "", domain.ErrUnauthenticated
	}
	return token, nil
}

func toValidationError(subject string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return &domain.ValidationError{Subject: subject, Fields: fields}
}

func validatePassword(p string, minLen int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < minLen {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minLen)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("%w: must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number", ErrWeakPassword)
	}
	return nil
}

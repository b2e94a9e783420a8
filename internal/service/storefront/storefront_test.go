package storefront

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway/gatewaytest"
	sessionrepo "storefront-core/internal/repository/session"
	"storefront-core/internal/service/checkout"
	"storefront-core/internal/service/customer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorefront(t *testing.T) (*Storefront, *gatewaytest.Backend, sessionrepo.Repository) {
	t.Helper()
	backend := gatewaytest.NewBackend()
	backend.Variants["v_mug"] = gatewaytest.Variant{Title: "Mug", Price: decimal.NewFromInt(350), Stock: 3}
	backend.Options = []domain.ShippingOption{
		{ID: "so_std", Name: "Standard", Amount: decimal.NewFromInt(50), Type: "standard"},
	}
	repo := sessionrepo.NewMemory()
	sf := New(Deps{
		Backend:   backend,
		Sessions:  repo,
		SessionID: "sess-1",
		RegionID:  "reg_in",
		Payment: checkout.Config{
			SystemProvider: "pp_system_default",
			OnlineProvider: "pp_razorpay_razorpay",
			OnlineKey:      "rzp_test",
			PollAttempts:   3,
			PollDelay:      time.Millisecond,
		},
	})
	return sf, backend, repo
}

func address() *domain.Address {
	return &domain.Address{
		FirstName:   "Grace",
		LastName:    "Hopper",
		Address1:    "4 Park Street",
		City:        "Kolkata",
		PostalCode:  "700016",
		CountryCode: "IN",
		Phone:       "9123456780",
	}
}

func TestAddToCartOutOfStockKeepsCart(t *testing.T) {
	sf, _, _ := newStorefront(t)
	ctx := context.Background()

	c, err := sf.AddToCart(ctx, "v_mug", 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	c, err = sf.AddToCart(ctx, "v_mug", 5)
	var uerr *UserError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindOutOfStock, uerr.Kind)
	require.NotNil(t, c)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestAddToCartUnknownVariant(t *testing.T) {
	sf, _, _ := newStorefront(t)
	_, err := sf.AddToCart(context.Background(), "v_missing", 1)
	var uerr *UserError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindNotFound, uerr.Kind)
	assert.Equal(t, msgVariantGone, uerr.Message)
}

func TestSuccessReturnsUntypedNilError(t *testing.T) {
	sf, _, _ := newStorefront(t)
	c, err := sf.Cart(context.Background())
	require.NoError(t, err)
	assert.True(t, err == nil)
	assert.NotEmpty(t, c.ID)
}

func TestSessionSurvivesNewStorefront(t *testing.T) {
	sf, backend, repo := newStorefront(t)
	ctx := context.Background()
	first, err := sf.AddToCart(ctx, "v_mug", 1)
	require.NoError(t, err)

	again := New(Deps{Backend: backend, Sessions: repo, SessionID: "sess-1", RegionID: "reg_in"})
	c, err := again.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, c.ID)
	assert.Equal(t, 1, backend.Calls("CreateCart"))
}

func TestLoginWithBadCredentials(t *testing.T) {
	sf, backend, _ := newStorefront(t)
	backend.AddCustomer("grace@example.com", "Secret123")

	_, err := sf.Login(context.Background(), "grace@example.com", "nope")
	var uerr *UserError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindUnauthorized, uerr.Kind)
	assert.Equal(t, "Invalid email or password.", uerr.Message)
}

func TestRegisterSignsIn(t *testing.T) {
	sf, backend, _ := newStorefront(t)
	ctx := context.Background()
	_, err := sf.AddToCart(ctx, "v_mug", 1)
	require.NoError(t, err)

	c, err := sf.Register(ctx, customer.RegisterInput{Email: " Grace@Example.com ", Password: "Secret123 ", FirstName: "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", c.Email)
	assert.Equal(t, 1, backend.Calls("Authenticate"))
	assert.Equal(t, 1, backend.Calls("TransferCart"))

	profile, err := sf.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.ID, profile.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	sf, backend, _ := newStorefront(t)
	backend.AddCustomer("grace@example.com", "Secret123")

	_, err := sf.Register(context.Background(), customer.RegisterInput{Email: "grace@example.com", Password: "Secret123"})
	var uerr *UserError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindConflict, uerr.Kind)
}

func TestGuestCannotReadProfileOrOrders(t *testing.T) {
	sf, _, _ := newStorefront(t)
	ctx := context.Background()

	_, err := sf.Profile(ctx)
	var uerr *UserError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindUnauthorized, uerr.Kind)

	orders, err := sf.Orders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckoutCODThroughFacade(t *testing.T) {
	sf, backend, _ := newStorefront(t)
	ctx := context.Background()
	before, err := sf.AddToCart(ctx, "v_mug", 1)
	require.NoError(t, err)

	options, err := sf.UpdateAddresses(ctx, address(), nil, domain.PaymentModeCOD)
	require.NoError(t, err)
	require.Len(t, options, 1)
	require.NoError(t, sf.SelectShippingOption("so_std"))
	assert.Equal(t, checkout.StateShippingSelected, sf.CheckoutState())

	order, err := sf.CompleteCheckout(ctx, checkout.Input{Email: "grace@example.com", ShippingAddress: address(), ShippingOptionID: "so_std"})
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(400)))

	after, err := sf.Cart(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
	assert.Empty(t, after.Items)
	assert.Equal(t, 1, backend.Calls("CompleteCart"))
}

func TestCheckoutValidationErrorCarriesFields(t *testing.T) {
	sf, _, _ := newStorefront(t)
	ctx := context.Background()
	_, err := sf.AddToCart(ctx, "v_mug", 1)
	require.NoError(t, err)

	bad := address()
	bad.PostalCode = ""
	_, err = sf.CompleteCheckout(ctx, checkout.Input{ShippingAddress: bad})
	var uerr *UserError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindValidation, uerr.Kind)
	assert.Contains(t, uerr.Fields, "postal_code")
}

func TestConfirmWithoutPendingPayment(t *testing.T) {
	sf, _, _ := newStorefront(t)
	_, err := sf.ConfirmOnlinePayment(context.Background(), nil)
	var uerr *UserError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindConflict, uerr.Kind)
}

func TestOnlinePaymentPendingThenConfirmed(t *testing.T) {
	sf, backend, _ := newStorefront(t)
	ctx := context.Background()
	_, err := sf.AddToCart(ctx, "v_mug", 1)
	require.NoError(t, err)

	p, err := sf.StartOnlinePayment(ctx, checkout.Input{ShippingAddress: address()})
	require.NoError(t, err)
	assert.Equal(t, "INR", p.Currency)
	assert.NotEmpty(t, p.ProviderOrderID)

	backend.SetPaymentStatus(p.CartID, domain.PaymentCaptured)
	order, err := sf.ConfirmOnlinePayment(ctx, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

func TestConfirmForeignPaymentIsConflict(t *testing.T) {
	sf, backend, _ := newStorefront(t)
	ctx := context.Background()
	_, err := sf.AddToCart(ctx, "v_mug", 1)
	require.NoError(t, err)
	p, err := sf.StartOnlinePayment(ctx, checkout.Input{ShippingAddress: address()})
	require.NoError(t, err)

	foreign := *p
	foreign.CartID = "cart_other"
	_, err = sf.ConfirmOnlinePayment(ctx, &foreign)
	var uerr *UserError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindConflict, uerr.Kind)
	assert.Zero(t, backend.Calls("CompleteCart"))

	c, err := sf.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.CartID, c.ID)
}

func TestOnlinePaymentTimeoutIsSanitized(t *testing.T) {
	sf, _, _ := newStorefront(t)
	ctx := context.Background()
	_, err := sf.AddToCart(ctx, "v_mug", 1)
	require.NoError(t, err)
	p, err := sf.StartOnlinePayment(ctx, checkout.Input{ShippingAddress: address()})
	require.NoError(t, err)

	_, err = sf.ConfirmOnlinePayment(ctx, p)
	var uerr *UserError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindPaymentTimeout, uerr.Kind)

	c, err := sf.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.CartID, c.ID)
}

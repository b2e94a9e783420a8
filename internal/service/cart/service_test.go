package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway"
	"storefront-core/internal/gateway/gatewaytest"
	sessionrepo "storefront-core/internal/repository/session"
	"storefront-core/internal/service/session"

	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T) (*Service, *gatewaytest.Backend, *session.Store) {
	t.Helper()
	backend := gatewaytest.NewBackend()
	backend.Variants["v_tee"] = gatewaytest.Variant{Title: "Tee", Price: decimal.NewFromInt(499), Stock: -1}
	backend.Variants["v_mug"] = gatewaytest.Variant{Title: "Mug", Price: decimal.NewFromInt(250), Stock: 2}
	store := session.New(sessionrepo.NewMemory(), "sess-1")
	return New(backend, store, Options{RegionID: "reg_in"}), backend, store
}

func TestEnsureCartIsIdempotent(t *testing.T) {
	svc, backend, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.EnsureCart(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.EnsureCart(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same cart, got %s and %s", first.ID, second.ID)
	}
	if n := backend.Calls("CreateCart"); n != 1 {
		t.Fatalf("expected one create, got %d", n)
	}
	if id, _ := store.CartID(ctx); id != first.ID {
		t.Fatalf("expected cart id persisted, got %q", id)
	}
}

func TestEnsureCartConcurrentCallersShareAcquisition(t *testing.T) {
	svc, backend, _ := newTestService(t)
	backend.CreateDelay = 20 * time.Millisecond

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := svc.EnsureCart(context.Background())
			if err == nil {
				ids[i] = cart.ID
			}
		}(i)
	}
	wg.Wait()

	if n := backend.Calls("CreateCart"); n != 1 {
		t.Fatalf("expected a single create across concurrent callers, got %d", n)
	}
	for _, id := range ids {
		if id != ids[0] || id == "" {
			t.Fatalf("callers saw different carts: %v", ids)
		}
	}
}

func TestEnsureCartSurvivesFirstCallerCancel(t *testing.T) {
	svc, backend, _ := newTestService(t)
	backend.CreateDelay = 50 * time.Millisecond

	first, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.EnsureCart(first)
	}()
	time.Sleep(10 * time.Millisecond)

	var cart *domain.Cart
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		cart, err = svc.EnsureCart(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	wg.Wait()

	if err != nil {
		t.Fatalf("second caller failed with the first caller's cancellation: %v", err)
	}
	if cart == nil || cart.ID == "" {
		t.Fatalf("expected a cart")
	}
	if n := backend.Calls("CreateCart"); n != 1 {
		t.Fatalf("expected a single create, got %d", n)
	}
}

func TestEnsureCartReusesPersistedCart(t *testing.T) {
	svc, backend, store := newTestService(t)
	ctx := context.Background()
	existing, _ := backend.CreateCart(ctx, "reg_in", "")
	if err := store.SetCartID(ctx, existing.ID); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cart, err := svc.EnsureCart(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ID != existing.ID {
		t.Fatalf("expected persisted cart %s, got %s", existing.ID, cart.ID)
	}
	if n := backend.Calls("CreateCart"); n != 1 {
		t.Fatalf("expected no extra create, got %d creates", n)
	}
}

func TestEnsureCartReplacesMissingOrCompletedCart(t *testing.T) {
	for _, tc := range []struct {
		name  string
		spoil func(b *gatewaytest.Backend, id string)
	}{
		{name: "missing", spoil: func(b *gatewaytest.Backend, id string) { b.DropCart(id) }},
		{name: "completed", spoil: func(b *gatewaytest.Backend, id string) { b.CompleteExternally(id) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc, backend, store := newTestService(t)
			ctx := context.Background()
			stale, _ := backend.CreateCart(ctx, "reg_in", "")
			_ = store.SetCartID(ctx, stale.ID)
			tc.spoil(backend, stale.ID)

			cart, err := svc.EnsureCart(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cart.ID == stale.ID {
				t.Fatalf("expected a new cart")
			}
			if id, _ := store.CartID(ctx); id != cart.ID {
				t.Fatalf("expected new id persisted, got %q", id)
			}
		})
	}
}

func TestEnsureCartPropagatesNonNotFound(t *testing.T) {
	svc, backend, store := newTestService(t)
	ctx := context.Background()
	existing, _ := backend.CreateCart(ctx, "reg_in", "")
	_ = store.SetCartID(ctx, existing.ID)
	backend.FailNext("GetCart", &gateway.APIError{Status: 503, Message: "unavailable"})

	_, err := svc.EnsureCart(ctx)
	if err == nil {
		t.Fatalf("expected error")
	}
	if n := backend.Calls("CreateCart"); n != 1 {
		t.Fatalf("transient failure must not create a cart, got %d creates", n)
	}
	if id, _ := store.CartID(ctx); id != existing.ID {
		t.Fatalf("persisted id must survive, got %q", id)
	}
}

func TestLoginTransfersGuestCart(t *testing.T) {
	svc, backend, store := newTestService(t)
	ctx := context.Background()
	customer := backend.AddCustomer("ada@example.com", "s3cret-Pass")

	guest, err := svc.AddToCart(ctx, "v_tee", 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	cart, err := svc.Login(ctx, "ada@example.com", "s3cret-Pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if cart.ID != guest.ID {
		t.Fatalf("expected guest cart kept, got %s want %s", cart.ID, guest.ID)
	}
	if cart.CustomerID != customer.ID {
		t.Fatalf("expected cart transferred to %s, got %q", customer.ID, cart.CustomerID)
	}
	if cart.ItemCount() != 1 {
		t.Fatalf("expected items to survive login, got %d", cart.ItemCount())
	}
	if tok, _ := store.Token(ctx); tok == "" {
		t.Fatalf("expected token persisted")
	}
}

func TestLoginFallsBackWhenTransferFails(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()
	backend.AddCustomer("ada@example.com", "s3cret-Pass")
	guest, _ := svc.EnsureCart(ctx)
	backend.FailNext("TransferCart", &gateway.APIError{Status: 500, Message: "boom"})

	cart, err := svc.Login(ctx, "ada@example.com", "s3cret-Pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if cart.ID != guest.ID || cart.CustomerID != "" {
		t.Fatalf("expected untransferred guest cart, got %+v", cart)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, backend, store := newTestService(t)
	backend.AddCustomer("ada@example.com", "s3cret-Pass")

	_, err := svc.Login(context.Background(), "ada@example.com", "nope")
	if !gateway.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if tok, _ := store.Token(context.Background()); tok != "" {
		t.Fatalf("token must not be stored on failure")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	svc, backend, store := newTestService(t)
	ctx := context.Background()
	backend.AddCustomer("ada@example.com", "s3cret-Pass")
	if _, err := svc.Login(ctx, "ada@example.com", "s3cret-Pass"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if svc.Current() != nil {
		t.Fatalf("expected in-memory cart dropped")
	}
	tok, _ := store.Token(ctx)
	id, _ := store.CartID(ctx)
	if tok != "" || id != "" {
		t.Fatalf("expected session cleared, got token=%q cart=%q", tok, id)
	}
}

func TestCreateFreshCartAndReplace(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	first, _ := svc.EnsureCart(ctx)

	fresh, err := svc.CreateFreshCart(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.ID == first.ID {
		t.Fatalf("expected a different cart")
	}
	if id, _ := store.CartID(ctx); id != fresh.ID {
		t.Fatalf("expected fresh id persisted")
	}

	if err := svc.Replace(ctx, first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if id, _ := store.CartID(ctx); id != first.ID {
		t.Fatalf("replace must persist the id")
	}
	if err := svc.Replace(ctx, nil); !errors.Is(err, domain.ErrNoCart) {
		t.Fatalf("expected ErrNoCart, got %v", err)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.AddToCart(ctx, "v_tee", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	snap := svc.Current()
	snap.Items[0].Quantity = 99
	if svc.Current().Items[0].Quantity != 1 {
		t.Fatalf("mutating a copy changed the session cart")
	}
}

func TestRefreshWithoutCart(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Refresh(context.Background()); !errors.Is(err, domain.ErrNoCart) {
		t.Fatalf("expected ErrNoCart, got %v", err)
	}
}

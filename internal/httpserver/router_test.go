package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway/gatewaytest"
	sessionrepo "storefront-core/internal/repository/session"
	"storefront-core/internal/service/checkout"
	"storefront-core/internal/service/storefront"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type testEnv struct {
	router   *gin.Engine
	backend  *gatewaytest.Backend
	sessions *Sessions
	built    int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{backend: gatewaytest.NewBackend()}
	env.backend.Variants["v_tea"] = gatewaytest.Variant{Title: "Assam Tea", Price: decimal.NewFromInt(249), Stock: 4}
	env.backend.Options = []domain.ShippingOption{
		{ID: "so_std", Name: "Standard", Amount: decimal.NewFromInt(40), Type: "standard"},
	}
	repo := sessionrepo.NewMemory()
	sessions, err := NewSessions(8, func(id string) *storefront.Storefront {
		env.built++
		return storefront.New(storefront.Deps{
			Backend:   env.backend,
			Sessions:  repo,
			SessionID: id,
			RegionID:  "reg_in",
			Payment: checkout.Config{
				SystemProvider: "pp_system_default",
				OnlineProvider: "pp_razorpay_razorpay",
				OnlineKey:      "rzp_test",
				PollAttempts:   2,
				PollDelay:      time.Millisecond,
			},
		})
	})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	env.sessions = sessions
	router, err := buildRouter(nil, Deps{Sessions: sessions, CORSOrigins: []string{"http://localhost:3000"}})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path, session, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

type cartEnvelope struct {
	Cart  *cartView  `json:"cart"`
	Error *errorBody `json:"error"`
}

func TestBuildRouterRequiresSessions(t *testing.T) {
	if _, err := buildRouter(nil, Deps{}); err == nil {
		t.Fatalf("expected error without sessions")
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		db   pinger
		want int
	}{
		{"memory", nil, http.StatusOK},
		{"db up", stubPinger{}, http.StatusOK},
		{"db down", stubPinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		router := gin.New()
		router.GET("/readyz", readyHandler(tc.db))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestSessionIssuedWhenMissingOrMalformed(t *testing.T) {
	env := newTestEnv(t)
	for _, given := range []string{"", "not-a-uuid"} {
		rec := env.do(t, http.MethodGet, "/cart", given, "")
		id := rec.Header().Get(SessionHeader)
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("expected issued uuid for %q, got %q", given, id)
		}
		if id == given {
			t.Fatalf("expected a new id for %q", given)
		}
		if !strings.Contains(rec.Header().Get("Set-Cookie"), SessionCookie+"="+id) {
			t.Fatalf("expected session cookie, got %q", rec.Header().Get("Set-Cookie"))
		}
	}
}

func TestSessionCookieIsHonoured(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get(SessionHeader); got != id {
		t.Fatalf("expected session %s, got %s", id, got)
	}
}

func TestSessionsAreCachedAndRehydrated(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()

	rec := env.do(t, http.MethodPost, "/cart/items", id, `{"variantId":"v_tea","quantity":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var first cartEnvelope
	decode(t, rec, &first)

	env.do(t, http.MethodGet, "/cart", id, "")
	if env.built != 1 {
		t.Fatalf("expected one storefront built, got %d", env.built)
	}

	// Evicted storefronts resume from the session repository.
	env.sessions.cache.Purge()
	var again cartEnvelope
	decode(t, env.do(t, http.MethodGet, "/cart", id, ""), &again)
	if again.Cart == nil || again.Cart.ID != first.Cart.ID || again.Cart.ItemCount != 2 {
		t.Fatalf("expected rehydrated cart %s, got %+v", first.Cart.ID, again.Cart)
	}
	if env.backend.Calls("CreateCart") != 1 {
		t.Fatalf("expected a single cart created, got %d", env.backend.Calls("CreateCart"))
	}
}

func TestAddItemRendersMoney(t *testing.T) {
	env := newTestEnv(t)
	var resp cartEnvelope
	decode(t, env.do(t, http.MethodPost, "/cart/items", uuid.NewString(), `{"variantId":"v_tea","quantity":2}`), &resp)
	if resp.Cart == nil || len(resp.Cart.LineItems) != 1 {
		t.Fatalf("unexpected cart %+v", resp.Cart)
	}
	if resp.Cart.TotalPrice.Amount != "498.00" || resp.Cart.TotalPrice.Currency != "INR" {
		t.Fatalf("unexpected total %+v", resp.Cart.TotalPrice)
	}
	if resp.Cart.LineItems[0].Price.Display != "INR 249.00" {
		t.Fatalf("unexpected price %+v", resp.Cart.LineItems[0].Price)
	}
	if resp.Cart.CheckoutState != string(checkout.StateCollectingAddresses) {
		t.Fatalf("unexpected checkout state %q", resp.Cart.CheckoutState)
	}
}

func TestAddItemOutOfStockKeepsCart(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	env.do(t, http.MethodPost, "/cart/items", id, `{"variantId":"v_tea","quantity":1}`)

	rec := env.do(t, http.MethodPost, "/cart/items", id, `{"variantId":"v_tea","quantity":9}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp cartEnvelope
	decode(t, rec, &resp)
	if resp.Error == nil || resp.Error.Kind != storefront.KindOutOfStock {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	if resp.Cart == nil || resp.Cart.ItemCount != 1 {
		t.Fatalf("expected unchanged cart, got %+v", resp.Cart)
	}
}

func TestAddItemMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/cart/items", uuid.NewString(), `{"quantity":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Error errorBody `json:"error"`
	}
	decode(t, rec, &resp)
	if resp.Error.Fields["variantID"] != "required" {
		t.Fatalf("expected variantID field error, got %+v", resp.Error.Fields)
	}
}

func TestUpdateAndRemoveItem(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	var added cartEnvelope
	decode(t, env.do(t, http.MethodPost, "/cart/items", id, `{"variantId":"v_tea","quantity":1}`), &added)
	lineID := added.Cart.LineItems[0].ID

	var updated cartEnvelope
	decode(t, env.do(t, http.MethodPatch, "/cart/items/"+lineID, id, `{"quantity":3}`), &updated)
	if updated.Cart.ItemCount != 3 {
		t.Fatalf("expected quantity 3, got %d", updated.Cart.ItemCount)
	}

	var removed cartEnvelope
	decode(t, env.do(t, http.MethodDelete, "/cart/items/"+lineID, id, ""), &removed)
	if removed.Cart == nil || len(removed.Cart.LineItems) != 0 {
		t.Fatalf("expected empty cart, got %+v", removed.Cart)
	}
}

func TestLoginFailureIsSanitized(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddCustomer("meera@example.com", "Chai1234")
	rec := env.do(t, http.MethodPost, "/session/login", uuid.NewString(), `{"email":"meera@example.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid email or password.") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestCODCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	env.do(t, http.MethodPost, "/cart/items", id, `{"variantId":"v_tea","quantity":2}`)

	address := `{"first_name":"Meera","last_name":"Iyer","address_1":"7 Anna Salai","city":"Chennai","postal_code":"600002","country_code":"IN"}`
	rec := env.do(t, http.MethodPost, "/checkout/addresses", id, `{"shippingAddress":`+address+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("addresses: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var options struct {
		CheckoutState   string               `json:"checkoutState"`
		ShippingOptions []shippingOptionView `json:"shippingOptions"`
	}
	decode(t, rec, &options)
	if options.CheckoutState != string(checkout.StateAddressesSet) || len(options.ShippingOptions) != 1 {
		t.Fatalf("unexpected options response %+v", options)
	}

	rec = env.do(t, http.MethodPost, "/checkout/cod", id, `{"email":"meera@example.com","shippingAddress":`+address+`,"shippingOptionId":"so_std"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("cod: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var placed struct {
		Order orderView `json:"order"`
	}
	decode(t, rec, &placed)
	if placed.Order.TotalPrice.Amount != "538.00" {
		t.Fatalf("unexpected order total %+v", placed.Order.TotalPrice)
	}

	var after cartEnvelope
	decode(t, env.do(t, http.MethodGet, "/cart", id, ""), &after)
	if after.Cart.ItemCount != 0 {
		t.Fatalf("expected a fresh cart after the order, got %+v", after.Cart)
	}
}

func TestCheckoutValidationFields(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	env.do(t, http.MethodPost, "/cart/items", id, `{"variantId":"v_tea","quantity":1}`)

	rec := env.do(t, http.MethodPost, "/checkout/cod", id, `{"shippingAddress":{"first_name":"Meera"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error errorBody `json:"error"`
	}
	decode(t, rec, &resp)
	if resp.Error.Fields["city"] != "required" {
		t.Fatalf("expected city to be flagged, got %+v", resp.Error.Fields)
	}
}

func TestOnlinePaymentConfirmFromPending(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	env.do(t, http.MethodPost, "/cart/items", id, `{"variantId":"v_tea","quantity":1}`)
	address := `{"first_name":"Meera","last_name":"Iyer","address_1":"7 Anna Salai","city":"Chennai","postal_code":"600002","country_code":"IN"}`

	rec := env.do(t, http.MethodPost, "/checkout/online", id, `{"shippingAddress":`+address+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var started struct {
		Payment checkout.OnlinePayment `json:"payment"`
	}
	decode(t, rec, &started)
	if started.Payment.ProviderOrderID == "" || started.Payment.ProviderKey != "rzp_test" {
		t.Fatalf("unexpected payment %+v", started.Payment)
	}

	env.backend.SetPaymentStatus(started.Payment.CartID, domain.PaymentAuthorized)
	rec = env.do(t, http.MethodPost, "/checkout/online/confirm", id, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("confirm: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestOnlinePaymentConfirmRejectsForeignCart(t *testing.T) {
	env := newTestEnv(t)
	address := `{"first_name":"Meera","last_name":"Iyer","address_1":"7 Anna Salai","city":"Chennai","postal_code":"600002","country_code":"IN"}`
	mine, theirs := uuid.NewString(), uuid.NewString()
	env.do(t, http.MethodPost, "/cart/items", mine, `{"variantId":"v_tea","quantity":1}`)
	env.do(t, http.MethodPost, "/cart/items", theirs, `{"variantId":"v_tea","quantity":2}`)

	rec := env.do(t, http.MethodPost, "/checkout/online", theirs, `{"shippingAddress":`+address+`}`)
	var started struct {
		Payment checkout.OnlinePayment `json:"payment"`
	}
	decode(t, rec, &started)
	env.backend.SetPaymentStatus(started.Payment.CartID, domain.PaymentCaptured)

	body, _ := json.Marshal(started.Payment)
	rec = env.do(t, http.MethodPost, "/checkout/online/confirm", mine, string(body))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error errorBody `json:"error"`
	}
	decode(t, rec, &resp)
	if resp.Error.Kind != storefront.KindConflict {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	if env.backend.Calls("CompleteCart") != 0 {
		t.Fatalf("the other session's cart must not be completed")
	}

	var kept cartEnvelope
	decode(t, env.do(t, http.MethodGet, "/cart", mine, ""), &kept)
	if kept.Cart == nil || kept.Cart.ItemCount != 1 {
		t.Fatalf("expected the caller's cart kept, got %+v", kept.Cart)
	}
}

func TestOnlinePaymentConfirmBodyAfterEviction(t *testing.T) {
	env := newTestEnv(t)
	address := `{"first_name":"Meera","last_name":"Iyer","address_1":"7 Anna Salai","city":"Chennai","postal_code":"600002","country_code":"IN"}`
	id := uuid.NewString()
	env.do(t, http.MethodPost, "/cart/items", id, `{"variantId":"v_tea","quantity":1}`)
	rec := env.do(t, http.MethodPost, "/checkout/online", id, `{"shippingAddress":`+address+`}`)
	var started struct {
		Payment checkout.OnlinePayment `json:"payment"`
	}
	decode(t, rec, &started)
	env.backend.SetPaymentStatus(started.Payment.CartID, domain.PaymentCaptured)

	env.sessions.cache.Purge()
	built := env.built

	body, _ := json.Marshal(started.Payment)
	rec = env.do(t, http.MethodPost, "/checkout/online/confirm", id, string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("confirm: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if env.built != built+1 {
		t.Fatalf("expected the session rebuilt for the confirm")
	}
	var after cartEnvelope
	decode(t, env.do(t, http.MethodGet, "/cart", id, ""), &after)
	if after.Cart == nil || after.Cart.ItemCount != 0 || after.Cart.ID == started.Payment.CartID {
		t.Fatalf("expected a fresh cart after the order, got %+v", after.Cart)
	}
}

func TestOnlinePaymentTimeout(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	env.do(t, http.MethodPost, "/cart/items", id, `{"variantId":"v_tea","quantity":1}`)
	address := `{"first_name":"Meera","last_name":"Iyer","address_1":"7 Anna Salai","city":"Chennai","postal_code":"600002","country_code":"IN"}`
	env.do(t, http.MethodPost, "/checkout/online", id, `{"shippingAddress":`+address+`}`)

	rec := env.do(t, http.MethodPost, "/checkout/online/confirm", id, "")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGuestAccountRoutes(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()

	if rec := env.do(t, http.MethodGet, "/me", id, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for /me, got %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/orders", id, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":0`) {
		t.Fatalf("expected empty orders, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterThenAddressBook(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()

	rec := env.do(t, http.MethodPost, "/session/register", id, `{"email":"arjun@example.com","password":"Masala99","first_name":"Arjun"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	address := `{"first_name":"Arjun","last_name":"Rao","address_1":"21 Brigade Road","city":"Bengaluru","postal_code":"560025","country_code":"in"}`
	rec = env.do(t, http.MethodPost, "/me/addresses", id, address)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add address: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var book struct {
		Addresses []domain.CustomerAddress `json:"addresses"`
	}
	decode(t, rec, &book)
	if len(book.Addresses) != 1 || book.Addresses[0].City != "Bengaluru" {
		t.Fatalf("unexpected address book %+v", book.Addresses)
	}

	rec = env.do(t, http.MethodDelete, "/me/addresses/"+book.Addresses[0].ID, id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
}

func TestToMoney(t *testing.T) {
	cases := []struct {
		amount decimal.Decimal
		code   string
		want   string
	}{
		{decimal.RequireFromString("1615"), "inr", "INR 1615.00"},
		{decimal.RequireFromString("12.345"), "USD", "USD 12.35"},
		{decimal.RequireFromString("500"), "jpy", "JPY 500"},
		{decimal.RequireFromString("7.5"), "", "7.5"},
	}
	for _, tc := range cases {
		if got := toMoney(tc.amount, tc.code).Display; got != tc.want {
			t.Fatalf("toMoney(%s, %q) = %q, want %q", tc.amount, tc.code, got, tc.want)
		}
	}
}

func TestStatusForKinds(t *testing.T) {
	cases := map[storefront.Kind]int{
		storefront.KindValidation:     http.StatusBadRequest,
		storefront.KindOutOfStock:     http.StatusConflict,
		storefront.KindUnauthorized:   http.StatusUnauthorized,
		storefront.KindPaymentFailed:  http.StatusPaymentRequired,
		storefront.KindPaymentTimeout: http.StatusGatewayTimeout,
		storefront.KindUnavailable:    http.StatusServiceUnavailable,
		storefront.KindUnknown:        http.StatusUnprocessableEntity,
	}
	for kind, want := range cases {
		if got := statusFor(kind); got != want {
			t.Fatalf("statusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

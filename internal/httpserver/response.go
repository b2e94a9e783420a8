package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront-core/internal/domain"
	"storefront-core/internal/service/storefront"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type moneyView struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

// toMoney rounds to the currency's standard scale; unknown codes keep the raw amount.
func toMoney(amount decimal.Decimal, code string) moneyView {
	upper := strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(upper)
	if err != nil {
		return moneyView{Amount: amount.String(), Currency: upper, Display: strings.TrimSpace(upper + " " + amount.String())}
	}
	scale, _ := currency.Standard.Rounding(unit)
	fixed := amount.StringFixed(int32(scale))
	return moneyView{Amount: fixed, Currency: unit.String(), Display: unit.String() + " " + fixed}
}

type cartView struct {
	ID              string                  `json:"id"`
	CustomerID      string                  `json:"customerId,omitempty"`
	Email           string                  `json:"email,omitempty"`
	CurrencyCode    string                  `json:"currencyCode"`
	LineItems       []lineItemView          `json:"lineItems"`
	ItemCount       int                     `json:"itemCount"`
	ShippingAddress *domain.Address         `json:"shippingAddress,omitempty"`
	BillingAddress  *domain.Address         `json:"billingAddress,omitempty"`
	ShippingMethods []domain.ShippingMethod `json:"shippingMethods"`
	Subtotal        moneyView               `json:"subtotal"`
	TaxTotal        moneyView               `json:"taxTotal"`
	ShippingTotal   moneyView               `json:"shippingTotal"`
	TotalPrice      moneyView               `json:"totalPrice"`
	CheckoutState   string                  `json:"checkoutState"`
	CreatedAt       time.Time               `json:"createdAt"`
}

type lineItemView struct {
	ID         string    `json:"id"`
	VariantID  string    `json:"variantId"`
	ProductID  string    `json:"productId,omitempty"`
	Name       string    `json:"name"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	Quantity   int       `json:"quantity"`
	Price      moneyView `json:"price"`
	TotalPrice moneyView `json:"totalPrice"`
	Updating   bool      `json:"updating"`
}

func toCartView(cart *domain.Cart, sf *storefront.Storefront) *cartView {
	if cart == nil {
		return nil
	}
	code := cart.CurrencyCode
	lines := make([]lineItemView, 0, len(cart.Items))
	for _, item := range cart.Items {
		name := item.Title
		if name == "" {
			name = item.VariantID
		}
		lines = append(lines, lineItemView{
			ID:         item.ID,
			VariantID:  item.VariantID,
			ProductID:  item.ProductID,
			Name:       name,
			Thumbnail:  item.Thumbnail,
			Quantity:   item.Quantity,
			Price:      toMoney(item.UnitPrice, code),
			TotalPrice: toMoney(item.Total, code),
			Updating:   sf.IsUpdating(item.ID),
		})
	}
	methods := cart.ShippingMethods
	if methods == nil {
		methods = []domain.ShippingMethod{}
	}
	return &cartView{
		ID:              cart.ID,
		CustomerID:      cart.CustomerID,
		Email:           cart.Email,
		CurrencyCode:    strings.ToUpper(code),
		LineItems:       lines,
		ItemCount:       cart.ItemCount(),
		ShippingAddress: cart.ShippingAddress,
		BillingAddress:  cart.BillingAddress,
		ShippingMethods: methods,
		Subtotal:        toMoney(cart.Subtotal, code),
		TaxTotal:        toMoney(cart.TaxTotal, code),
		ShippingTotal:   toMoney(cart.ShippingTotal, code),
		TotalPrice:      toMoney(cart.Total, code),
		CheckoutState:   string(sf.CheckoutState()),
		CreatedAt:       cart.CreatedAt,
	}
}

type orderView struct {
	ID                string            `json:"id"`
	DisplayID         int               `json:"displayId,omitempty"`
	Status            string            `json:"status"`
	FulfillmentStatus string            `json:"fulfillmentStatus"`
	PaymentStatus     string            `json:"paymentStatus"`
	Email             string            `json:"email,omitempty"`
	LineItems         []domain.LineItem `json:"lineItems"`
	ShippingAddress   *domain.Address   `json:"shippingAddress,omitempty"`
	BillingAddress    *domain.Address   `json:"billingAddress,omitempty"`
	Subtotal          moneyView         `json:"subtotal"`
	ShippingTotal     moneyView         `json:"shippingTotal"`
	TaxTotal          moneyView         `json:"taxTotal"`
	TotalPrice        moneyView         `json:"totalPrice"`
	Returnable        bool              `json:"returnable"`
	CreatedAt         time.Time         `json:"createdAt"`
}

func toOrderView(o domain.Order) orderView {
	items := o.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return orderView{
		ID:                o.ID,
		DisplayID:         o.DisplayID,
		Status:            o.Status,
		FulfillmentStatus: o.FulfillmentStatus,
		PaymentStatus:     o.PaymentStatus,
		Email:             o.Email,
		LineItems:         items,
		ShippingAddress:   o.ShippingAddress,
		BillingAddress:    o.BillingAddress,
		Subtotal:          toMoney(o.Subtotal, o.CurrencyCode),
		ShippingTotal:     toMoney(o.ShippingTotal, o.CurrencyCode),
		TaxTotal:          toMoney(o.TaxTotal, o.CurrencyCode),
		TotalPrice:        toMoney(o.Total, o.CurrencyCode),
		Returnable:        o.IsDelivered(),
		CreatedAt:         o.CreatedAt,
	}
}

type shippingOptionView struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Type    string    `json:"type,omitempty"`
	Price   moneyView `json:"price"`
	ETA     string    `json:"eta,omitempty"`
	ETADays int       `json:"etaDays,omitempty"`
	Quoted  bool      `json:"quoted"`
}

func toShippingOptionViews(options []domain.ShippingOption, currencyCode string) []shippingOptionView {
	out := make([]shippingOptionView, 0, len(options))
	for _, o := range options {
		v := shippingOptionView{
			ID:     o.ID,
			Name:   o.Name,
			Type:   o.TypeCode(),
			Price:  toMoney(o.Amount, currencyCode),
			Quoted: o.IsQuoted(),
		}
		if eta, ok := o.Metadata[domain.MetaETA].(string); ok {
			v.ETA = eta
		}
		if days, ok := o.Metadata[domain.MetaETADays].(int); ok {
			v.ETADays = days
		}
		out = append(out, v)
	}
	return out
}

type errorBody struct {
	Kind    storefront.Kind   `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func statusFor(kind storefront.Kind) int {
	switch kind {
	case storefront.KindValidation:
		return http.StatusBadRequest
	case storefront.KindUnauthorized:
		return http.StatusUnauthorized
	case storefront.KindNotFound:
		return http.StatusNotFound
	case storefront.KindOutOfStock, storefront.KindConflict, storefront.KindPaymentDismissed:
		return http.StatusConflict
	case storefront.KindPaymentFailed:
		return http.StatusPaymentRequired
	case storefront.KindPaymentTimeout:
		return http.StatusGatewayTimeout
	case storefront.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func toErrorBody(err error) (int, errorBody) {
	uerr := storefront.Sanitize(err)
	return statusFor(uerr.Kind), errorBody{Kind: uerr.Kind, Message: uerr.Message, Fields: uerr.Fields}
}

func writeError(c *gin.Context, err error) {
	status, body := toErrorBody(err)
	c.JSON(status, gin.H{"error": body})
}

// writeCart answers a cart operation. On failure the unchanged cart rides
// along with the error so the client can keep rendering it.
func writeCart(c *gin.Context, sf *storefront.Storefront, cart *domain.Cart, err error) {
	if err != nil {
		status, body := toErrorBody(err)
		c.JSON(status, gin.H{"error": body, "cart": toCartView(cart, sf)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": toCartView(cart, sf)})
}

// badRequest reports a body that failed to decode or bind.
func badRequest(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field()[:1])+fe.Field()[1:]] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Kind: storefront.KindValidation, Message: "Please check the highlighted fields.", Fields: fields}})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Kind: storefront.KindValidation, Message: "Malformed request body."}})
}

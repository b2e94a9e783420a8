package httpserver

import (
	"net/http"
	"strings"

	"storefront-core/internal/domain"
	"storefront-core/internal/service/checkout"

	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	Email            string          `json:"email"`
	ShippingAddress  *domain.Address `json:"shippingAddress"`
	BillingAddress   *domain.Address `json:"billingAddress"`
	ShippingOptionID string          `json:"shippingOptionId"`
}

func (r checkoutRequest) input() checkout.Input {
	return checkout.Input{
		Email:            strings.TrimSpace(r.Email),
		ShippingAddress:  r.ShippingAddress,
		BillingAddress:   r.BillingAddress,
		ShippingOptionID: r.ShippingOptionID,
	}
}

type addressesRequest struct {
	ShippingAddress *domain.Address `json:"shippingAddress"`
	BillingAddress  *domain.Address `json:"billingAddress"`
	PaymentMode     string          `json:"paymentMode"`
}

type selectShippingRequest struct {
	ShippingOptionID string `json:"shippingOptionId" binding:"required"`
}

func paymentMode(raw string) domain.PaymentMode {
	if raw == "" {
		return domain.PaymentModeCOD
	}
	return domain.PaymentMode(strings.ToLower(raw))
}

// currencyOf reads the active cart's currency for pricing option lists.
func currencyOf(c *gin.Context) string {
	cart, err := storefrontFrom(c).Cart(c.Request.Context())
	if err != nil || cart == nil {
		return ""
	}
	return cart.CurrencyCode
}

func checkoutAddressesHandler(c *gin.Context) {
	var req addressesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sf := storefrontFrom(c)
	options, err := sf.UpdateAddresses(c.Request.Context(), req.ShippingAddress, req.BillingAddress, paymentMode(req.PaymentMode))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkoutState":   sf.CheckoutState(),
		"shippingOptions": toShippingOptionViews(options, currencyOf(c)),
	})
}

func shippingOptionsHandler(c *gin.Context) {
	sf := storefrontFrom(c)
	options, err := sf.ShippingOptions(c.Request.Context(), paymentMode(c.Query("mode")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shippingOptions": toShippingOptionViews(options, currencyOf(c))})
}

func selectShippingHandler(c *gin.Context) {
	var req selectShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sf := storefrontFrom(c)
	if err := sf.SelectShippingOption(req.ShippingOptionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkoutState": sf.CheckoutState()})
}

func codCheckoutHandler(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := storefrontFrom(c).CompleteCheckout(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": toOrderView(*order)})
}

func startOnlineHandler(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	payment, err := storefrontFrom(c).StartOnlinePayment(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// confirmOnlineHandler confirms the pending payment, or the one in the body
// when the client kept it across a reload.
func confirmOnlineHandler(c *gin.Context) {
	var payment *checkout.OnlinePayment
	if c.Request.ContentLength > 0 {
		var body checkout.OnlinePayment
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		if body.CartID != "" {
			payment = &body
		}
	}
	order, err := storefrontFrom(c).ConfirmOnlinePayment(c.Request.Context(), payment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": toOrderView(*order)})
}

func cancelOnlineHandler(c *gin.Context) {
	sf := storefrontFrom(c)
	cart, err := sf.CancelOnlinePayment(c.Request.Context())
	writeCart(c, sf, cart, err)
}

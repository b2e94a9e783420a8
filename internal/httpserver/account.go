package httpserver

import (
	"net/http"

	"storefront-core/internal/domain"
	"storefront-core/internal/service/customer"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type returnRequest struct {
	Items  []domain.ReturnItem `json:"items"`
	Reason string              `json:"reason"`
}

func loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sf := storefrontFrom(c)
	cart, err := sf.Login(c.Request.Context(), req.Email, req.Password)
	writeCart(c, sf, cart, err)
}

func logoutHandler(c *gin.Context) {
	if err := storefrontFrom(c).Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func registerHandler(c *gin.Context) {
	var req customer.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := storefrontFrom(c).Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"customer": created})
}

func listOrdersHandler(c *gin.Context) {
	orders, err := storefrontFrom(c).Orders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out, "count": len(out)})
}

func getOrderHandler(c *gin.Context) {
	order, err := storefrontFrom(c).Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": toOrderView(*order)})
}

func createReturnHandler(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ret, err := storefrontFrom(c).CreateReturn(c.Request.Context(), c.Param("id"), req.Items, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"return": ret})
}

func profileHandler(c *gin.Context) {
	profile, err := storefrontFrom(c).Profile(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": profile})
}

func updateProfileHandler(c *gin.Context) {
	var req domain.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	profile, err := storefrontFrom(c).UpdateProfile(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": profile})
}

func listAddressesHandler(c *gin.Context) {
	addresses, err := storefrontFrom(c).Addresses(c.Request.Context())
	writeAddresses(c, http.StatusOK, addresses, err)
}

func addAddressHandler(c *gin.Context) {
	var req domain.CustomerAddress
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	addresses, err := storefrontFrom(c).AddAddress(c.Request.Context(), req)
	writeAddresses(c, http.StatusCreated, addresses, err)
}

func updateAddressHandler(c *gin.Context) {
	var req domain.CustomerAddress
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ID = c.Param("id")
	addresses, err := storefrontFrom(c).UpdateAddress(c.Request.Context(), req)
	writeAddresses(c, http.StatusOK, addresses, err)
}

func deleteAddressHandler(c *gin.Context) {
	if err := storefrontFrom(c).DeleteAddress(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeAddresses(c *gin.Context, status int, addresses []domain.CustomerAddress, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	if addresses == nil {
		addresses = []domain.CustomerAddress{}
	}
	c.JSON(status, gin.H{"addresses": addresses})
}

package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func getCartHandler(c *gin.Context) {
	sf := storefrontFrom(c)
	cart, err := sf.Cart(c.Request.Context())
	writeCart(c, sf, cart, err)
}

func addItemHandler(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	sf := storefrontFrom(c)
	cart, err := sf.AddToCart(c.Request.Context(), req.VariantID, req.Quantity)
	writeCart(c, sf, cart, err)
}

func updateItemHandler(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sf := storefrontFrom(c)
	cart, err := sf.UpdateQuantity(c.Request.Context(), c.Param("id"), req.Quantity)
	writeCart(c, sf, cart, err)
}

func removeItemHandler(c *gin.Context) {
	sf := storefrontFrom(c)
	cart, err := sf.RemoveFromCart(c.Request.Context(), c.Param("id"))
	writeCart(c, sf, cart, err)
}

func updatingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"updating": storefrontFrom(c).UpdatingItems()})
}

package httpserver

import (
	"errors"
	"time"

	"storefront-core/internal/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps carries what the router needs. DB is nil when sessions live in memory.
type Deps struct {
	Sessions    *Sessions
	DB          pinger
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil {
		return nil, errors.New("httpserver: sessions are required")
	}
	logger = logging.OrNop(logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger).Writer()), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", SessionHeader},
		ExposeHeaders:    []string{SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.DB))

	api := router.Group("/", sessionMiddleware(deps.Sessions))
	api.GET("/cart", getCartHandler)
	api.POST("/cart/items", addItemHandler)
	api.PATCH("/cart/items/:id", updateItemHandler)
	api.DELETE("/cart/items/:id", removeItemHandler)
	api.GET("/cart/updating", updatingHandler)

	api.POST("/session/login", loginHandler)
	api.POST("/session/logout", logoutHandler)
	api.POST("/session/register", registerHandler)

	api.POST("/checkout/addresses", checkoutAddressesHandler)
	api.GET("/checkout/shipping-options", shippingOptionsHandler)
	api.POST("/checkout/shipping-option", selectShippingHandler)
	api.POST("/checkout/cod", codCheckoutHandler)
	api.POST("/checkout/online", startOnlineHandler)
	api.POST("/checkout/online/confirm", confirmOnlineHandler)
	api.POST("/checkout/online/cancel", cancelOnlineHandler)

	api.GET("/orders", listOrdersHandler)
	api.GET("/orders/:id", getOrderHandler)
	api.POST("/orders/:id/returns", createReturnHandler)

	api.GET("/me", profileHandler)
	api.PATCH("/me", updateProfileHandler)
	api.GET("/me/addresses", listAddressesHandler)
	api.POST("/me/addresses", addAddressHandler)
	api.PUT("/me/addresses/:id", updateAddressHandler)
	api.DELETE("/me/addresses/:id", deleteAddressHandler)

	return router, nil
}

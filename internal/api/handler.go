package api

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/auth"
	"storefront/internal/gate"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CartService is the cart surface the handlers use.
type CartService interface {
	View(ctx context.Context, customerID string) (*service.CartView, error)
	AddItem(ctx context.Context, customerID, productID string, quantity int) (*models.Cart, error)
	SetQuantity(ctx context.Context, customerID, productID string, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, customerID, productID string) (*models.Cart, error)
	Clear(ctx context.Context, customerID string) (*models.Cart, error)
	MergeGuestCart(ctx context.Context, customerID string, lines []models.CartLine) (*models.Cart, int, error)
}

// OrderService is the order surface the handlers use.
type OrderService interface {
	PlaceOrder(ctx context.Context, customerID string, req *service.PlaceOrderRequest) (*models.CustomerOrder, error)
	ListOrders(ctx context.Context, customerID string) ([]*models.CustomerOrder, error)
	GetOrder(ctx context.Context, customerID, orderID string) (*models.CustomerOrder, error)
}

// Handler contains HTTP handlers
type Handler struct {
	cartService  CartService
	orderService OrderService
	jwtService   *auth.JWTService
	gate         *gate.Gate
	storeTimeout time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartService CartService,
	orderService OrderService,
	jwtService *auth.JWTService,
	g *gate.Gate,
	storeTimeout time.Duration,
) *Handler {
	return &Handler{
		cartService:  cartService,
		orderService: orderService,
		jwtService:   jwtService,
		gate:         g,
		storeTimeout: storeTimeout,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(h.jwtService))
	{
		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:productRef", h.updateCartItem)
		v1.DELETE("/cart/items/:productRef", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)
		v1.POST("/cart/sync", h.syncCart)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every store and reports each one's state
func (h *Handler) readinessCheck(c *gin.Context) {
	h.gate.Refresh(c.Request.Context(), h.storeTimeout)

	status, code := "ready", http.StatusOK
	if !h.gate.AllReady() {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"stores": h.gate.Statuses(),
		"time":   time.Now().Unix(),
	})
}

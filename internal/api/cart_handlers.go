package api

import (
	"net/http"

	"storefront/internal/models"

	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type syncCartRequest struct {
	Items []models.CartLine `json:"items"`
}

// getCart returns the cart with products and price summary attached
func (h *Handler) getCart(c *gin.Context) {
	view, err := h.cartService.View(c.Request.Context(), customerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// addCartItem adds a product to the cart
func (h *Handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	cart, err := h.cartService.AddItem(c.Request.Context(), customerID(c), req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

// updateCartItem sets the quantity of a cart line
func (h *Handler) updateCartItem(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	cart, err := h.cartService.SetQuantity(c.Request.Context(), customerID(c), c.Param("productRef"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

// removeCartItem removes a line from the cart
func (h *Handler) removeCartItem(c *gin.Context) {
	cart, err := h.cartService.RemoveItem(c.Request.Context(), customerID(c), c.Param("productRef"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

// clearCart empties the cart
func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.cartService.Clear(c.Request.Context(), customerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

// syncCart merges a guest session's cart into the customer's cart
func (h *Handler) syncCart(c *gin.Context) {
	var req syncCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	cart, skipped, err := h.cartService.MergeGuestCart(c.Request.Context(), customerID(c), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cart":    cart,
		"skipped": skipped,
	})
}

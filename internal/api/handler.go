package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-intake/internal/apperr"
	"order-intake/internal/models"
	"order-intake/internal/service"
	"order-intake/internal/store"
	"order-intake/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProductStore is the catalog surface the API reads from.
type ProductStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListActiveProducts(ctx context.Context) ([]models.Product, error)
}

// Handler contains HTTP handlers
type Handler struct {
	checkout *service.CheckoutService
	carts    *service.CartService
	orders   *service.OrderService
	products ProductStore
}

// NewHandler creates a new HTTP handler
func NewHandler(checkout *service.CheckoutService, carts *service.CartService, orders *service.OrderService, products ProductStore) *Handler {
	return &Handler{
		checkout: checkout,
		carts:    carts,
		orders:   orders,
		products: products,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(correlationMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.GET("/carts/:sessionId", h.getCart)
		v1.POST("/carts/:sessionId/items", h.addCartItem)
		v1.PUT("/carts/:sessionId/items/:productId", h.updateCartItem)
		v1.DELETE("/carts/:sessionId/items/:productId", h.removeCartItem)
		v1.DELETE("/carts/:sessionId", h.clearCart)

		v1.POST("/checkout", h.checkoutCart)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:orderNumber", h.getOrder)
		v1.POST("/orders/:orderNumber/cancel", h.cancelOrder)
		v1.POST("/orders/:orderNumber/fulfill", h.fulfillOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.ListActiveProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	product, err := h.products.GetProductByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	cart, err := h.carts.AddItem(c.Request.Context(), c.Param("sessionId"), req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	cart, err := h.carts.UpdateItem(c.Request.Context(), c.Param("sessionId"), productID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	cart, err := h.carts.RemoveItem(c.Request.Context(), c.Param("sessionId"), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.ClearCart(c.Request.Context(), c.Param("sessionId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkoutCart handles the checkout submission. Retries with the same
// Idempotency-Key header replay the original response verbatim.
func (h *Handler) checkoutCart(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")

	outcome, err := h.checkout.Checkout(c.Request.Context(), idempotencyKey, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if outcome.Replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	c.JSON(outcome.StatusCode, outcome.Response)
}

func (h *Handler) listOrders(c *gin.Context) {
	f := store.OrderFilter{
		Status:        c.Query("status"),
		CustomerEmail: c.Query("email"),
	}
	if v := c.Query("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}
	if v := c.Query("offset"); v != "" {
		f.Offset, _ = strconv.Atoi(v)
	}
	if v := c.Query("createdAfter"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.CreatedAfter = t
		}
	}
	if v := c.Query("createdBefore"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.CreatedBefore = t
		}
	}

	orders, err := h.orders.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	detail, err := h.orders.GetByNumber(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) cancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orders.Cancel(c.Request.Context(), c.Param("orderNumber"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type fulfillOrderRequest struct {
	TrackingNumber string `json:"trackingNumber" binding:"required"`
	Carrier        string `json:"carrier" binding:"required"`
}

func (h *Handler) fulfillOrder(c *gin.Context) {
	var req fulfillOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orders.Fulfill(c.Request.Context(), c.Param("orderNumber"), req.TrackingNumber, req.Carrier)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, apperr.ErrIdempotencyConflict) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	var ie *apperr.InsufficientInventoryError
	if errors.As(err, &ie) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     ie.Error(),
			"productId": ie.ProductID,
			"requested": ie.Requested,
			"available": ie.Available,
		})
		return
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		c.JSON(ae.Kind.HTTPStatus(), gin.H{"error": ae.Message})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// correlationMiddleware threads the request correlation id through the
// context, minting one when the caller did not send it.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("X-Correlation-ID")
		if cid == "" {
			cid = util.CorrelationID(c.Request.Context())
		}
		c.Request = c.Request.WithContext(util.WithCorrelationID(c.Request.Context(), cid))
		c.Header("X-Correlation-ID", cid)
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

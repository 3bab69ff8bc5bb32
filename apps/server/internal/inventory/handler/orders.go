package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/stockroom/pkg/api"
)

// ListOrders handles GET /orders?status=.
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.svc.ListOrders(c.Request.Context(), api.OrderStatus(c.Query("status")))
	if err != nil {
		h.fail(c, "failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, api.ListOrdersResponse{Orders: orders})
}

// GetOrder handles GET /orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	id := c.Param("id")
	o, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to get order", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, o)
}

// CreateOrder handles POST /orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req api.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.svc.CreateOrder(c.Request.Context(), actor(c), req)
	if err != nil {
		h.fail(c, "failed to create order", err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// UpdateOrder handles PUT /orders/:id. Only drafts can be edited.
func (h *Handler) UpdateOrder(c *gin.Context) {
	id := c.Param("id")
	var req api.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.svc.UpdateOrder(c.Request.Context(), actor(c), id, req)
	if err != nil {
		h.fail(c, "failed to update order", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, o)
}

type transitionFunc func(ctx context.Context, actor, id string) (*api.Order, error)

func (h *Handler) transition(c *gin.Context, what string, fn transitionFunc) {
	id := c.Param("id")
	o, err := fn(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, "failed to "+what+" order", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, o)
}

// SubmitOrder handles POST /orders/:id/submit.
func (h *Handler) SubmitOrder(c *gin.Context) { h.transition(c, "submit", h.svc.SubmitOrder) }

// ReceiveOrder handles POST /orders/:id/receive and books every line into
// stock.
func (h *Handler) ReceiveOrder(c *gin.Context) { h.transition(c, "receive", h.svc.ReceiveOrder) }

// CancelOrder handles POST /orders/:id/cancel.
func (h *Handler) CancelOrder(c *gin.Context) { h.transition(c, "cancel", h.svc.CancelOrder) }

// Suggestions handles GET /orders/suggestions.
func (h *Handler) Suggestions(c *gin.Context) {
	sugg, err := h.svc.Suggestions(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to build suggestions", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(sugg))
}

// OrderPDF handles GET /orders/:id/pdf, rendering the order with the
// caller's company details.
func (h *Handler) OrderPDF(c *gin.Context) {
	id := c.Param("id")
	pdf, o, err := h.svc.OrderPDF(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, "failed to render order", err, "id", id)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+o.Number+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// PublishOrderPDF handles POST /orders/:id/publish. The PDF is committed
// next to the order and its URL recorded.
func (h *Handler) PublishOrderPDF(c *gin.Context) {
	id := c.Param("id")
	o, err := h.svc.PublishOrderPDF(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, "failed to publish order", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, o)
}

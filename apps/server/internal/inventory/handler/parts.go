package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/pkg/api"
)

// ListParts handles GET /parts?category=&level=&q=.
func (h *Handler) ListParts(c *gin.Context) {
	parts, err := h.svc.ListParts(c.Request.Context(), inventory.PartFilter{
		Category: c.Query("category"),
		Level:    api.StockLevel(c.Query("level")),
		Query:    c.Query("q"),
	})
	if err != nil {
		h.fail(c, "failed to list parts", err)
		return
	}
	c.JSON(http.StatusOK, api.ListPartsResponse{Parts: parts})
}

// GetPart handles GET /parts/:id.
func (h *Handler) GetPart(c *gin.Context) {
	id := c.Param("id")
	p, err := h.svc.GetPart(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to get part", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreatePart handles POST /parts.
func (h *Handler) CreatePart(c *gin.Context) {
	var in api.PartInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.svc.CreatePart(c.Request.Context(), actor(c), in)
	if err != nil {
		h.fail(c, "failed to create part", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdatePart handles PUT /parts/:id.
func (h *Handler) UpdatePart(c *gin.Context) {
	id := c.Param("id")
	var in api.PartInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.svc.UpdatePart(c.Request.Context(), actor(c), id, in)
	if err != nil {
		h.fail(c, "failed to update part", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePart handles DELETE /parts/:id?version=.
func (h *Handler) DeletePart(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeletePart(c.Request.Context(), actor(c), id, c.Query("version")); err != nil {
		h.fail(c, "failed to delete part", err, "id", id)
		return
	}
	c.Status(http.StatusNoContent)
}

// AdjustStock handles POST /parts/:id/adjust.
func (h *Handler) AdjustStock(c *gin.Context) {
	id := c.Param("id")
	var adj api.StockAdjustment
	if err := c.ShouldBindJSON(&adj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.AdjustStock(c.Request.Context(), actor(c), id, adj)
	if err != nil {
		h.fail(c, "failed to adjust stock", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListMovements handles GET /parts/:id/movements.
func (h *Handler) ListMovements(c *gin.Context) {
	id := c.Param("id")
	ms, err := h.svc.ListMovements(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to list movements", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, nonNil(ms))
}

// RecentMovements handles GET /movements/recent?limit=.
func (h *Handler) RecentMovements(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ms, err := h.svc.RecentMovements(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, "failed to list recent movements", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(ms))
}

// intQuery returns the integer query parameter name, or 0 when absent.
func intQuery(c *gin.Context, name string) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, inventory.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

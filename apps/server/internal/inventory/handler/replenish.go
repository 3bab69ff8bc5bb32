package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/stockroom/pkg/api"
)

// StartReplenishment handles POST /replenishments. The body is optional.
func (h *Handler) StartReplenishment(c *gin.Context) {
	var req api.ReplenishmentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.svc.StartReplenishment(c.Request.Context(), actor(c), req)
	if err != nil {
		h.fail(c, "failed to start replenishment", err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// GetReplenishment handles GET /replenishments/:id.
func (h *Handler) GetReplenishment(c *gin.Context) {
	id := c.Param("id")
	res, err := h.svc.ReplenishmentStatus(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to get replenishment", err, "runId", id)
		return
	}
	c.JSON(http.StatusOK, res)
}

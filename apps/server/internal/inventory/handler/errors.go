package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/stockroom/apps/server/internal/inventory"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		partNotFound  inventory.PartNotFoundError
		orderNotFound inventory.OrderNotFoundError
		runNotFound   inventory.ReplenishmentNotFoundError
		conflict      inventory.VersionConflictError
		duplicate     inventory.DuplicatePartNumberError
		invalid       inventory.ValidationError
		insufficient  inventory.InsufficientStockError
		transition    inventory.InvalidOrderTransitionError
		notEditable   inventory.OrderNotEditableError
		unavailable   inventory.ReplenishmentUnavailableError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &partNotFound), errors.As(err, &orderNotFound), errors.As(err, &runNotFound):
		return http.StatusNotFound
	case errors.As(err, &conflict), errors.As(err, &duplicate):
		return http.StatusConflict
	case errors.As(err, &insufficient), errors.As(err, &transition), errors.As(err, &notEditable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as JSON. Only unexpected errors are logged.
func (h *Handler) fail(c *gin.Context, msg string, err error, attrs ...any) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(msg, append(attrs, "error", err)...)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

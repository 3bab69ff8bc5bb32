package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	authhandler "github.com/tilsley/stockroom/apps/server/internal/accounts/handler"
	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/pkg/api"
)

// PreferenceSource looks up a user's UI preferences. Nil preferences mean
// defaults.
type PreferenceSource interface {
	Preferences(ctx context.Context, userID string) (*api.Preferences, error)
}

// Compile-time check: *accounts.Service implements PreferenceSource.
var _ PreferenceSource = (*accounts.Service)(nil)

// Handler translates HTTP requests into calls on the inventory.Service.
type Handler struct {
	svc   *inventory.Service
	prefs PreferenceSource
	log   *slog.Logger
}

// RegisterRoutes mounts the inventory API onto r, which must already require
// auth. Reads are open to every role; writes need editor.
func RegisterRoutes(r gin.IRouter, svc *inventory.Service, prefs PreferenceSource, log *slog.Logger) {
	h := &Handler{svc: svc, prefs: prefs, log: log}
	editor := authhandler.RequireRole(api.RoleEditor)

	// Parts and stock
	r.GET("/parts", h.ListParts)
	r.POST("/parts", editor, h.CreatePart)
	r.GET("/parts/:id", h.GetPart)
	r.PUT("/parts/:id", editor, h.UpdatePart)
	r.DELETE("/parts/:id", editor, h.DeletePart)
	r.POST("/parts/:id/adjust", editor, h.AdjustStock)
	r.GET("/parts/:id/movements", h.ListMovements)
	r.GET("/movements/recent", h.RecentMovements)

	// Purchase orders
	r.GET("/orders", h.ListOrders)
	r.POST("/orders", editor, h.CreateOrder)
	r.GET("/orders/suggestions", h.Suggestions)
	r.GET("/orders/:id", h.GetOrder)
	r.PUT("/orders/:id", editor, h.UpdateOrder)
	r.POST("/orders/:id/submit", editor, h.SubmitOrder)
	r.POST("/orders/:id/receive", editor, h.ReceiveOrder)
	r.POST("/orders/:id/cancel", editor, h.CancelOrder)
	r.GET("/orders/:id/pdf", h.OrderPDF)
	r.POST("/orders/:id/publish", editor, h.PublishOrderPDF)

	// Replenishment runs
	r.POST("/replenishments", editor, h.StartReplenishment)
	r.GET("/replenishments/:id", h.GetReplenishment)

	r.GET("/dashboard", h.Dashboard)
}

// actor is the user ID recorded on records and movements. It also selects
// the company details printed on order documents.
func actor(c *gin.Context) string {
	return authhandler.CurrentPrincipal(c).UserID
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultDashboardRecent = 10

// Dashboard handles GET /dashboard?recent=. Without recent, the caller's
// preferred limit is used.
func (h *Handler) Dashboard(c *gin.Context) {
	recent, err := h.recentLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.svc.Dashboard(c.Request.Context(), recent)
	if err != nil {
		h.fail(c, "failed to build dashboard", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) recentLimit(c *gin.Context) (int, error) {
	if _, ok := c.GetQuery("recent"); ok {
		return intQuery(c, "recent")
	}
	if h.prefs == nil {
		return defaultDashboardRecent, nil
	}
	prefs, err := h.prefs.Preferences(c.Request.Context(), actor(c))
	if err != nil {
		h.log.Warn("preferences unavailable, using defaults", "error", err)
		return defaultDashboardRecent, nil
	}
	if prefs == nil || prefs.RecentLimit == 0 {
		return defaultDashboardRecent, nil
	}
	return prefs.RecentLimit, nil
}

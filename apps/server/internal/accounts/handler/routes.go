package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	"github.com/tilsley/stockroom/pkg/api"
)

// Handler translates HTTP requests into calls on the accounts.Service.
type Handler struct {
	svc *accounts.Service
	log *slog.Logger
}

// RegisterRoutes mounts sign-in on public and the session, profile and
// user management routes on private, which must already require auth.
func RegisterRoutes(public, private gin.IRouter, svc *accounts.Service, log *slog.Logger) {
	h := &Handler{svc: svc, log: log}

	public.POST("/auth/login", h.Login)

	private.POST("/auth/logout", h.Logout)
	private.GET("/me", h.Me)
	private.PATCH("/me/profile", h.UpdateProfile)

	// Admin only
	admin := private.Group("/users", RequireRole(api.RoleAdmin))
	admin.GET("", h.ListUsers)
	admin.POST("", h.CreateUser)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "login failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), CurrentPrincipal(c)); err != nil {
		h.fail(c, "logout failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	res, err := h.svc.Me(c.Request.Context(), CurrentPrincipal(c).UserID)
	if err != nil {
		h.fail(c, "failed to load current user", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateProfile handles PATCH /me/profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var upd api.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.svc.UpdateProfile(c.Request.Context(), CurrentPrincipal(c).UserID, upd)
	if err != nil {
		h.fail(c, "failed to update profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(c *gin.Context) {
	var req api.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.svc.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "failed to create user", err)
		return
	}
	h.log.Info("user added", "userId", u.Id, "by", CurrentPrincipal(c).UserID)
	c.JSON(http.StatusCreated, u)
}

// fail writes err with the status its type maps to. Unexpected errors are
// logged with msg.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	var (
		invalid  accounts.InvalidInputError
		taken    accounts.EmailTakenError
		notFound accounts.UserNotFoundError
		creds    accounts.InvalidCredentialsError
		unauth   accounts.UnauthenticatedError
	)
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &creds), errors.As(err, &unauth):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &taken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error(msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

package validation_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/apps/server/internal/platform/validation"
	"github.com/tilsley/stockroom/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)

	r := gin.New()
	r.Use(mw)
	// Register a catch-all so Gin doesn't 404 before the middleware runs.
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusOK) })
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.POST("/auth/login", ok)
	r.POST("/users", ok)
	r.PATCH("/me/profile", ok)
	r.GET("/parts", ok)
	r.POST("/parts", ok)
	r.POST("/parts/:id/adjust", ok)
	r.GET("/movements/recent", ok)
	r.POST("/orders", ok)
	r.GET("/orders/suggestions", ok)
	r.GET("/dashboard", ok)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ─── auth & users ────────────────────────────────────────────────────────────

func TestLogin_MissingPassword_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/auth/login", `{"email":"ops@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "request body")
}

func TestLogin_ValidPayload_Passes(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/auth/login", `{"email":"ops@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateUser_ShortPasswordOrBadRole_Returns400(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, http.StatusBadRequest,
		do(r, http.MethodPost, "/users", `{"email":"a@b.c","password":"short","role":"editor"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(r, http.MethodPost, "/users", `{"email":"a@b.c","password":"longenough","role":"owner"}`).Code)
	assert.Equal(t, http.StatusNoContent,
		do(r, http.MethodPost, "/users", `{"email":"a@b.c","password":"longenough","role":"viewer"}`).Code)
}

func TestUpdateProfile_BadCurrency_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPatch, "/me/profile", `{"preferences":{"currency":"usd"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPatch, "/me/profile", `{"preferences":{"currency":"USD","recentLimit":20}}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

// ─── parts ───────────────────────────────────────────────────────────────────

func TestCreatePart_MissingName_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/parts", `{"partNumber":"BLT-M6","category":"fasteners"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePart_NegativeQuantity_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/parts",
		`{"partNumber":"BLT-M6","name":"M6 bolt","category":"fasteners","quantity":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePart_ValidPayload_Passes(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/parts",
		`{"partNumber":"BLT-M6","name":"M6 bolt","category":"fasteners","quantity":40,"unitCost":0.12}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestListParts_UnknownLevel_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodGet, "/parts?level=plenty", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `parameter \"level\"`)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/parts?level=low_stock", "").Code)
}

func TestAdjust_UnknownReason_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/parts/p1/adjust", `{"delta":-3,"reason":"lost"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/parts/p1/adjust", `{"delta":-3,"reason":"consumed"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecentMovements_LimitOutOfRange_Returns400(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/movements/recent?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/movements/recent?limit=201", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/movements/recent?limit=50", "").Code)
}

// ─── orders ──────────────────────────────────────────────────────────────────

func TestCreateOrder_EmptyLines_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/orders", `{"supplier":"Fastenal","lines":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrder_ZeroQuantity_Returns400(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/orders", `{"supplier":"Fastenal","lines":[{"partId":"p1","quantity":0}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrder_ValidPayload_Passes(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/orders", `{"supplier":"Fastenal","lines":[{"partId":"p1","quantity":10}]}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOrderSuggestions_NotTreatedAsOrderID(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/orders/suggestions", "").Code)
}

func TestDashboard_RecentOutOfRange_Returns400(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/dashboard?recent=500", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/dashboard?recent=0", "").Code)
}

// ─── unknown routes pass through ─────────────────────────────────────────────

func TestUnknownRoute_PassesThrough(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/internal/reindex", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ─── New() with invalid spec ──────────────────────────────────────────────────

func TestNew_InvalidSpec_ReturnsError(t *testing.T) {
	_, err := validation.New([]byte(`not yaml`))
	assert.Error(t, err)
}

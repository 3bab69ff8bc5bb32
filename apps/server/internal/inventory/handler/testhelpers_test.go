package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	authhandler "github.com/tilsley/stockroom/apps/server/internal/accounts/handler"
	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/apps/server/internal/inventory/handler"
	"github.com/tilsley/stockroom/apps/server/internal/inventory/store"
	"github.com/tilsley/stockroom/apps/server/internal/platform/validation"
	"github.com/tilsley/stockroom/pkg/api"
	"github.com/tilsley/stockroom/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ptr[T any](v T) *T { return &v }

// Tokens accepted by stubAuth, one per role.
const (
	viewer = "viewer-token"
	editor = "editor-token"
	admin  = "admin-token"
)

// ─── Stubs ────────────────────────────────────────────────────────────────────

type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token string) (*accounts.Principal, error) {
	switch token {
	case viewer:
		return &accounts.Principal{UserID: "u-viewer", Role: api.RoleViewer}, nil
	case editor:
		return &accounts.Principal{UserID: "u-editor", Role: api.RoleEditor}, nil
	case admin:
		return &accounts.Principal{UserID: "u-admin", Role: api.RoleAdmin}, nil
	}
	return nil, accounts.UnauthenticatedError{Reason: "invalid token"}
}

type stubPrefs struct {
	prefs map[string]*api.Preferences
}

func (p *stubPrefs) Preferences(_ context.Context, userID string) (*api.Preferences, error) {
	return p.prefs[userID], nil
}

type stubEngine struct {
	started []string
	status  map[string]*api.ReplenishmentResult
}

func (e *stubEngine) StartReplenishment(_ context.Context, runID string, _ api.ReplenishmentRequest) error {
	e.started = append(e.started, runID)
	return nil
}

func (e *stubEngine) ReplenishmentStatus(_ context.Context, runID string) (*api.ReplenishmentResult, error) {
	return e.status[runID], nil
}

type stubCompany struct{}

func (stubCompany) CompanyInfo(_ context.Context, userID string) (*api.CompanyInfo, error) {
	return &api.CompanyInfo{Name: "Workshop of " + userID}, nil
}

// ─── Test server builder ──────────────────────────────────────────────────────

type testServer struct {
	router *gin.Engine
	store  *store.MemStore
	engine *stubEngine
	prefs  *stubPrefs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return buildServer(t, &stubEngine{status: map[string]*api.ReplenishmentResult{}})
}

func newTestServerWithoutEngine(t *testing.T) *testServer {
	t.Helper()
	return buildServer(t, nil)
}

func buildServer(t *testing.T, engine *stubEngine) *testServer {
	t.Helper()
	ts := &testServer{
		store:  store.NewMemStore(),
		engine: engine,
		prefs:  &stubPrefs{prefs: map[string]*api.Preferences{}},
	}
	log := slog.New(slog.DiscardHandler)

	var eng inventory.ReplenishmentEngine
	if engine != nil {
		eng = engine
	}
	svc := inventory.NewService(ts.store, stubCompany{}, eng, log)

	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)
	r := gin.New()
	r.Use(mw)
	handler.RegisterRoutes(r.Group("/", authhandler.RequireAuth(stubAuth{}, log)), svc, ts.prefs, log)
	ts.router = r
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// createPart adds a part through the API and returns it.
func (ts *testServer) createPart(t *testing.T, in api.PartInput) api.Part {
	t.Helper()
	w := ts.do(http.MethodPost, "/parts", editor, in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[api.Part](t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func bolt() api.PartInput {
	return api.PartInput{
		PartNumber:      "BLT-M6-20",
		Name:            "M6 x 20 hex bolt",
		Category:        "Fasteners",
		Supplier:        ptr("Bolt Bros"),
		Unit:            "each",
		Quantity:        4,
		ReorderPoint:    10,
		ReorderQuantity: 50,
		UnitCost:        0.12,
	}
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	"github.com/tilsley/stockroom/apps/server/internal/accounts/handler"
	"github.com/tilsley/stockroom/apps/server/internal/accounts/store"
	"github.com/tilsley/stockroom/apps/server/internal/platform/validation"
	"github.com/tilsley/stockroom/pkg/api"
	"github.com/tilsley/stockroom/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const password = "correct horse"

// ─── Test server builder ──────────────────────────────────────────────────────

type testServer struct {
	router *gin.Engine
	svc    *accounts.Service
	mem    *store.MemStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemStore()
	log := slog.New(slog.DiscardHandler)
	svc := accounts.NewService(mem, mem, mem, accounts.NewTokens("handler-secret"), time.Hour, log)

	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)
	r := gin.New()
	r.Use(mw)
	handler.RegisterRoutes(r, r.Group("/", handler.RequireAuth(svc, log)), svc, log)

	return &testServer{router: r, svc: svc, mem: mem}
}

// user creates an account with role and returns a token for it.
func (ts *testServer) user(t *testing.T, email string, role api.Role) string {
	t.Helper()
	_, err := ts.svc.CreateUser(context.Background(), api.CreateUserRequest{
		Email:    email,
		Password: password,
		Role:     role,
	})
	require.NoError(t, err)
	res, err := ts.svc.Login(context.Background(), email, password)
	require.NoError(t, err)
	return res.Token
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

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/apps/server/internal/ghdb"
	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/apps/server/internal/inventory/store"
	"github.com/tilsley/stockroom/apps/server/internal/platform/github"
	"github.com/tilsley/stockroom/pkg/api"
	"github.com/tilsley/stockroom/pkg/ghfake"
)

const (
	owner  = "acme"
	repo   = "inventory"
	branch = "main"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newGitHubStore(t *testing.T) (*store.GitHubStore, *ghfake.Server) {
	t.Helper()
	fake := ghfake.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	r, err := ghdb.New(github.NewTokenClient("", srv.URL), ghdb.Config{
		Owner:          owner,
		Repo:           repo,
		InitialBackoff: time.Millisecond,
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return store.NewGitHubStore(r, slog.New(slog.DiscardHandler)), fake
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func bolt() api.Part {
	return api.Part{
		Id:           "p-bolt",
		PartNumber:   "BLT-M6",
		Name:         "M6 bolt",
		Category:     "fasteners",
		Unit:         "pcs",
		Quantity:     40,
		ReorderPoint: 10,
		UnitCost:     0.12,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
}

func movement(id string, at time.Time, delta, after int) api.StockMovement {
	return api.StockMovement{
		Id:            id,
		PartId:        "p-bolt",
		PartNumber:    "BLT-M6",
		Delta:         delta,
		QuantityAfter: after,
		Reason:        api.MovementReasonCorrection,
		CreatedAt:     at,
		CreatedBy:     "u1",
	}
}

// ─── parts ───────────────────────────────────────────────────────────────────

func TestGitHubStore_CreateAndGetPart(t *testing.T) {
	s, fake := newGitHubStore(t)
	ctx := context.Background()

	created, err := s.CreatePart(ctx, bolt(), "Create part BLT-M6")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Version)

	got, err := s.GetPart(ctx, "p-bolt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.Version, got.Version)
	assert.Equal(t, "BLT-M6", got.PartNumber)

	raw, ok := fake.File(owner, repo, branch, "parts/p-bolt.json")
	require.True(t, ok)
	assert.NotContains(t, string(raw), `"version"`)
	assert.NotContains(t, string(raw), `"level"`)
	assert.Equal(t, "Create part BLT-M6", fake.HeadMessage(owner, repo, branch))
}

func TestGitHubStore_GetPart_Missing_ReturnsNil(t *testing.T) {
	s, _ := newGitHubStore(t)

	got, err := s.GetPart(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGitHubStore_CreatePart_Existing_Conflicts(t *testing.T) {
	s, _ := newGitHubStore(t)
	ctx := context.Background()
	_, err := s.CreatePart(ctx, bolt(), "create")
	require.NoError(t, err)

	_, err = s.CreatePart(ctx, bolt(), "create again")
	var conflict inventory.VersionConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestGitHubStore_UpdatePart_StaleVersion_Conflicts(t *testing.T) {
	s, _ := newGitHubStore(t)
	ctx := context.Background()
	created, err := s.CreatePart(ctx, bolt(), "create")
	require.NoError(t, err)

	p := *created
	p.Name = "M6 hex bolt"
	_, err = s.UpdatePart(ctx, p, created.Version, "rename")
	require.NoError(t, err)

	p.Name = "M6 bolt, zinc"
	_, err = s.UpdatePart(ctx, p, created.Version, "rename again")
	var conflict inventory.VersionConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestGitHubStore_DeletePart(t *testing.T) {
	s, fake := newGitHubStore(t)
	ctx := context.Background()
	created, err := s.CreatePart(ctx, bolt(), "create")
	require.NoError(t, err)

	require.NoError(t, s.DeletePart(ctx, "p-bolt", created.Version, "delete"))
	_, ok := fake.File(owner, repo, branch, "parts/p-bolt.json")
	assert.False(t, ok)

	err = s.DeletePart(ctx, "p-bolt", "", "delete again")
	var nf inventory.PartNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestGitHubStore_ListParts_CarriesVersions(t *testing.T) {
	s, _ := newGitHubStore(t)
	ctx := context.Background()
	a := bolt()
	b := bolt()
	b.Id, b.PartNumber = "p-nut", "NUT-M6"
	_, err := s.CreatePart(ctx, a, "a")
	require.NoError(t, err)
	_, err = s.CreatePart(ctx, b, "b")
	require.NoError(t, err)

	parts, err := s.ListParts(ctx)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.NotEmpty(t, p.Version, p.Id)
	}
}

// ─── ledger ──────────────────────────────────────────────────────────────────

func TestGitHubStore_Apply_PatchesPartAndKeepsUnknownFields(t *testing.T) {
	s, fake := newGitHubStore(t)
	ctx := context.Background()
	fake.SetFile(owner, repo, branch, "parts/p-bolt.json", []byte(`{
  "id": "p-bolt",
  "partNumber": "BLT-M6",
  "name": "M6 bolt",
  "category": "fasteners",
  "unit": "pcs",
  "quantity": 40,
  "binColor": "red"
}
`))
	cur, err := s.GetPart(ctx, "p-bolt")
	require.NoError(t, err)
	commits := fake.CommitCount(owner, repo, branch)

	at := t0.Add(time.Hour)
	res, err := s.Apply(ctx, inventory.LedgerEntry{
		Message: "Adjust BLT-M6 by -5 (consumed)",
		Stock: []inventory.StockUpdate{{
			PartID: "p-bolt", Version: cur.Version, Quantity: 35, UpdatedAt: at, UpdatedBy: "u1",
		}},
		Movements: []api.StockMovement{movement("m1", at, -5, 35)},
	})
	require.NoError(t, err)
	assert.Equal(t, commits+1, fake.CommitCount(owner, repo, branch))

	raw, ok := fake.File(owner, repo, branch, "parts/p-bolt.json")
	require.True(t, ok)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "red", doc["binColor"])
	assert.EqualValues(t, 35, doc["quantity"])
	assert.Equal(t, "u1", doc["updatedBy"])

	after, err := s.GetPart(ctx, "p-bolt")
	require.NoError(t, err)
	assert.Equal(t, res.PartVersions["p-bolt"], after.Version)

	ms, err := s.ListMovements(ctx, "p-bolt")
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "m1", ms[0].Id)
}

func TestGitHubStore_Apply_StaleVersion_WritesNothing(t *testing.T) {
	s, fake := newGitHubStore(t)
	ctx := context.Background()
	_, err := s.CreatePart(ctx, bolt(), "create")
	require.NoError(t, err)
	commits := fake.CommitCount(owner, repo, branch)

	_, err = s.Apply(ctx, inventory.LedgerEntry{
		Message:   "stale",
		Stock:     []inventory.StockUpdate{{PartID: "p-bolt", Version: "0000", Quantity: 1}},
		Movements: []api.StockMovement{movement("m1", t0, -39, 1)},
	})
	var conflict inventory.VersionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, commits, fake.CommitCount(owner, repo, branch))
}

func TestGitHubStore_Apply_UnknownPart_NotFound(t *testing.T) {
	s, _ := newGitHubStore(t)

	_, err := s.Apply(context.Background(), inventory.LedgerEntry{
		Message: "ghost",
		Stock:   []inventory.StockUpdate{{PartID: "ghost", Quantity: 1}},
	})
	var nf inventory.PartNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestGitHubStore_RecentMovements_NewestFirst(t *testing.T) {
	s, _ := newGitHubStore(t)
	ctx := context.Background()
	_, err := s.CreatePart(ctx, bolt(), "create")
	require.NoError(t, err)

	for i, id := range []string{"m1", "m2", "m3"} {
		cur, err := s.GetPart(ctx, "p-bolt")
		require.NoError(t, err)
		_, err = s.Apply(ctx, inventory.LedgerEntry{
			Message:   "adjust " + id,
			Stock:     []inventory.StockUpdate{{PartID: "p-bolt", Version: cur.Version, Quantity: 40 + i + 1}},
			Movements: []api.StockMovement{movement(id, t0.Add(time.Duration(i)*time.Minute), 1, 40+i+1)},
		})
		require.NoError(t, err)
	}

	ms, err := s.RecentMovements(ctx, 2)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "m3", ms[0].Id)
	assert.Equal(t, "m2", ms[1].Id)
}

func TestGitHubStore_RecentMovements_NoHistory(t *testing.T) {
	s, _ := newGitHubStore(t)

	ms, err := s.RecentMovements(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

// ─── orders ──────────────────────────────────────────────────────────────────

func draftOrder() api.Order {
	return api.Order{
		Id:       "o1",
		Number:   "PO-20250301-ABCDEF",
		Status:   api.OrderStatusDraft,
		Supplier: "Fastenal",
		Lines: []api.OrderLine{{
			PartId: "p-bolt", PartNumber: "BLT-M6", Name: "M6 bolt", Unit: "pcs",
			Quantity: 100, UnitCost: 0.12, LineTotal: 12,
		}},
		Total:     12,
		CreatedAt: t0,
		CreatedBy: "u1",
		UpdatedAt: t0,
	}
}

func TestGitHubStore_PublishDocument_CommitsOrderAndPDFTogether(t *testing.T) {
	s, fake := newGitHubStore(t)
	ctx := context.Background()
	created, err := s.CreateOrder(ctx, draftOrder(), "create order")
	require.NoError(t, err)
	commits := fake.CommitCount(owner, repo, branch)

	published, err := s.PublishDocument(ctx, *created, created.Version, []byte("%PDF-1.3 test"), "Publish PO.pdf")
	require.NoError(t, err)
	assert.Equal(t, commits+1, fake.CommitCount(owner, repo, branch))
	require.NotNil(t, published.DocumentUrl)
	assert.Equal(t, "https://github.com/acme/inventory/blob/main/orders/o1.pdf", *published.DocumentUrl)

	pdf, ok := fake.File(owner, repo, branch, "orders/o1.pdf")
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.3 test", string(pdf))

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, published.Version, got.Version)
	assert.Equal(t, published.DocumentUrl, got.DocumentUrl)
}

func TestGitHubStore_PublishDocument_StaleVersion_Conflicts(t *testing.T) {
	s, _ := newGitHubStore(t)
	ctx := context.Background()
	created, err := s.CreateOrder(ctx, draftOrder(), "create order")
	require.NoError(t, err)
	o := *created
	o.Status = api.OrderStatusSubmitted
	_, err = s.UpdateOrder(ctx, o, created.Version, "submit")
	require.NoError(t, err)

	_, err = s.PublishDocument(ctx, *created, created.Version, []byte("%PDF"), "publish")
	var conflict inventory.VersionConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestGitHubStore_Apply_ReceivesOrder(t *testing.T) {
	s, _ := newGitHubStore(t)
	ctx := context.Background()
	part, err := s.CreatePart(ctx, bolt(), "create part")
	require.NoError(t, err)
	order, err := s.CreateOrder(ctx, draftOrder(), "create order")
	require.NoError(t, err)

	received := *order
	received.Status = api.OrderStatusReceived
	res, err := s.Apply(ctx, inventory.LedgerEntry{
		Message:      "receive",
		Stock:        []inventory.StockUpdate{{PartID: "p-bolt", Version: part.Version, Quantity: 140}},
		Movements:    []api.StockMovement{movement("m-recv", t0, 100, 140)},
		Order:        &received,
		OrderVersion: order.Version,
	})
	require.NoError(t, err)

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, api.OrderStatusReceived, got.Status)
	assert.Equal(t, res.OrderVersion, got.Version)

	p, err := s.GetPart(ctx, "p-bolt")
	require.NoError(t, err)
	assert.Equal(t, 140, p.Quantity)
}

package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/pkg/api"
)

// ─── auth and roles ──────────────────────────────────────────────────────────

func TestParts_RequireAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/parts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParts_ViewerCannotWrite(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/parts", viewer, bolt())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/parts", viewer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ─── CRUD ────────────────────────────────────────────────────────────────────

func TestCreateGetPart(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createPart(t, bolt())
	assert.Equal(t, "u-editor", created.UpdatedBy)
	assert.Equal(t, api.StockLevelLowStock, created.Level)

	w := ts.do(http.MethodGet, "/parts/"+created.Id, viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[api.Part](t, w)
	assert.Equal(t, "BLT-M6-20", got.PartNumber)
	assert.Equal(t, created.Version, got.Version)
}

func TestGetPart_Unknown_Returns404(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/parts/nope", viewer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePart_Duplicate_Returns409(t *testing.T) {
	ts := newTestServer(t)
	ts.createPart(t, bolt())

	w := ts.do(http.MethodPost, "/parts", editor, bolt())
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreatePart_SchemaViolation_Returns400(t *testing.T) {
	ts := newTestServer(t)
	in := bolt()
	in.Quantity = -1

	w := ts.do(http.MethodPost, "/parts", editor, in)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListParts_Filters(t *testing.T) {
	ts := newTestServer(t)
	ts.createPart(t, bolt())
	glue := bolt()
	glue.PartNumber, glue.Name, glue.Category, glue.Quantity = "GLU-1", "Wood glue", "Adhesives", 40
	ts.createPart(t, glue)

	w := ts.do(http.MethodGet, "/parts?level=low_stock", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[api.ListPartsResponse](t, w)
	require.Len(t, res.Parts, 1)
	assert.Equal(t, "BLT-M6-20", res.Parts[0].PartNumber)

	w = ts.do(http.MethodGet, "/parts?category=adhesives", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[api.ListPartsResponse](t, w)
	require.Len(t, res.Parts, 1)
	assert.Equal(t, "GLU-1", res.Parts[0].PartNumber)
}

func TestUpdatePart_StaleVersion_Returns409(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPart(t, bolt())
	in := bolt()
	in.Name = "Renamed"
	in.Version = ptr("stale")

	w := ts.do(http.MethodPut, "/parts/"+p.Id, editor, in)
	assert.Equal(t, http.StatusConflict, w.Code)

	in.Version = ptr(p.Version)
	w = ts.do(http.MethodPut, "/parts/"+p.Id, editor, in)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", decode[api.Part](t, w).Name)
}

func TestDeletePart(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPart(t, bolt())

	w := ts.do(http.MethodDelete, "/parts/"+p.Id+"?version="+p.Version, editor, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, "/parts/"+p.Id, viewer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ─── stock ───────────────────────────────────────────────────────────────────

func TestAdjustStock(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPart(t, bolt())

	w := ts.do(http.MethodPost, "/parts/"+p.Id+"/adjust", editor, api.StockAdjustment{
		Delta: 20, Reason: api.MovementReasonReceived,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[api.AdjustStockResponse](t, w)
	assert.Equal(t, 24, res.Part.Quantity)
	assert.Equal(t, 24, res.Movement.QuantityAfter)
	assert.Equal(t, "u-editor", res.Movement.CreatedBy)

	w = ts.do(http.MethodGet, "/parts/"+p.Id+"/movements", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]api.StockMovement](t, w), 1)
}

func TestAdjustStock_Insufficient_Returns422(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPart(t, bolt())

	w := ts.do(http.MethodPost, "/parts/"+p.Id+"/adjust", editor, api.StockAdjustment{
		Delta: -5, Reason: api.MovementReasonConsumed,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAdjustStock_ZeroDelta_Returns400(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPart(t, bolt())

	w := ts.do(http.MethodPost, "/parts/"+p.Id+"/adjust", editor, api.StockAdjustment{
		Delta: 0, Reason: api.MovementReasonCorrection,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecentMovements_EmptyIsArray(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/movements/recent?limit=5", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRecentMovements_LimitOutOfRange_Returns400(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/movements/recent?limit=500", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/pkg/api"
)

func adjust(t *testing.T, ts *testServer, partID string, delta int) {
	t.Helper()
	reason := api.MovementReasonReceived
	if delta < 0 {
		reason = api.MovementReasonConsumed
	}
	w := ts.do(http.MethodPost, "/parts/"+partID+"/adjust", editor, api.StockAdjustment{Delta: delta, Reason: reason})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPart(t, bolt())
	adjust(t, ts, p.Id, 1)

	w := ts.do(http.MethodGet, "/dashboard", viewer, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := decode[api.Dashboard](t, w)
	assert.Equal(t, 1, d.TotalParts)
	assert.Equal(t, 5, d.TotalUnits)
	assert.Equal(t, 1, d.LowStockCount)
	assert.Len(t, d.RecentMovements, 1)
}

func TestDashboard_RecentFromPreferences(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPart(t, bolt())
	for range 3 {
		adjust(t, ts, p.Id, 1)
	}
	ts.prefs.prefs["u-viewer"] = &api.Preferences{RecentLimit: 2}

	w := ts.do(http.MethodGet, "/dashboard", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[api.Dashboard](t, w).RecentMovements, 2)

	w = ts.do(http.MethodGet, "/dashboard?recent=0", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[api.Dashboard](t, w).RecentMovements)
}

// ─── replenishment ───────────────────────────────────────────────────────────

func TestStartReplenishment(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/replenishments", editor, nil)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	res := decode[api.ReplenishmentResult](t, w)
	assert.Equal(t, "RUNNING", res.Status)
	assert.Equal(t, []string{res.RunId}, ts.engine.started)
}

func TestStartReplenishment_ViewerForbidden(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/replenishments", viewer, api.ReplenishmentRequest{Submit: true})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, ts.engine.started)
}

func TestReplenishment_NoEngine_Returns503(t *testing.T) {
	ts := newTestServerWithoutEngine(t)

	w := ts.do(http.MethodPost, "/replenishments", editor, api.ReplenishmentRequest{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetReplenishment(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.status["run-1"] = &api.ReplenishmentResult{RunId: "run-1", Status: "COMPLETED", OrderIds: []string{"run-1-1"}}

	w := ts.do(http.MethodGet, "/replenishments/run-1", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"run-1-1"}, decode[api.ReplenishmentResult](t, w).OrderIds)

	w = ts.do(http.MethodGet, "/replenishments/run-2", viewer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

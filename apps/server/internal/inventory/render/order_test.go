package render_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/apps/server/internal/inventory/render"
	"github.com/tilsley/stockroom/pkg/api"
)

func ptr[T any](v T) *T { return &v }

var generated = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func sampleOrder(lines int) api.Order {
	o := api.Order{
		Id:        "o-1",
		Number:    "PO-20250304-ABC123",
		Status:    api.OrderStatusSubmitted,
		Supplier:  "Bolt & Nut Supply Ltd",
		Notes:     ptr("Deliver to loading bay 2.\nCall ahead."),
		CreatedAt: generated,
	}
	for i := range lines {
		o.Lines = append(o.Lines, api.OrderLine{
			PartId:     fmt.Sprintf("p-%d", i),
			PartNumber: fmt.Sprintf("BLT-%03d", i),
			Name:       "Hex bolt M8 x 40 zinc plated, grade 8.8 with a very long description",
			Unit:       "pcs",
			Quantity:   10 + i,
			UnitCost:   0.35,
			LineTotal:  float64(10+i) * 0.35,
		})
		o.Total += o.Lines[i].LineTotal
	}
	o.SubmittedAt = ptr(generated)
	return o
}

func TestOrderPDF_ProducesPDF(t *testing.T) {
	company := api.CompanyInfo{
		Name:    "Acme Workshop",
		Address: ptr("1 Forge Lane\nSheffield"),
		Email:   ptr("orders@acme.test"),
	}

	out, err := render.OrderPDF(sampleOrder(3), company, generated)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("%%EOF")))
}

func TestOrderPDF_ManyLinesSpanPages(t *testing.T) {
	short, err := render.OrderPDF(sampleOrder(2), api.CompanyInfo{Name: "Acme"}, generated)
	require.NoError(t, err)
	long, err := render.OrderPDF(sampleOrder(120), api.CompanyInfo{Name: "Acme"}, generated)
	require.NoError(t, err)

	assert.Greater(t, bytes.Count(long, []byte("/Type /Page\n")), bytes.Count(short, []byte("/Type /Page\n")))
}

func TestOrderPDF_Deterministic(t *testing.T) {
	a, err := render.OrderPDF(sampleOrder(1), api.CompanyInfo{Name: "Acme"}, generated)
	require.NoError(t, err)
	b, err := render.OrderPDF(sampleOrder(1), api.CompanyInfo{Name: "Acme"}, generated)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

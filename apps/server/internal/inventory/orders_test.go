package inventory_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/apps/server/internal/inventory/store"
	"github.com/tilsley/stockroom/pkg/api"
)

func orderFor(parts ...*api.Part) api.CreateOrderRequest {
	req := api.CreateOrderRequest{Supplier: "Fastenal"}
	for _, p := range parts {
		req.Lines = append(req.Lines, api.OrderLineInput{PartId: p.Id, Quantity: 100})
	}
	return req
}

func mustOrder(t *testing.T, svc *inventory.Service, req api.CreateOrderRequest) *api.Order {
	t.Helper()
	o, err := svc.CreateOrder(context.Background(), "u1", req)
	require.NoError(t, err)
	return o
}

// ─── create / edit ───────────────────────────────────────────────────────────

func TestCreateOrder_PricesLines(t *testing.T) {
	svc, _ := newService(t)
	bolt := mustCreate(t, svc, boltInput())
	nut := boltInput()
	nut.PartNumber, nut.UnitCost = "NUT-M6", 0.05
	n := mustCreate(t, svc, nut)

	req := orderFor(bolt, n)
	req.Lines[1].UnitCost = ptr(0.04)
	o := mustOrder(t, svc, req)

	assert.Equal(t, api.OrderStatusDraft, o.Status)
	assert.Regexp(t, `^PO-20250301-[0-9A-F]{6}$`, o.Number)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "BLT-M6", o.Lines[0].PartNumber)
	assert.InDelta(t, 12.0, o.Lines[0].LineTotal, 0.001)
	assert.InDelta(t, 4.0, o.Lines[1].LineTotal, 0.001)
	assert.InDelta(t, 16.0, o.Total, 0.001)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, _ := newService(t)
	bolt := mustCreate(t, svc, boltInput())

	tests := []struct {
		name string
		req  api.CreateOrderRequest
	}{
		{"no supplier", api.CreateOrderRequest{Supplier: " ", Lines: orderFor(bolt).Lines}},
		{"no lines", api.CreateOrderRequest{Supplier: "Fastenal"}},
		{"zero quantity", api.CreateOrderRequest{Supplier: "Fastenal", Lines: []api.OrderLineInput{{PartId: bolt.Id}}}},
		{"duplicate part", orderFor(bolt, bolt)},
		{"negative cost", api.CreateOrderRequest{Supplier: "Fastenal", Lines: []api.OrderLineInput{{PartId: bolt.Id, Quantity: 1, UnitCost: ptr(-1.0)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), "u1", tt.req)
			var ve inventory.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestCreateOrder_UnknownPart(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateOrder(context.Background(), "u1", api.CreateOrderRequest{
		Supplier: "Fastenal",
		Lines:    []api.OrderLineInput{{PartId: "ghost", Quantity: 1}},
	})

	var nf inventory.PartNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestPlaceOrder_SameIDTwice_ReturnsExisting(t *testing.T) {
	svc, _ := newService(t)
	bolt := mustCreate(t, svc, boltInput())

	first, err := svc.PlaceOrder(context.Background(), "run-1-1", "u1", orderFor(bolt))
	require.NoError(t, err)
	second, err := svc.PlaceOrder(context.Background(), "run-1-1", "u1", orderFor(bolt))
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version)
	orders, err := svc.ListOrders(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestUpdateOrder_DraftOnly(t *testing.T) {
	svc, _ := newService(t)
	bolt := mustCreate(t, svc, boltInput())
	o := mustOrder(t, svc, orderFor(bolt))

	updated, err := svc.UpdateOrder(context.Background(), "u1", o.Id, api.UpdateOrderRequest{
		Supplier: ptr("Grainger"),
		Lines:    []api.OrderLineInput{{PartId: bolt.Id, Quantity: 50}},
		Notes:    ptr("deliver to dock 2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Grainger", updated.Supplier)
	assert.InDelta(t, 6.0, updated.Total, 0.001)
	assert.Equal(t, "deliver to dock 2", *updated.Notes)

	_, err = svc.SubmitOrder(context.Background(), "u1", o.Id)
	require.NoError(t, err)

	_, err = svc.UpdateOrder(context.Background(), "u1", o.Id, api.UpdateOrderRequest{Supplier: ptr("Other")})
	var notEditable inventory.OrderNotEditableError
	assert.True(t, errors.As(err, &notEditable))
}

func TestListOrders_FilterByStatus(t *testing.T) {
	svc, _ := newService(t)
	bolt := mustCreate(t, svc, boltInput())
	a := mustOrder(t, svc, orderFor(bolt))
	mustOrder(t, svc, orderFor(bolt))
	_, err := svc.SubmitOrder(context.Background(), "u1", a.Id)
	require.NoError(t, err)

	submitted, err := svc.ListOrders(context.Background(), api.OrderStatusSubmitted)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, a.Id, submitted[0].Id)
}

// ─── lifecycle ───────────────────────────────────────────────────────────────

func TestTransitions(t *testing.T) {
	tests := []struct {
		name  string
		steps []func(*inventory.Service, string) (*api.Order, error)
		ok    bool
	}{
		{"submit draft", []func(*inventory.Service, string) (*api.Order, error){submit}, true},
		{"cancel draft", []func(*inventory.Service, string) (*api.Order, error){cancel}, true},
		{"cancel submitted", []func(*inventory.Service, string) (*api.Order, error){submit, cancel}, true},
		{"receive draft", []func(*inventory.Service, string) (*api.Order, error){receive}, false},
		{"submit twice", []func(*inventory.Service, string) (*api.Order, error){submit, submit}, false},
		{"cancel received", []func(*inventory.Service, string) (*api.Order, error){submit, receive, cancel}, false},
		{"receive cancelled", []func(*inventory.Service, string) (*api.Order, error){cancel, receive}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)
			bolt := mustCreate(t, svc, boltInput())
			o := mustOrder(t, svc, orderFor(bolt))

			var err error
			for _, step := range tt.steps {
				if _, err = step(svc, o.Id); err != nil {
					break
				}
			}
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var bad inventory.InvalidOrderTransitionError
			assert.True(t, errors.As(err, &bad), "got %v", err)
		})
	}
}

func submit(svc *inventory.Service, id string) (*api.Order, error) {
	return svc.SubmitOrder(context.Background(), "u1", id)
}

func cancel(svc *inventory.Service, id string) (*api.Order, error) {
	return svc.CancelOrder(context.Background(), "u1", id)
}

func receive(svc *inventory.Service, id string) (*api.Order, error) {
	return svc.ReceiveOrder(context.Background(), "u1", id)
}

func TestSubmitOrder_StampsSubmittedAt(t *testing.T) {
	svc, _ := newService(t)
	bolt := mustCreate(t, svc, boltInput())
	o := mustOrder(t, svc, orderFor(bolt))

	submitted, err := svc.SubmitOrder(context.Background(), "u1", o.Id)
	require.NoError(t, err)
	require.NotNil(t, submitted.SubmittedAt)
	assert.Equal(t, now, *submitted.SubmittedAt)
}

func TestReceiveOrder_BooksStock(t *testing.T) {
	svc, _ := newService(t)
	bolt := mustCreate(t, svc, boltInput())
	o := mustOrder(t, svc, orderFor(bolt))
	_, err := svc.SubmitOrder(context.Background(), "u1", o.Id)
	require.NoError(t, err)

	received, err := svc.ReceiveOrder(context.Background(), "u2", o.Id)
	require.NoError(t, err)
	assert.Equal(t, api.OrderStatusReceived, received.Status)
	require.NotNil(t, received.ReceivedAt)

	p, err := svc.GetPart(context.Background(), bolt.Id)
	require.NoError(t, err)
	assert.Equal(t, 140, p.Quantity)

	ms, err := svc.ListMovements(context.Background(), bolt.Id)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, api.MovementReasonOrderReceived, ms[0].Reason)
	assert.Equal(t, 100, ms[0].Delta)
	assert.Equal(t, 140, ms[0].QuantityAfter)
	require.NotNil(t, ms[0].OrderId)
	assert.Equal(t, o.Id, *ms[0].OrderId)

	stored, err := svc.GetOrder(context.Background(), o.Id)
	require.NoError(t, err)
	assert.Equal(t, received.Version, stored.Version)
}

func TestReceiveOrder_DeletedPart_Fails(t *testing.T) {
	svc, _ := newService(t)
	bolt := mustCreate(t, svc, boltInput())
	o := mustOrder(t, svc, orderFor(bolt))
	_, err := svc.SubmitOrder(context.Background(), "u1", o.Id)
	require.NoError(t, err)
	require.NoError(t, svc.DeletePart(context.Background(), "u1", bolt.Id, ""))

	_, err = svc.ReceiveOrder(context.Background(), "u1", o.Id)

	var nf inventory.PartNotFoundError
	require.True(t, errors.As(err, &nf))
	stored, err := svc.GetOrder(context.Background(), o.Id)
	require.NoError(t, err)
	assert.Equal(t, api.OrderStatusSubmitted, stored.Status)
}

// ─── suggestions ─────────────────────────────────────────────────────────────

func TestSuggestions_GroupsBySupplier(t *testing.T) {
	svc, _ := newService(t)
	low := boltInput()
	low.Quantity, low.ReorderPoint = 4, 10
	mustCreate(t, svc, low)

	fixed := boltInput()
	fixed.PartNumber, fixed.Quantity, fixed.ReorderQuantity = "NUT-M6", 0, 500
	mustCreate(t, svc, fixed)

	orphan := boltInput()
	orphan.PartNumber, orphan.Supplier, orphan.Quantity = "WSH-M6", nil, 1
	mustCreate(t, svc, orphan)

	healthy := boltInput()
	healthy.PartNumber = "SCR-M4"
	mustCreate(t, svc, healthy)

	got, err := svc.Suggestions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Fastenal", got[0].Supplier)
	require.Len(t, got[0].Lines, 2)
	assert.Equal(t, 16, got[0].Lines[0].Quantity)
	assert.Equal(t, 500, got[0].Lines[1].Quantity)
	assert.InDelta(t, 61.92, got[0].Total, 0.001)

	assert.Equal(t, inventory.UnassignedSupplier, got[1].Supplier)
	assert.Equal(t, 19, got[1].Lines[0].Quantity)
}

// ─── documents ───────────────────────────────────────────────────────────────

func TestOrderPDF_UsesCompanyInfo(t *testing.T) {
	mem := store.NewMemStore()
	company := &stubCompany{info: &api.CompanyInfo{Name: "Acme Fabrication"}}
	svc := inventory.NewService(mem, company, nil, slog.New(slog.DiscardHandler))
	bolt := mustCreate(t, svc, boltInput())
	o := mustOrder(t, svc, orderFor(bolt))

	pdf, got, err := svc.OrderPDF(context.Background(), o.Id, "u1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.Equal(t, o.Id, got.Id)
}

func TestOrderPDF_CompanyLookupFails(t *testing.T) {
	mem := store.NewMemStore()
	company := &stubCompany{err: errors.New("db down")}
	svc := inventory.NewService(mem, company, nil, slog.New(slog.DiscardHandler))
	bolt := mustCreate(t, svc, boltInput())
	o := mustOrder(t, svc, orderFor(bolt))

	_, _, err := svc.OrderPDF(context.Background(), o.Id, "u1")
	assert.ErrorContains(t, err, "db down")
}

func TestPublishOrderPDF_StoresDocument(t *testing.T) {
	svc, mem := newService(t)
	bolt := mustCreate(t, svc, boltInput())
	o := mustOrder(t, svc, orderFor(bolt))

	published, err := svc.PublishOrderPDF(context.Background(), "u1", o.Id)
	require.NoError(t, err)
	require.NotNil(t, published.DocumentUrl)
	assert.Equal(t, "mem://orders/"+o.Id+".pdf", *published.DocumentUrl)

	doc, ok := mem.Document(o.Id)
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
}

func TestOrderNumber_Stable(t *testing.T) {
	created := time.Date(2025, 7, 4, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, inventory.OrderNumber("abc", created), inventory.OrderNumber("abc", created))
	assert.NotEqual(t, inventory.OrderNumber("abc", created), inventory.OrderNumber("abd", created))
	assert.Regexp(t, `^PO-20250704-[0-9A-F]{6}$`, inventory.OrderNumber("abc", created))
}

package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.temporal.io/sdk/temporal"

	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/pkg/api"
)

const instrName = "github.com/tilsley/stockroom"

// OrderDesk is the part of the inventory service the activities drive.
type OrderDesk interface {
	Suggestions(ctx context.Context) ([]api.OrderSuggestion, error)
	PlaceOrder(ctx context.Context, id, actor string, req api.CreateOrderRequest) (*api.Order, error)
	SubmitOrder(ctx context.Context, actor, id string) (*api.Order, error)
	PublishOrderPDF(ctx context.Context, actor, id string) (*api.Order, error)
}

// Compile-time check: *inventory.Service implements OrderDesk.
var _ OrderDesk = (*inventory.Service)(nil)

// PlaceOrderInput is the input for the PlaceOrder activity.
type PlaceOrderInput struct {
	OrderID string                 `json:"orderId"`
	Actor   string                 `json:"actor"`
	Request api.CreateOrderRequest `json:"request"`
}

// OrderRef names an order and who acts on it.
type OrderRef struct {
	OrderID string `json:"orderId"`
	Actor   string `json:"actor"`
}

// Activities groups Temporal activity methods. The struct holds dependencies
// injected at startup.
type Activities struct {
	desk OrderDesk
	log  *slog.Logger
}

// NewActivities creates a new Activities instance with the given dependencies.
func NewActivities(desk OrderDesk, log *slog.Logger) *Activities {
	return &Activities{desk: desk, log: log}
}

// FindSuggestions returns the reorder suggestions, narrowed to one supplier
// when supplier is set.
func (a *Activities) FindSuggestions(ctx context.Context, supplier *string) ([]api.OrderSuggestion, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "FindSuggestions")
	defer span.End()

	all, err := a.desk.Suggestions(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("suggestions: %w", err)
	}
	out := make([]api.OrderSuggestion, 0, len(all))
	for _, sg := range all {
		if MatchesSupplier(supplier, sg.Supplier) {
			out = append(out, sg)
		}
	}
	a.log.Info("FindSuggestions activity called", "suppliers", len(out))
	return out, nil
}

// PlaceOrder creates the draft order, or returns it if this id was already placed.
func (a *Activities) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*api.Order, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "PlaceOrder",
		trace.WithAttributes(
			attribute.String("order.id", in.OrderID),
			attribute.String("order.supplier", in.Request.Supplier),
		),
	)
	defer span.End()

	o, err := a.desk.PlaceOrder(ctx, in.OrderID, in.Actor, in.Request)
	if err != nil {
		span.RecordError(err)
		return nil, classify(fmt.Errorf("place order %q: %w", in.OrderID, err))
	}
	a.log.Info("placed order", "orderId", o.Id, "number", o.Number, "supplier", o.Supplier)
	return o, nil
}

// SubmitOrder submits the order. An order that is already submitted counts
// as done.
func (a *Activities) SubmitOrder(ctx context.Context, ref OrderRef) error {
	ctx, span := otel.Tracer(instrName).Start(ctx, "SubmitOrder",
		trace.WithAttributes(attribute.String("order.id", ref.OrderID)),
	)
	defer span.End()

	_, err := a.desk.SubmitOrder(ctx, ref.Actor, ref.OrderID)
	var bad inventory.InvalidOrderTransitionError
	if errors.As(err, &bad) && bad.From == string(api.OrderStatusSubmitted) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return classify(fmt.Errorf("submit order %q: %w", ref.OrderID, err))
	}
	return nil
}

// PublishOrderPDF renders the order and commits the document.
func (a *Activities) PublishOrderPDF(ctx context.Context, ref OrderRef) error {
	ctx, span := otel.Tracer(instrName).Start(ctx, "PublishOrderPDF",
		trace.WithAttributes(attribute.String("order.id", ref.OrderID)),
	)
	defer span.End()

	if _, err := a.desk.PublishOrderPDF(ctx, ref.Actor, ref.OrderID); err != nil {
		span.RecordError(err)
		return classify(fmt.Errorf("publish order %q: %w", ref.OrderID, err))
	}
	return nil
}

// classify marks errors that no retry can fix as non-retryable.
func classify(err error) error {
	var (
		ve  inventory.ValidationError
		pnf inventory.PartNotFoundError
		onf inventory.OrderNotFoundError
		bad inventory.InvalidOrderTransitionError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &pnf), errors.As(err, &onf), errors.As(err, &bad):
		return temporal.NewNonRetryableApplicationError(err.Error(), "InventoryRejected", err)
	default:
		return err
	}
}

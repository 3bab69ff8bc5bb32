package execution

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/pkg/api"
)

// ProgressQuery is the query name that returns a run's live result.
const ProgressQuery = "progress"

// Run statuses reported by the workflow itself.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
)

// ReplenishmentWorkflow turns the current reorder suggestions into draft
// purchase orders, one per supplier:
//  1. FindSuggestions reads the suggestions, optionally for a single supplier.
//  2. PlaceOrder creates the order under "<runId>-<n>", so a retried activity
//     finds the order it already placed.
//  3. SubmitOrder runs when the request asks for it.
//  4. PublishOrderPDF commits the rendered document; failures here are logged
//     and do not fail the run.
//
// Parts without a supplier are left for a person to order.
func ReplenishmentWorkflow(ctx workflow.Context, req api.ReplenishmentRequest) (api.ReplenishmentResult, error) {
	runID := workflow.GetInfo(ctx).WorkflowExecution.ID
	orderIDs := []string{}

	if err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (api.ReplenishmentResult, error) {
		return api.ReplenishmentResult{RunId: runID, Status: StatusRunning, OrderIds: orderIDs}, nil
	}); err != nil {
		return api.ReplenishmentResult{}, fmt.Errorf("register query handler: %w", err)
	}

	actCtx := workflow.WithActivityOptions(ctx, activityOptions(ctx))
	log := workflow.GetLogger(ctx)

	var suggestions []api.OrderSuggestion
	if err := workflow.ExecuteActivity(actCtx, "FindSuggestions", req.Supplier).Get(ctx, &suggestions); err != nil {
		return api.ReplenishmentResult{}, fmt.Errorf("find suggestions: %w", err)
	}

	n := 0
	for _, sg := range suggestions {
		if sg.Supplier == inventory.UnassignedSupplier {
			log.Info("skipping parts without a supplier", "lines", len(sg.Lines))
			continue
		}
		n++
		orderID := fmt.Sprintf("%s-%d", runID, n)

		in := PlaceOrderInput{
			OrderID: orderID,
			Actor:   req.RequestedBy,
			Request: api.CreateOrderRequest{
				Supplier: sg.Supplier,
				Lines:    sg.Lines,
				Notes:    ptr("Raised by replenishment run " + runID),
			},
		}
		var placed api.Order
		if err := workflow.ExecuteActivity(actCtx, "PlaceOrder", in).Get(ctx, &placed); err != nil {
			return api.ReplenishmentResult{}, fmt.Errorf("place order for %q: %w", sg.Supplier, err)
		}
		orderIDs = append(orderIDs, placed.Id)

		ref := OrderRef{OrderID: placed.Id, Actor: req.RequestedBy}
		if req.Submit {
			if err := workflow.ExecuteActivity(actCtx, "SubmitOrder", ref).Get(ctx, nil); err != nil {
				return api.ReplenishmentResult{}, fmt.Errorf("submit order %q: %w", placed.Id, err)
			}
		}
		if err := workflow.ExecuteActivity(actCtx, "PublishOrderPDF", ref).Get(ctx, nil); err != nil {
			log.Warn("order document not published", "orderId", placed.Id, "error", err)
		}
	}

	return api.ReplenishmentResult{RunId: runID, Status: StatusCompleted, OrderIds: orderIDs}, nil
}

func activityOptions(ctx workflow.Context) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		TaskQueue:           workflow.GetInfo(ctx).TaskQueueName,
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
}

// MatchesSupplier reports whether a suggestion belongs to the requested
// supplier. A nil or blank filter matches every supplier.
func MatchesSupplier(filter *string, supplier string) bool {
	if filter == nil || strings.TrimSpace(*filter) == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(*filter), supplier)
}

func ptr[T any](v T) *T { return &v }

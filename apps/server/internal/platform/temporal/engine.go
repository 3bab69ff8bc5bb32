package temporalplatform

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/apps/server/internal/inventory/execution"
	"github.com/tilsley/stockroom/pkg/api"
)

// Compile-time check: *Engine implements inventory.ReplenishmentEngine.
var _ inventory.ReplenishmentEngine = (*Engine)(nil)

const (
	taskQueue     = "stockroom-replenishment"
	statusFailed  = "FAILED"
	statusUnknown = "UNKNOWN"
)

// Engine implements inventory.ReplenishmentEngine using the Temporal SDK client.
type Engine struct {
	c client.Client
}

// NewEngine creates a new Temporal workflow engine.
func NewEngine(c client.Client) *Engine {
	return &Engine{c: c}
}

// TaskQueue returns the Temporal task queue name used by the engine.
func TaskQueue() string { return taskQueue }

// StartReplenishment starts a replenishment workflow whose id is runID.
func (e *Engine) StartReplenishment(ctx context.Context, runID string, req api.ReplenishmentRequest) error {
	opts := client.StartWorkflowOptions{
		ID:        runID,
		TaskQueue: taskQueue,
	}
	if _, err := e.c.ExecuteWorkflow(ctx, opts, inventory.ReplenishmentWorkflowName, req); err != nil {
		return fmt.Errorf("start workflow %q: %w", runID, err)
	}
	return nil
}

// ReplenishmentStatus returns the run's status with the orders placed so far.
// Running workflows answer the progress query; finished ones return their
// result. An unknown run yields nil, nil.
func (e *Engine) ReplenishmentStatus(ctx context.Context, runID string) (*api.ReplenishmentResult, error) {
	desc, err := e.c.DescribeWorkflowExecution(ctx, runID, "")
	if err != nil {
		var nf *serviceerror.NotFound
		if errors.As(err, &nf) {
			return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
		}
		return nil, fmt.Errorf("describe workflow %q: %w", runID, err)
	}

	res := &api.ReplenishmentResult{
		RunId:    runID,
		Status:   mapTemporalStatus(desc.WorkflowExecutionInfo.Status),
		OrderIds: []string{},
	}

	switch res.Status {
	case execution.StatusRunning:
		val, err := e.c.QueryWorkflow(ctx, runID, "", execution.ProgressQuery)
		if err == nil {
			var progress api.ReplenishmentResult
			if err := val.Get(&progress); err == nil && progress.OrderIds != nil {
				res.OrderIds = progress.OrderIds
			}
		}
	case execution.StatusCompleted:
		var out api.ReplenishmentResult
		if err := e.c.GetWorkflow(ctx, runID, "").Get(ctx, &out); err == nil && out.OrderIds != nil {
			res.OrderIds = out.OrderIds
		}
	}
	return res, nil
}

func mapTemporalStatus(s enumspb.WorkflowExecutionStatus) string {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return execution.StatusRunning
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return execution.StatusCompleted
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED,
		enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return statusFailed
	case enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED,
		enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return statusUnknown
	default:
		return statusUnknown
	}
}

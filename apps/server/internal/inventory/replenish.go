package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tilsley/stockroom/pkg/api"
)

// ReplenishmentWorkflowName is the registered name of the replenishment workflow.
const ReplenishmentWorkflowName = "ReplenishmentWorkflow"

// StartReplenishment launches a run that turns current suggestions into
// orders, one per supplier.
func (s *Service) StartReplenishment(ctx context.Context, actor string, req api.ReplenishmentRequest) (*api.ReplenishmentResult, error) {
	if s.engine == nil {
		return nil, ReplenishmentUnavailableError{}
	}
	req.RequestedBy = actor

	runID := "replenish-" + uuid.New().String()
	if err := s.engine.StartReplenishment(ctx, runID, req); err != nil {
		return nil, fmt.Errorf("start replenishment: %w", err)
	}
	s.log.Info("replenishment started", "runId", runID, "actor", actor)
	return &api.ReplenishmentResult{RunId: runID, Status: "RUNNING", OrderIds: []string{}}, nil
}

// ReplenishmentStatus reports a run's status and the orders placed so far.
func (s *Service) ReplenishmentStatus(ctx context.Context, runID string) (*api.ReplenishmentResult, error) {
	if s.engine == nil {
		return nil, ReplenishmentUnavailableError{}
	}
	res, err := s.engine.ReplenishmentStatus(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replenishment status %q: %w", runID, err)
	}
	if res == nil {
		return nil, ReplenishmentNotFoundError{RunID: runID}
	}
	return res, nil
}

package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/tilsley/stockroom/pkg/api"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// AdjustStock changes a part's quantity by adj.Delta and records the
// movement. The part update and the movement are written together; if the
// part changed in between, the read-modify-write is retried.
func (s *Service) AdjustStock(ctx context.Context, actor, id string, adj api.StockAdjustment) (*api.AdjustStockResponse, error) {
	if err := validateAdjustment(adj); err != nil {
		return nil, err
	}

	return retryConflicts(ctx, s.log, "adjust stock", func() (*api.AdjustStockResponse, error) {
		p, err := s.GetPart(ctx, id)
		if err != nil {
			return nil, err
		}

		qty := p.Quantity + adj.Delta
		if qty < 0 {
			return nil, InsufficientStockError{PartID: id, Available: p.Quantity, Requested: -adj.Delta}
		}

		now := s.now()
		m := api.StockMovement{
			Id:            uuid.New().String(),
			PartId:        p.Id,
			PartNumber:    p.PartNumber,
			Delta:         adj.Delta,
			QuantityAfter: qty,
			Reason:        adj.Reason,
			Note:          adj.Note,
			CreatedAt:     now,
			CreatedBy:     actor,
		}

		res, err := s.repo.Apply(ctx, LedgerEntry{
			Message: fmt.Sprintf("Adjust %s by %+d (%s)", p.PartNumber, adj.Delta, adj.Reason),
			Stock: []StockUpdate{{
				PartID:    p.Id,
				Version:   p.Version,
				Quantity:  qty,
				UpdatedAt: now,
				UpdatedBy: actor,
			}},
			Movements: []api.StockMovement{m},
		})
		if err != nil {
			return nil, fmt.Errorf("apply adjustment to %q: %w", id, err)
		}

		p.Quantity = qty
		p.UpdatedAt = now
		p.UpdatedBy = actor
		p.Version = res.PartVersions[p.Id]
		p.Level = LevelFor(*p)
		return &api.AdjustStockResponse{Part: *p, Movement: m}, nil
	})
}

func validateAdjustment(adj api.StockAdjustment) error {
	if adj.Delta == 0 {
		return ValidationError{Field: "delta", Reason: "must not be zero"}
	}
	switch adj.Reason {
	case api.MovementReasonReceived:
		if adj.Delta < 0 {
			return ValidationError{Field: "delta", Reason: "must be positive for received stock"}
		}
	case api.MovementReasonConsumed:
		if adj.Delta > 0 {
			return ValidationError{Field: "delta", Reason: "must be negative for consumed stock"}
		}
	case api.MovementReasonCorrection:
	case api.MovementReasonOrderReceived:
		return ValidationError{Field: "reason", Reason: "order_received is recorded by receiving an order"}
	default:
		return ValidationError{Field: "reason", Reason: fmt.Sprintf("%q is not a movement reason", adj.Reason)}
	}
	return nil
}

// ListMovements returns a part's movements, newest first.
func (s *Service) ListMovements(ctx context.Context, id string) ([]api.StockMovement, error) {
	if _, err := s.GetPart(ctx, id); err != nil {
		return nil, err
	}
	ms, err := s.repo.ListMovements(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list movements for %q: %w", id, err)
	}
	sortNewestFirst(ms)
	return ms, nil
}

// RecentMovements returns the latest movements across all parts. limit is
// clamped to [1, 200]; zero means the default of 20.
func (s *Service) RecentMovements(ctx context.Context, limit int) ([]api.StockMovement, error) {
	limit = clampRecent(limit)
	ms, err := s.repo.RecentMovements(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent movements: %w", err)
	}
	sortNewestFirst(ms)
	if len(ms) > limit {
		ms = ms[:limit]
	}
	return ms, nil
}

func clampRecent(limit int) int {
	switch {
	case limit <= 0:
		return defaultRecentLimit
	case limit > maxRecentLimit:
		return maxRecentLimit
	default:
		return limit
	}
}

func sortNewestFirst(ms []api.StockMovement) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return ms[i].Id > ms[j].Id
	})
}

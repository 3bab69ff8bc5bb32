package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tilsley/stockroom/apps/server/internal/inventory/render"
	"github.com/tilsley/stockroom/pkg/api"
)

// ListOrders returns orders, newest first, optionally filtered by status.
func (s *Service) ListOrders(ctx context.Context, status api.OrderStatus) ([]api.Order, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]api.Order, 0, len(orders))
	for _, o := range orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetOrder returns one order or OrderNotFoundError.
func (s *Service) GetOrder(ctx context.Context, id string) (*api.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %q: %w", id, err)
	}
	if o == nil {
		return nil, OrderNotFoundError{ID: id}
	}
	return o, nil
}

// CreateOrder creates a draft order with a fresh id.
func (s *Service) CreateOrder(ctx context.Context, actor string, req api.CreateOrderRequest) (*api.Order, error) {
	return s.createOrder(ctx, uuid.New().String(), actor, req)
}

// PlaceOrder creates a draft order under a caller-chosen id. Placing the same
// id twice returns the existing order, so workflow retries are safe.
func (s *Service) PlaceOrder(ctx context.Context, id, actor string, req api.CreateOrderRequest) (*api.Order, error) {
	existing, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %q: %w", id, err)
	}
	if existing != nil {
		return existing, nil
	}

	o, err := s.createOrder(ctx, id, actor, req)
	if isConflict(err) {
		// Lost a race with another placement of the same id.
		return s.GetOrder(ctx, id)
	}
	return o, err
}

func (s *Service) createOrder(ctx context.Context, id, actor string, req api.CreateOrderRequest) (*api.Order, error) {
	supplier := strings.TrimSpace(req.Supplier)
	if supplier == "" {
		return nil, ValidationError{Field: "supplier", Reason: "is required"}
	}
	lines, err := s.resolveLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := api.Order{
		Id:        id,
		Number:    OrderNumber(id, now),
		Status:    api.OrderStatusDraft,
		Supplier:  supplier,
		Lines:     lines,
		Notes:     req.Notes,
		Total:     orderTotal(lines),
		CreatedAt: now,
		CreatedBy: actor,
		UpdatedAt: now,
	}

	created, err := s.repo.CreateOrder(ctx, o, fmt.Sprintf("Create order %s for %s", o.Number, supplier))
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.log.Info("order created", "id", created.Id, "number", created.Number, "actor", actor)
	return created, nil
}

// resolveLines turns requested lines into priced order lines. Unit cost
// defaults to the part's.
func (s *Service) resolveLines(ctx context.Context, in []api.OrderLineInput) ([]api.OrderLine, error) {
	if len(in) == 0 {
		return nil, ValidationError{Field: "lines", Reason: "must not be empty"}
	}

	seen := make(map[string]bool, len(in))
	lines := make([]api.OrderLine, 0, len(in))
	for i, l := range in {
		field := fmt.Sprintf("lines[%d]", i)
		if l.Quantity <= 0 {
			return nil, ValidationError{Field: field + ".quantity", Reason: "must be positive"}
		}
		if seen[l.PartId] {
			return nil, ValidationError{Field: field + ".partId", Reason: "appears more than once"}
		}
		seen[l.PartId] = true

		p, err := s.GetPart(ctx, l.PartId)
		if err != nil {
			return nil, err
		}
		cost := p.UnitCost
		if l.UnitCost != nil {
			if *l.UnitCost < 0 {
				return nil, ValidationError{Field: field + ".unitCost", Reason: "must not be negative"}
			}
			cost = *l.UnitCost
		}
		lines = append(lines, api.OrderLine{
			PartId:     p.Id,
			PartNumber: p.PartNumber,
			Name:       p.Name,
			Unit:       p.Unit,
			Quantity:   l.Quantity,
			UnitCost:   cost,
			LineTotal:  money(float64(l.Quantity) * cost),
		})
	}
	return lines, nil
}

// UpdateOrder edits a draft order.
func (s *Service) UpdateOrder(ctx context.Context, actor, id string, req api.UpdateOrderRequest) (*api.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != api.OrderStatusDraft {
		return nil, OrderNotEditableError{ID: id, Status: string(o.Status)}
	}
	version := o.Version
	if req.Version != nil && *req.Version != "" {
		version = *req.Version
	}

	if req.Supplier != nil {
		supplier := strings.TrimSpace(*req.Supplier)
		if supplier == "" {
			return nil, ValidationError{Field: "supplier", Reason: "must not be empty"}
		}
		o.Supplier = supplier
	}
	if req.Lines != nil {
		lines, err := s.resolveLines(ctx, req.Lines)
		if err != nil {
			return nil, err
		}
		o.Lines = lines
		o.Total = orderTotal(lines)
	}
	if req.Notes != nil {
		o.Notes = req.Notes
	}
	o.UpdatedAt = s.now()

	updated, err := s.repo.UpdateOrder(ctx, *o, version, fmt.Sprintf("Update order %s", o.Number))
	if err != nil {
		return nil, fmt.Errorf("update order %q: %w", id, err)
	}
	s.log.Info("order updated", "id", id, "actor", actor)
	return updated, nil
}

// SubmitOrder moves a draft order to submitted.
func (s *Service) SubmitOrder(ctx context.Context, actor, id string) (*api.Order, error) {
	return s.transition(ctx, actor, id, api.OrderStatusSubmitted)
}

// CancelOrder cancels a draft or submitted order.
func (s *Service) CancelOrder(ctx context.Context, actor, id string) (*api.Order, error) {
	return s.transition(ctx, actor, id, api.OrderStatusCancelled)
}

func (s *Service) transition(ctx context.Context, actor, id string, to api.OrderStatus) (*api.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, InvalidOrderTransitionError{ID: id, From: string(o.Status), To: string(to)}
	}

	now := s.now()
	o.Status = to
	o.UpdatedAt = now
	if to == api.OrderStatusSubmitted {
		o.SubmittedAt = ptr(now)
	}

	updated, err := s.repo.UpdateOrder(ctx, *o, o.Version, fmt.Sprintf("Mark order %s %s", o.Number, to))
	if err != nil {
		return nil, fmt.Errorf("update order %q: %w", id, err)
	}
	s.log.Info("order status changed", "id", id, "status", to, "actor", actor)
	return updated, nil
}

// ReceiveOrder marks a submitted order received and books every line into
// stock. The parts, one movement per line and the order are written together.
func (s *Service) ReceiveOrder(ctx context.Context, actor, id string) (*api.Order, error) {
	return retryConflicts(ctx, s.log, "receive order", func() (*api.Order, error) {
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if !CanTransition(o.Status, api.OrderStatusReceived) {
			return nil, InvalidOrderTransitionError{ID: id, From: string(o.Status), To: string(api.OrderStatusReceived)}
		}

		now := s.now()
		parts := make(map[string]*api.Part, len(o.Lines))
		var (
			updates   []StockUpdate
			movements []api.StockMovement
		)
		for _, l := range o.Lines {
			p, ok := parts[l.PartId]
			if !ok {
				p, err = s.GetPart(ctx, l.PartId)
				if err != nil {
					return nil, err
				}
				parts[l.PartId] = p
			}
			p.Quantity += l.Quantity
			movements = append(movements, api.StockMovement{
				Id:            uuid.New().String(),
				PartId:        p.Id,
				PartNumber:    p.PartNumber,
				Delta:         l.Quantity,
				QuantityAfter: p.Quantity,
				Reason:        api.MovementReasonOrderReceived,
				Note:          ptr("Received on " + o.Number),
				OrderId:       ptr(o.Id),
				CreatedAt:     now,
				CreatedBy:     actor,
			})
		}
		for _, l := range o.Lines {
			p, ok := parts[l.PartId]
			if !ok {
				continue
			}
			updates = append(updates, StockUpdate{
				PartID:    p.Id,
				Version:   p.Version,
				Quantity:  p.Quantity,
				UpdatedAt: now,
				UpdatedBy: actor,
			})
			delete(parts, l.PartId)
		}

		o.Status = api.OrderStatusReceived
		o.ReceivedAt = ptr(now)
		o.UpdatedAt = now

		res, err := s.repo.Apply(ctx, LedgerEntry{
			Message:      fmt.Sprintf("Receive order %s from %s", o.Number, o.Supplier),
			Stock:        updates,
			Movements:    movements,
			Order:        o,
			OrderVersion: o.Version,
		})
		if err != nil {
			return nil, fmt.Errorf("receive order %q: %w", id, err)
		}
		o.Version = res.OrderVersion
		s.log.Info("order received", "id", id, "lines", len(o.Lines), "actor", actor)
		return o, nil
	})
}

// Suggestions groups parts that need reordering by supplier, with suggested
// quantities priced at each part's unit cost.
func (s *Service) Suggestions(ctx context.Context) ([]api.OrderSuggestion, error) {
	parts, err := s.ListParts(ctx, PartFilter{})
	if err != nil {
		return nil, err
	}

	bySupplier := map[string]*api.OrderSuggestion{}
	for _, p := range parts {
		if !NeedsReorder(p) {
			continue
		}
		supplier := deref(p.Supplier)
		if supplier == "" {
			supplier = UnassignedSupplier
		}
		sg, ok := bySupplier[supplier]
		if !ok {
			sg = &api.OrderSuggestion{Supplier: supplier}
			bySupplier[supplier] = sg
		}
		qty := SuggestedQuantity(p)
		sg.Lines = append(sg.Lines, api.OrderLineInput{
			PartId:   p.Id,
			Quantity: qty,
			UnitCost: ptr(p.UnitCost),
		})
		sg.Total = money(sg.Total + float64(qty)*p.UnitCost)
	}

	out := make([]api.OrderSuggestion, 0, len(bySupplier))
	for _, sg := range bySupplier {
		out = append(out, *sg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Supplier < out[j].Supplier })
	return out, nil
}

// OrderPDF renders the purchase order with the requester's company details.
func (s *Service) OrderPDF(ctx context.Context, id, requesterID string) ([]byte, *api.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := s.renderOrder(ctx, *o, requesterID)
	if err != nil {
		return nil, nil, err
	}
	return pdf, o, nil
}

// PublishOrderPDF renders the order and commits the PDF next to it, setting
// the order's documentUrl.
func (s *Service) PublishOrderPDF(ctx context.Context, actor, id string) (*api.Order, error) {
	return retryConflicts(ctx, s.log, "publish order pdf", func() (*api.Order, error) {
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		pdf, err := s.renderOrder(ctx, *o, actor)
		if err != nil {
			return nil, err
		}
		o.UpdatedAt = s.now()
		published, err := s.repo.PublishDocument(ctx, *o, o.Version, pdf, fmt.Sprintf("Publish %s.pdf", o.Number))
		if err != nil {
			return nil, fmt.Errorf("publish order %q: %w", id, err)
		}
		return published, nil
	})
}

func (s *Service) renderOrder(ctx context.Context, o api.Order, requesterID string) ([]byte, error) {
	company := api.CompanyInfo{Name: "Stockroom"}
	if s.company != nil && requesterID != "" {
		info, err := s.company.CompanyInfo(ctx, requesterID)
		if err != nil {
			return nil, fmt.Errorf("company info for %q: %w", requesterID, err)
		}
		if info != nil && info.Name != "" {
			company = *info
		}
	}

	pdf, err := render.OrderPDF(o, company, s.now())
	if err != nil {
		return nil, fmt.Errorf("render order %q: %w", o.Id, err)
	}
	return pdf, nil
}

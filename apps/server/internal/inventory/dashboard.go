package inventory

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tilsley/stockroom/pkg/api"
)

const (
	dashboardLowStock = 10
	dashboardTopValue = 5
)

// Dashboard summarises inventory health: totals, stock level counts, a
// per-category breakdown, the parts most in need of reordering, the most
// valuable holdings, recent movements and open orders.
func (s *Service) Dashboard(ctx context.Context, recentLimit int) (*api.Dashboard, error) {
	var (
		parts  []api.Part
		orders []api.Order
		recent []api.StockMovement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		parts, err = s.ListParts(gctx, PartFilter{})
		return err
	})
	g.Go(func() (err error) {
		orders, err = s.ListOrders(gctx, "")
		return err
	})
	if recentLimit > 0 {
		g.Go(func() (err error) {
			recent, err = s.RecentMovements(gctx, recentLimit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	d := &api.Dashboard{
		Categories:      []api.CategorySummary{},
		LowStock:        []api.Part{},
		TopValue:        []api.PartValue{},
		RecentMovements: recent,
		GeneratedAt:     s.now(),
	}
	if d.RecentMovements == nil {
		d.RecentMovements = []api.StockMovement{}
	}

	categories := map[string]*api.CategorySummary{}
	for _, p := range parts {
		value := money(float64(p.Quantity) * p.UnitCost)
		d.TotalParts++
		d.TotalUnits += p.Quantity
		d.TotalValue += value

		switch p.Level {
		case api.StockLevelOutOfStock:
			d.OutOfStockCount++
		case api.StockLevelLowStock:
			d.LowStockCount++
		default:
			d.InStockCount++
		}

		c, ok := categories[p.Category]
		if !ok {
			c = &api.CategorySummary{Category: p.Category}
			categories[p.Category] = c
		}
		c.Parts++
		c.Units += p.Quantity
		c.Value = money(c.Value + value)
		if p.Level != api.StockLevelInStock {
			c.LowStock++
			d.LowStock = append(d.LowStock, p)
		}
		d.TopValue = append(d.TopValue, api.PartValue{
			PartId:     p.Id,
			PartNumber: p.PartNumber,
			Name:       p.Name,
			Quantity:   p.Quantity,
			Value:      value,
		})
	}
	d.TotalValue = money(d.TotalValue)

	for _, c := range categories {
		d.Categories = append(d.Categories, *c)
	}
	sort.Slice(d.Categories, func(i, j int) bool { return d.Categories[i].Category < d.Categories[j].Category })

	// Furthest below the reorder point first.
	sort.SliceStable(d.LowStock, func(i, j int) bool {
		a, b := d.LowStock[i], d.LowStock[j]
		return a.Quantity-a.ReorderPoint < b.Quantity-b.ReorderPoint
	})
	if len(d.LowStock) > dashboardLowStock {
		d.LowStock = d.LowStock[:dashboardLowStock]
	}

	sort.SliceStable(d.TopValue, func(i, j int) bool { return d.TopValue[i].Value > d.TopValue[j].Value })
	if len(d.TopValue) > dashboardTopValue {
		d.TopValue = d.TopValue[:dashboardTopValue]
	}

	for _, o := range orders {
		if IsOpen(o) {
			d.OpenOrders++
			d.OpenOrderValue += o.Total
		}
	}
	d.OpenOrderValue = money(d.OpenOrderValue)

	return d, nil
}

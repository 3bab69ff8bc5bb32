package inventory

import (
	"crypto/sha1" //nolint:gosec // short display id, not a security boundary
	"encoding/hex"
	"math"
	"strings"
	"time"

	"github.com/tilsley/stockroom/pkg/api"
)

// DefaultUnit is applied to parts created without a unit.
const DefaultUnit = "pcs"

// UnassignedSupplier groups suggestions for parts without a supplier.
const UnassignedSupplier = "Unassigned"

// LevelFor classifies quantity against the reorder point.
func LevelFor(p api.Part) api.StockLevel {
	switch {
	case p.Quantity <= 0:
		return api.StockLevelOutOfStock
	case p.Quantity <= p.ReorderPoint:
		return api.StockLevelLowStock
	default:
		return api.StockLevelInStock
	}
}

// NeedsReorder reports whether a part is low or out of stock.
func NeedsReorder(p api.Part) bool {
	return LevelFor(p) != api.StockLevelInStock
}

// SuggestedQuantity is the reorder quantity when set, otherwise enough to
// reach twice the reorder point, and never less than one.
func SuggestedQuantity(p api.Part) int {
	if p.ReorderQuantity > 0 {
		return p.ReorderQuantity
	}
	return max(2*p.ReorderPoint-p.Quantity, 1)
}

// OrderNumber derives the human facing purchase order number from the order
// id and creation date: PO-<yyyymmdd>-<6 hex>.
func OrderNumber(id string, created time.Time) string {
	sum := sha1.Sum([]byte(id)) //nolint:gosec // see import
	return "PO-" + created.UTC().Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(sum[:3]))
}

// allowedTransitions lists the statuses each status may move to.
var allowedTransitions = map[api.OrderStatus][]api.OrderStatus{
	api.OrderStatusDraft:     {api.OrderStatusSubmitted, api.OrderStatusCancelled},
	api.OrderStatusSubmitted: {api.OrderStatusReceived, api.OrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to api.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsOpen reports whether an order still awaits delivery.
func IsOpen(o api.Order) bool {
	return o.Status == api.OrderStatusDraft || o.Status == api.OrderStatusSubmitted
}

// money rounds to cents.
func money(v float64) float64 {
	return math.Round(v*100) / 100
}

func orderTotal(lines []api.OrderLine) float64 {
	var total float64
	for _, l := range lines {
		total += l.LineTotal
	}
	return money(total)
}

// PartFilter narrows ListParts. Empty fields match everything.
type PartFilter struct {
	Category string
	Level    api.StockLevel
	Query    string
}

func (f PartFilter) matches(p api.Part) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, p.Category) {
		return false
	}
	if f.Level != "" && f.Level != p.Level {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	for _, field := range []string{p.PartNumber, p.Name, deref(p.Supplier)} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr[T any](v T) *T { return &v }

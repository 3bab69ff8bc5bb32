package inventory

import (
	"context"
	"time"

	"github.com/tilsley/stockroom/pkg/api"
)

// PartStore persists part records. Every returned part carries its Version.
// GetPart returns nil, nil when the part does not exist.
type PartStore interface {
	ListParts(ctx context.Context) ([]api.Part, error)
	GetPart(ctx context.Context, id string) (*api.Part, error)
	CreatePart(ctx context.Context, p api.Part, message string) (*api.Part, error)
	UpdatePart(ctx context.Context, p api.Part, version, message string) (*api.Part, error)
	DeletePart(ctx context.Context, id, version, message string) error
}

// MovementStore reads the stock movement history. Movements are only
// written through Ledger.Apply.
type MovementStore interface {
	ListMovements(ctx context.Context, partID string) ([]api.StockMovement, error)
	RecentMovements(ctx context.Context, limit int) ([]api.StockMovement, error)
}

// OrderStore persists purchase orders and their rendered documents.
// GetOrder returns nil, nil when the order does not exist.
type OrderStore interface {
	ListOrders(ctx context.Context) ([]api.Order, error)
	GetOrder(ctx context.Context, id string) (*api.Order, error)
	CreateOrder(ctx context.Context, o api.Order, message string) (*api.Order, error)
	UpdateOrder(ctx context.Context, o api.Order, version, message string) (*api.Order, error)
	// PublishDocument stores the PDF next to the order, sets DocumentUrl and
	// saves the order in the same write.
	PublishDocument(ctx context.Context, o api.Order, version string, pdf []byte, message string) (*api.Order, error)
}

// StockUpdate sets one part's quantity, guarded by the version it was read at.
type StockUpdate struct {
	PartID    string
	Version   string
	Quantity  int
	UpdatedAt time.Time
	UpdatedBy string
}

// LedgerEntry is a set of stock changes applied atomically: every part
// update, every movement and (optionally) the order land together or not at all.
type LedgerEntry struct {
	Message      string
	Stock        []StockUpdate
	Movements    []api.StockMovement
	Order        *api.Order
	OrderVersion string
}

// LedgerResult carries the new versions written by Apply.
type LedgerResult struct {
	PartVersions map[string]string
	OrderVersion string
}

// Ledger applies stock changes. A stale version yields VersionConflictError.
type Ledger interface {
	Apply(ctx context.Context, entry LedgerEntry) (*LedgerResult, error)
}

// Repository is everything the service persists.
type Repository interface {
	PartStore
	MovementStore
	OrderStore
	Ledger
}

// CompanyDirectory resolves the company details printed on purchase orders.
// Implemented by the accounts service from the requester's profile.
type CompanyDirectory interface {
	CompanyInfo(ctx context.Context, userID string) (*api.CompanyInfo, error)
}

// ReplenishmentEngine runs replenishment workflows. ReplenishmentStatus
// returns nil, nil for an unknown run.
type ReplenishmentEngine interface {
	StartReplenishment(ctx context.Context, runID string, req api.ReplenishmentRequest) error
	ReplenishmentStatus(ctx context.Context, runID string) (*api.ReplenishmentResult, error)
}

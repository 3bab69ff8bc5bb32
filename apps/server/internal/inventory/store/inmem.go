package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/pkg/api"
)

// Compile-time check: *MemStore implements inventory.Repository.
var _ inventory.Repository = (*MemStore)(nil)

// MemStore is an in-memory inventory.Repository with the same version
// semantics as GitHubStore. Used by tests.
type MemStore struct {
	mu        sync.Mutex
	seq       int
	parts     map[string]api.Part
	orders    map[string]api.Order
	movements []api.StockMovement
	documents map[string][]byte
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		parts:     make(map[string]api.Part),
		orders:    make(map[string]api.Order),
		documents: make(map[string][]byte),
	}
}

func (s *MemStore) nextVersion() string {
	s.seq++
	return fmt.Sprintf("v%d", s.seq)
}

// ListParts returns every part.
func (s *MemStore) ListParts(_ context.Context) ([]api.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Part, 0, len(s.parts))
	for _, p := range s.parts {
		out = append(out, p)
	}
	return out, nil
}

// GetPart returns the part, or nil when it does not exist.
func (s *MemStore) GetPart(_ context.Context, id string) (*api.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[id]
	if !ok {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	return &p, nil
}

// CreatePart stores a new part.
func (s *MemStore) CreatePart(_ context.Context, p api.Part, _ string) (*api.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parts[p.Id]; ok {
		return nil, inventory.VersionConflictError{Kind: "part", ID: p.Id}
	}
	p.Level = ""
	p.Version = s.nextVersion()
	s.parts[p.Id] = p
	return &p, nil
}

// UpdatePart replaces the part if it is still at version.
func (s *MemStore) UpdatePart(_ context.Context, p api.Part, version, _ string) (*api.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.parts[p.Id]
	if !ok {
		return nil, inventory.PartNotFoundError{ID: p.Id}
	}
	if cur.Version != version {
		return nil, inventory.VersionConflictError{Kind: "part", ID: p.Id}
	}
	p.Level = ""
	p.Version = s.nextVersion()
	s.parts[p.Id] = p
	return &p, nil
}

// DeletePart removes the part if it is still at version.
func (s *MemStore) DeletePart(_ context.Context, id, version, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.parts[id]
	if !ok {
		return inventory.PartNotFoundError{ID: id}
	}
	if version != "" && cur.Version != version {
		return inventory.VersionConflictError{Kind: "part", ID: id}
	}
	delete(s.parts, id)
	return nil
}

// ListMovements returns every movement for a part.
func (s *MemStore) ListMovements(_ context.Context, partID string) ([]api.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []api.StockMovement
	for _, m := range s.movements {
		if m.PartId == partID {
			out = append(out, m)
		}
	}
	return out, nil
}

// RecentMovements returns the last limit movements recorded.
func (s *MemStore) RecentMovements(_ context.Context, limit int) ([]api.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := max(len(s.movements)-limit, 0)
	return append([]api.StockMovement(nil), s.movements[start:]...), nil
}

// ListOrders returns every order.
func (s *MemStore) ListOrders(_ context.Context) ([]api.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

// GetOrder returns the order, or nil when it does not exist.
func (s *MemStore) GetOrder(_ context.Context, id string) (*api.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	return &o, nil
}

// CreateOrder stores a new order.
func (s *MemStore) CreateOrder(_ context.Context, o api.Order, _ string) (*api.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.Id]; ok {
		return nil, inventory.VersionConflictError{Kind: "order", ID: o.Id}
	}
	o.Version = s.nextVersion()
	s.orders[o.Id] = o
	return &o, nil
}

// UpdateOrder replaces the order if it is still at version.
func (s *MemStore) UpdateOrder(_ context.Context, o api.Order, version, _ string) (*api.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putOrderLocked(o, version)
}

func (s *MemStore) putOrderLocked(o api.Order, version string) (*api.Order, error) {
	cur, ok := s.orders[o.Id]
	if !ok {
		return nil, inventory.OrderNotFoundError{ID: o.Id}
	}
	if cur.Version != version {
		return nil, inventory.VersionConflictError{Kind: "order", ID: o.Id}
	}
	o.Version = s.nextVersion()
	s.orders[o.Id] = o
	return &o, nil
}

// PublishDocument stores the PDF and updates the order.
func (s *MemStore) PublishDocument(_ context.Context, o api.Order, version string, pdf []byte, _ string) (*api.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.DocumentUrl = ptr("mem://" + documentPath(o.Id))
	updated, err := s.putOrderLocked(o, version)
	if err != nil {
		return nil, err
	}
	s.documents[o.Id] = append([]byte(nil), pdf...)
	return updated, nil
}

// Document returns a published PDF.
func (s *MemStore) Document(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.documents[id]
	return b, ok
}

// Apply checks every version first, then applies the whole entry.
func (s *MemStore) Apply(_ context.Context, e inventory.LedgerEntry) (*inventory.LedgerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range e.Stock {
		cur, ok := s.parts[u.PartID]
		if !ok {
			return nil, inventory.PartNotFoundError{ID: u.PartID}
		}
		if u.Version != "" && cur.Version != u.Version {
			return nil, inventory.VersionConflictError{Kind: "part", ID: u.PartID}
		}
	}
	if e.Order != nil {
		cur, ok := s.orders[e.Order.Id]
		if ok && cur.Version != e.OrderVersion {
			return nil, inventory.VersionConflictError{Kind: "order", ID: e.Order.Id}
		}
	}

	res := &inventory.LedgerResult{PartVersions: make(map[string]string, len(e.Stock))}
	for _, u := range e.Stock {
		p := s.parts[u.PartID]
		p.Quantity = u.Quantity
		p.UpdatedAt = u.UpdatedAt
		p.UpdatedBy = u.UpdatedBy
		p.Version = s.nextVersion()
		s.parts[u.PartID] = p
		res.PartVersions[u.PartID] = p.Version
	}
	s.movements = append(s.movements, e.Movements...)
	if e.Order != nil {
		o := *e.Order
		o.Version = s.nextVersion()
		s.orders[o.Id] = o
		res.OrderVersion = o.Version
	}
	return res, nil
}

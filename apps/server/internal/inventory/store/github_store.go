package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"github.com/tilsley/stockroom/apps/server/internal/ghdb"
	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/pkg/api"
)

// Repository layout.
const (
	partsDir     = "parts"
	movementsDir = "movements"
	ordersDir    = "orders"
)

// Compile-time check: *GitHubStore implements inventory.Repository.
var _ inventory.Repository = (*GitHubStore)(nil)

// GitHubStore keeps inventory records as JSON files in a GitHub repository:
//
//	parts/<partId>.json
//	movements/<partId>/<unixMillis>-<movementId>.json
//	orders/<orderId>.json
//	orders/<orderId>.pdf
type GitHubStore struct {
	repo *ghdb.Repo
	log  *slog.Logger
}

// NewGitHubStore creates a GitHubStore on repo.
func NewGitHubStore(repo *ghdb.Repo, log *slog.Logger) *GitHubStore {
	if log == nil {
		log = slog.Default()
	}
	return &GitHubStore{repo: repo, log: log}
}

func partPath(id string) string  { return partsDir + "/" + id + ".json" }
func orderPath(id string) string { return ordersDir + "/" + id + ".json" }
func documentPath(id string) string {
	return ordersDir + "/" + id + ".pdf"
}

func movementPath(m api.StockMovement) string {
	return fmt.Sprintf("%s/%s/%013d-%s.json", movementsDir, m.PartId, m.CreatedAt.UnixMilli(), m.Id)
}

// ListParts returns every part with its version.
func (s *GitHubStore) ListParts(ctx context.Context) ([]api.Part, error) {
	docs, err := ghdb.ListJSON[api.Part](ctx, s.repo, partsDir)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	parts := make([]api.Part, 0, len(docs))
	for _, d := range docs {
		p := d.Value
		p.Version = d.SHA
		parts = append(parts, p)
	}
	return parts, nil
}

// GetPart returns the part, or nil when it does not exist.
func (s *GitHubStore) GetPart(ctx context.Context, id string) (*api.Part, error) {
	d, err := ghdb.ReadJSON[api.Part](ctx, s.repo, partPath(id))
	if errors.Is(err, ghdb.ErrNotFound) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get part %q: %w", id, err)
	}
	p := d.Value
	p.Version = d.SHA
	return &p, nil
}

// CreatePart writes a new part file; it fails if one already exists.
func (s *GitHubStore) CreatePart(ctx context.Context, p api.Part, message string) (*api.Part, error) {
	return s.writePart(ctx, p, "", message)
}

// UpdatePart replaces the part file if it is still at version.
func (s *GitHubStore) UpdatePart(ctx context.Context, p api.Part, version, message string) (*api.Part, error) {
	if version == "" {
		return nil, fmt.Errorf("update part %q: version is required", p.Id)
	}
	return s.writePart(ctx, p, version, message)
}

func (s *GitHubStore) writePart(ctx context.Context, p api.Part, version, message string) (*api.Part, error) {
	p.Version = ""
	p.Level = ""
	body, err := ghdb.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal part %q: %w", p.Id, err)
	}

	f, err := s.repo.WriteIfMatch(ctx, partPath(p.Id), body, message, version)
	if err != nil {
		return nil, mapErr("part", p.Id, err)
	}
	p.Version = f.SHA
	return &p, nil
}

// DeletePart removes the part file if it is still at version.
func (s *GitHubStore) DeletePart(ctx context.Context, id, version, message string) error {
	if err := s.repo.Delete(ctx, partPath(id), message, version); err != nil {
		return mapErr("part", id, err)
	}
	return nil
}

// ListMovements returns every movement recorded for a part.
func (s *GitHubStore) ListMovements(ctx context.Context, partID string) ([]api.StockMovement, error) {
	docs, err := ghdb.ListJSON[api.StockMovement](ctx, s.repo, movementsDir+"/"+partID)
	if err != nil {
		return nil, fmt.Errorf("list movements for %q: %w", partID, err)
	}
	out := make([]api.StockMovement, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Value)
	}
	return out, nil
}

// RecentMovements finds the newest movements across all parts from a single
// recursive tree listing; file names start with the creation time so only
// the newest limit files are fetched.
func (s *GitHubStore) RecentMovements(ctx context.Context, limit int) ([]api.StockMovement, error) {
	entries, err := s.repo.Tree(ctx, movementsDir)
	if err != nil {
		if errors.Is(err, ghdb.ErrNotFound) {
			return []api.StockMovement{}, nil
		}
		return nil, fmt.Errorf("list movement tree: %w", err)
	}

	files := entries[:0]
	for _, e := range entries {
		if strings.HasSuffix(e.Name, ".json") {
			files = append(files, e)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	if len(files) > limit {
		files = files[:limit]
	}

	out := make([]api.StockMovement, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.repo.Config().FetchConcurrency)
	for i, e := range files {
		g.Go(func() error {
			d, err := ghdb.ReadJSON[api.StockMovement](gctx, s.repo, e.Path)
			if err != nil {
				return err
			}
			out[i] = d.Value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read recent movements: %w", err)
	}
	return out, nil
}

// ListOrders returns every order with its version.
func (s *GitHubStore) ListOrders(ctx context.Context) ([]api.Order, error) {
	docs, err := ghdb.ListJSON[api.Order](ctx, s.repo, ordersDir)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]api.Order, 0, len(docs))
	for _, d := range docs {
		o := d.Value
		o.Version = d.SHA
		out = append(out, o)
	}
	return out, nil
}

// GetOrder returns the order, or nil when it does not exist.
func (s *GitHubStore) GetOrder(ctx context.Context, id string) (*api.Order, error) {
	d, err := ghdb.ReadJSON[api.Order](ctx, s.repo, orderPath(id))
	if errors.Is(err, ghdb.ErrNotFound) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get order %q: %w", id, err)
	}
	o := d.Value
	o.Version = d.SHA
	return &o, nil
}

// CreateOrder writes a new order file; it fails if one already exists.
func (s *GitHubStore) CreateOrder(ctx context.Context, o api.Order, message string) (*api.Order, error) {
	return s.writeOrder(ctx, o, "", message)
}

// UpdateOrder replaces the order file if it is still at version.
func (s *GitHubStore) UpdateOrder(ctx context.Context, o api.Order, version, message string) (*api.Order, error) {
	if version == "" {
		return nil, fmt.Errorf("update order %q: version is required", o.Id)
	}
	return s.writeOrder(ctx, o, version, message)
}

func (s *GitHubStore) writeOrder(ctx context.Context, o api.Order, version, message string) (*api.Order, error) {
	o.Version = ""
	body, err := ghdb.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal order %q: %w", o.Id, err)
	}
	f, err := s.repo.WriteIfMatch(ctx, orderPath(o.Id), body, message, version)
	if err != nil {
		return nil, mapErr("order", o.Id, err)
	}
	o.Version = f.SHA
	return &o, nil
}

// PublishDocument commits the PDF and the order (with DocumentUrl set) together.
func (s *GitHubStore) PublishDocument(ctx context.Context, o api.Order, version string, pdf []byte, message string) (*api.Order, error) {
	o.Version = ""
	o.DocumentUrl = ptr(s.repo.HTMLURL(documentPath(o.Id)))
	body, err := ghdb.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal order %q: %w", o.Id, err)
	}

	res, err := s.repo.Commit(ctx, ghdb.CommitRequest{
		Message: message,
		Changes: []ghdb.Change{
			{Path: orderPath(o.Id), Content: body},
			{Path: documentPath(o.Id), Content: pdf},
		},
		Expect: map[string]string{orderPath(o.Id): version},
	})
	if err != nil {
		return nil, mapErr("order", o.Id, err)
	}
	o.Version = res.Blobs[orderPath(o.Id)]
	return &o, nil
}

// Apply writes the stock updates, movements and order in one commit. Part
// files are patched in place so fields this version does not know about
// survive; every touched file must still be at the version the caller read.
func (s *GitHubStore) Apply(ctx context.Context, e inventory.LedgerEntry) (*inventory.LedgerResult, error) {
	expect := make(map[string]string, len(e.Stock)+len(e.Movements)+1)
	var changes []ghdb.Change

	for _, u := range e.Stock {
		f, err := s.repo.Read(ctx, partPath(u.PartID))
		if errors.Is(err, ghdb.ErrNotFound) {
			return nil, inventory.PartNotFoundError{ID: u.PartID}
		}
		if err != nil {
			return nil, fmt.Errorf("read part %q: %w", u.PartID, err)
		}
		if u.Version != "" && f.SHA != u.Version {
			return nil, inventory.VersionConflictError{Kind: "part", ID: u.PartID}
		}

		patched, err := patchStock(f.Content, u)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ghdb.Change{Path: f.Path, Content: patched})
		expect[f.Path] = f.SHA
	}

	for _, m := range e.Movements {
		body, err := ghdb.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal movement %q: %w", m.Id, err)
		}
		p := movementPath(m)
		changes = append(changes, ghdb.Change{Path: p, Content: body})
		expect[p] = ""
	}

	if e.Order != nil {
		o := *e.Order
		o.Version = ""
		body, err := ghdb.Marshal(o)
		if err != nil {
			return nil, fmt.Errorf("marshal order %q: %w", o.Id, err)
		}
		changes = append(changes, ghdb.Change{Path: orderPath(o.Id), Content: body})
		expect[orderPath(o.Id)] = e.OrderVersion
	}

	res, err := s.repo.Commit(ctx, ghdb.CommitRequest{
		Message: e.Message,
		Changes: changes,
		Expect:  expect,
	})
	if err != nil {
		id := "ledger"
		if len(e.Stock) > 0 {
			id = e.Stock[0].PartID
		}
		return nil, mapErr("part", id, err)
	}

	out := &inventory.LedgerResult{PartVersions: make(map[string]string, len(e.Stock))}
	for _, u := range e.Stock {
		out.PartVersions[u.PartID] = res.Blobs[partPath(u.PartID)]
	}
	if e.Order != nil {
		out.OrderVersion = res.Blobs[orderPath(e.Order.Id)]
	}
	s.log.Debug("ledger entry committed", "commit", res.SHA, "parts", len(e.Stock), "movements", len(e.Movements))
	return out, nil
}

// patchStock sets quantity, updatedAt and updatedBy on a stored part document
// without touching any other field.
func patchStock(doc []byte, u inventory.StockUpdate) ([]byte, error) {
	if id := gjson.GetBytes(doc, "id").String(); id != u.PartID {
		return nil, fmt.Errorf("part file for %q has id %q", u.PartID, id)
	}

	var err error
	if doc, err = sjson.SetBytes(doc, "quantity", u.Quantity); err != nil {
		return nil, fmt.Errorf("patch quantity of %q: %w", u.PartID, err)
	}
	if doc, err = sjson.SetBytes(doc, "updatedAt", u.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("patch updatedAt of %q: %w", u.PartID, err)
	}
	if doc, err = sjson.SetBytes(doc, "updatedBy", u.UpdatedBy); err != nil {
		return nil, fmt.Errorf("patch updatedBy of %q: %w", u.PartID, err)
	}
	return doc, nil
}

// mapErr translates ghdb errors into inventory domain errors.
func mapErr(kind, id string, err error) error {
	switch {
	case ghdb.IsConflict(err):
		return inventory.VersionConflictError{Kind: kind, ID: id}
	case errors.Is(err, ghdb.ErrNotFound):
		if kind == "order" {
			return inventory.OrderNotFoundError{ID: id}
		}
		return inventory.PartNotFoundError{ID: id}
	default:
		return fmt.Errorf("%s %q: %w", kind, id, err)
	}
}

func ptr[T any](v T) *T { return &v }

package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/tilsley/stockroom/pkg/api"
)

const (
	conflictAttempts = 5
	conflictBackoff  = 50 * time.Millisecond
)

// Service is the application-level use-case orchestrator for inventory.
// It depends only on port interfaces.
type Service struct {
	repo    Repository
	company CompanyDirectory
	engine  ReplenishmentEngine
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a new Service. company and engine may be nil: orders
// then print without company details and replenishment is unavailable.
func NewService(repo Repository, company CompanyDirectory, engine ReplenishmentEngine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:    repo,
		company: company,
		engine:  engine,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ListParts returns parts matching f, sorted by part number.
func (s *Service) ListParts(ctx context.Context, f PartFilter) ([]api.Part, error) {
	parts, err := s.repo.ListParts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}

	out := make([]api.Part, 0, len(parts))
	for _, p := range parts {
		p.Level = LevelFor(p)
		if f.matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out, nil
}

// GetPart returns one part or PartNotFoundError.
func (s *Service) GetPart(ctx context.Context, id string) (*api.Part, error) {
	p, err := s.repo.GetPart(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get part %q: %w", id, err)
	}
	if p == nil {
		return nil, PartNotFoundError{ID: id}
	}
	p.Level = LevelFor(*p)
	return p, nil
}

// CreatePart validates the input and stores a new part.
func (s *Service) CreatePart(ctx context.Context, actor string, in api.PartInput) (*api.Part, error) {
	in = normalizePartInput(in)
	if err := validatePartInput(in); err != nil {
		return nil, err
	}
	if err := s.ensureUniquePartNumber(ctx, in.PartNumber, ""); err != nil {
		return nil, err
	}

	now := s.now()
	p := api.Part{
		Id:        uuid.New().String(),
		CreatedAt: now,
	}
	applyPartInput(&p, in)
	p.Quantity = in.Quantity
	p.UpdatedAt = now
	p.UpdatedBy = actor

	created, err := s.repo.CreatePart(ctx, p, fmt.Sprintf("Create part %s", p.PartNumber))
	if err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	created.Level = LevelFor(*created)
	s.log.Info("part created", "id", created.Id, "partNumber", created.PartNumber, "actor", actor)
	return created, nil
}

// UpdatePart replaces a part's descriptive fields. Quantity is not changed
// here; stock moves only through AdjustStock and ReceiveOrder. When
// in.Version is empty the version just read is used.
func (s *Service) UpdatePart(ctx context.Context, actor, id string, in api.PartInput) (*api.Part, error) {
	in = normalizePartInput(in)
	if err := validatePartInput(in); err != nil {
		return nil, err
	}

	existing, err := s.GetPart(ctx, id)
	if err != nil {
		return nil, err
	}
	version := existing.Version
	if in.Version != nil && *in.Version != "" {
		version = *in.Version
	}
	if !strings.EqualFold(existing.PartNumber, in.PartNumber) {
		if err := s.ensureUniquePartNumber(ctx, in.PartNumber, id); err != nil {
			return nil, err
		}
	}

	p := *existing
	applyPartInput(&p, in)
	p.UpdatedAt = s.now()
	p.UpdatedBy = actor

	updated, err := s.repo.UpdatePart(ctx, p, version, fmt.Sprintf("Update part %s", p.PartNumber))
	if err != nil {
		return nil, fmt.Errorf("update part %q: %w", id, err)
	}
	updated.Level = LevelFor(*updated)
	return updated, nil
}

// DeletePart removes a part. Its movement history is kept.
func (s *Service) DeletePart(ctx context.Context, actor, id, version string) error {
	existing, err := s.GetPart(ctx, id)
	if err != nil {
		return err
	}
	if version == "" {
		version = existing.Version
	}
	if err := s.repo.DeletePart(ctx, id, version, fmt.Sprintf("Delete part %s", existing.PartNumber)); err != nil {
		return fmt.Errorf("delete part %q: %w", id, err)
	}
	s.log.Info("part deleted", "id", id, "actor", actor)
	return nil
}

func (s *Service) ensureUniquePartNumber(ctx context.Context, partNumber, exceptID string) error {
	parts, err := s.repo.ListParts(ctx)
	if err != nil {
		return fmt.Errorf("list parts: %w", err)
	}
	for _, p := range parts {
		if p.Id != exceptID && strings.EqualFold(p.PartNumber, partNumber) {
			return DuplicatePartNumberError{PartNumber: partNumber}
		}
	}
	return nil
}

func normalizePartInput(in api.PartInput) api.PartInput {
	in.PartNumber = strings.TrimSpace(in.PartNumber)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Unit == "" {
		in.Unit = DefaultUnit
	}
	return in
}

func validatePartInput(in api.PartInput) error {
	switch {
	case in.PartNumber == "":
		return ValidationError{Field: "partNumber", Reason: "is required"}
	case in.Name == "":
		return ValidationError{Field: "name", Reason: "is required"}
	case in.Category == "":
		return ValidationError{Field: "category", Reason: "is required"}
	case in.Quantity < 0:
		return ValidationError{Field: "quantity", Reason: "must not be negative"}
	case in.ReorderPoint < 0:
		return ValidationError{Field: "reorderPoint", Reason: "must not be negative"}
	case in.ReorderQuantity < 0:
		return ValidationError{Field: "reorderQuantity", Reason: "must not be negative"}
	case in.UnitCost < 0:
		return ValidationError{Field: "unitCost", Reason: "must not be negative"}
	}
	return nil
}

func applyPartInput(p *api.Part, in api.PartInput) {
	p.PartNumber = in.PartNumber
	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.Supplier = in.Supplier
	p.Location = in.Location
	p.Unit = in.Unit
	p.ReorderPoint = in.ReorderPoint
	p.ReorderQuantity = in.ReorderQuantity
	p.UnitCost = in.UnitCost
}

// retryConflicts reruns op while it fails with VersionConflictError. Any
// other error stops immediately.
func retryConflicts[T any](ctx context.Context, log *slog.Logger, what string, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = conflictBackoff

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		var conflict VersionConflictError
		if err != nil && !errors.As(err, &conflict) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(conflictAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn("retrying after concurrent modification", "op", what, "wait", wait, "error", err)
		}),
	)
}

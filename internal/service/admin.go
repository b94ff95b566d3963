package service

import (
	"context"
	"fmt"
	"time"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
	"github.com/efreitasn/matchcore/internal/health"
)

// PruneRequest is the operator input for a prune sweep.
type PruneRequest struct {
	Start time.Time
	End   time.Time // zero means now
	Users []string
}

// AdminService exposes operator controls over the matching core.
type AdminService struct {
	catalog   *domain.Catalog
	submitter Submitter
	health    *health.Monitor
	now       func() time.Time
}

// NewAdminService creates a new AdminService with the given dependencies.
func NewAdminService(catalog *domain.Catalog, submitter Submitter, monitor *health.Monitor) *AdminService {
	return &AdminService{
		catalog:   catalog,
		submitter: submitter,
		health:    monitor,
		now:       time.Now,
	}
}

// SetDailyLimit opens or closes trading on a product.
func (s *AdminService) SetDailyLimit(ctx context.Context, productID string, open bool) error {
	p, err := s.catalog.Product(productID)
	if err != nil {
		return err
	}
	if p.Synthetic() {
		return fmt.Errorf("%w: %s follows its legs", domain.ErrProductSynthetic, p.ID)
	}
	return s.submitter.Submit(ctx, engine.DailyLimitOperation{ProductID: p.ID, Open: open, At: s.now()})
}

// CancelAll cancels every resting and pending order on every product.
func (s *AdminService) CancelAll(ctx context.Context) error {
	return s.submitter.Submit(ctx, engine.Signal{Type: engine.SignalCancelAllOrders, At: s.now()})
}

// Prune cancels never-matched orders that arrived in (Start, End].
func (s *AdminService) Prune(ctx context.Context, req PruneRequest) error {
	now := s.now()
	if req.End.IsZero() {
		req.End = now
	}
	if !req.End.After(req.Start) {
		return &domain.ValidationError{Message: "end must be after start"}
	}
	if req.End.After(now) {
		return &domain.ValidationError{Message: "end must not be in the future"}
	}
	return s.submitter.Submit(ctx, engine.PruneRequest{
		Start: req.Start,
		End:   req.End,
		Users: req.Users,
		At:    now,
	})
}

// Pause stops order intake for maintenance.
func (s *AdminService) Pause(reason string) {
	s.health.Pause(health.SourceAdmin, reason)
}

// Resume re-enables order intake. Returns false if it was not paused.
func (s *AdminService) Resume() bool {
	return s.health.Resume()
}

// Status reports whether intake is paused and why.
func (s *AdminService) Status() health.Status {
	return s.health.Status()
}

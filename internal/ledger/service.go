package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RepositoryPort abstracts the batch store for the service.
type RepositoryPort interface {
	CreateBatch(ctx context.Context, input CreateBatchInput) (Batch, error)
	GetBatch(ctx context.Context, id int64) (Batch, error)
	SetStatusFromQuarantine(ctx context.Context, id int64, to BatchStatus) (Batch, error)
	AvailableBatches(ctx context.Context, productID int64) ([]Batch, error)
	ListByProduct(ctx context.Context, productID int64) ([]Batch, error)
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service owns batch lifecycle transitions.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds the ledger service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateBatch validates and registers a new quarantined batch.
func (s *Service) CreateBatch(ctx context.Context, input CreateBatchInput) (Batch, error) {
	if input.ProductID <= 0 {
		return Batch{}, fmt.Errorf("%w: product required", ErrValidation)
	}
	if strings.TrimSpace(input.BatchNumber) == "" {
		return Batch{}, fmt.Errorf("%w: batch number required", ErrValidation)
	}
	if input.BaseUnits.Sign() <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	if input.UnitCost.Sign() < 0 {
		return Batch{}, fmt.Errorf("%w: unit cost must not be negative", ErrValidation)
	}
	now := s.now()
	if !input.ExpiryDate.After(input.ManufactureDate) || !input.ExpiryDate.After(now) {
		return Batch{}, ErrInvalidDateRange
	}
	return s.repo.CreateBatch(ctx, input)
}

// Approve moves a quarantined batch to APPROVED.
func (s *Service) Approve(ctx context.Context, batchID int64) (Batch, error) {
	return s.repo.SetStatusFromQuarantine(ctx, batchID, StatusApproved)
}

// Reject moves a quarantined batch to REJECTED.
func (s *Service) Reject(ctx context.Context, batchID int64) (Batch, error) {
	return s.repo.SetStatusFromQuarantine(ctx, batchID, StatusRejected)
}

// GetBatch fetches one batch.
func (s *Service) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

// AvailableBatches returns the FEFO-ordered eligible batches for a product.
func (s *Service) AvailableBatches(ctx context.Context, productID int64) ([]Batch, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("%w: product required", ErrValidation)
	}
	return s.repo.AvailableBatches(ctx, productID)
}

// ListByProduct returns every batch of a product regardless of state.
func (s *Service) ListByProduct(ctx context.Context, productID int64) ([]Batch, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("%w: product required", ErrValidation)
	}
	return s.repo.ListByProduct(ctx, productID)
}

// SweepExpired marks approved batches past expiry as EXPIRED.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.MarkExpired(ctx, s.now())
}

// Package quality implements the QC approval workflow over quarantined batches.
package quality

import (
	"context"
	"strings"
	"time"

	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/shared"
)

// LedgerPort exposes the quarantine compare-and-set transitions.
type LedgerPort interface {
	Approve(ctx context.Context, batchID int64) (ledger.Batch, error)
	Reject(ctx context.Context, batchID int64) (ledger.Batch, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Decision carries the approver identity and note for a QC outcome.
type Decision struct {
	ActorID int64
	Note    string
}

// Outcome is the flat, serializable result of a QC decision.
type Outcome struct {
	BatchID   int64
	ProductID int64
	Status    ledger.BatchStatus
	ActorID   int64
	Note      string
	DecidedAt time.Time
}

// Service is a thin wrapper over the ledger transitions. The ledger performs
// the atomic quarantine check; this layer records who decided and when.
type Service struct {
	ledger LedgerPort
	audit  AuditPort
	now    func() time.Time
}

// NewService builds the QC service.
func NewService(led LedgerPort, audit AuditPort) *Service {
	return &Service{ledger: led, audit: audit, now: func() time.Time { return time.Now().UTC() }}
}

// Approve passes a quarantined batch.
func (s *Service) Approve(ctx context.Context, batchID int64, decision Decision) (Outcome, error) {
	batch, err := s.ledger.Approve(ctx, batchID)
	if err != nil {
		return Outcome{}, err
	}
	return s.record(ctx, "qc:approve", batch, decision), nil
}

// Reject fails a quarantined batch.
func (s *Service) Reject(ctx context.Context, batchID int64, decision Decision) (Outcome, error) {
	batch, err := s.ledger.Reject(ctx, batchID)
	if err != nil {
		return Outcome{}, err
	}
	return s.record(ctx, "qc:reject", batch, decision), nil
}

func (s *Service) record(ctx context.Context, action string, batch ledger.Batch, decision Decision) Outcome {
	decidedAt := s.now()
	if s.audit != nil {
		meta := map[string]any{
			"product_id": batch.ProductID,
			"status":     string(batch.Status),
		}
		if note := strings.TrimSpace(decision.Note); note != "" {
			meta["note"] = note
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  decision.ActorID,
			Action:   action,
			Entity:   "batch",
			EntityID: batch.BatchNumber,
			Meta:     meta,
			At:       decidedAt,
		})
	}
	return Outcome{
		BatchID:   batch.ID,
		ProductID: batch.ProductID,
		Status:    batch.Status,
		ActorID:   decision.ActorID,
		Note:      decision.Note,
		DecidedAt: decidedAt,
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gdeblander/billing-engine/internal/domain"
	"github.com/gdeblander/billing-engine/internal/eventstore"
	"github.com/gdeblander/billing-engine/internal/observability"
	"github.com/gdeblander/billing-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApplyParams describes a credit to grant. A nil InvoiceID records the credit
// standalone; a set InvoiceID ties it to an already-issued invoice.
type ApplyParams struct {
	RecipientType domain.RecipientType
	RecipientID   string
	Amount        int64
	Reason        *string
	InvoiceID     *string
}

// CreditService grants credit adjustments outside of batch runs.
type CreditService struct {
	credits repository.CreditRepository
	events  eventstore.Store
	logger  *zap.Logger
	now     func() time.Time
}

func NewCreditService(credits repository.CreditRepository, events eventstore.Store, logger *zap.Logger) (*CreditService, error) {
	if credits == nil {
		return nil, fmt.Errorf("credit repository is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CreditService{
		credits: credits,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Apply grants a credit immediately, marked applied. Callers needing
// idempotency must guard against double submission themselves; there is no
// de-duplication key on credits.
func (s *CreditService) Apply(ctx context.Context, params ApplyParams) (*domain.CreditAdjustment, error) {
	return s.create(ctx, params, domain.CreditStatusApplied)
}

// Reserve records a pending credit consumed by the recipient's next invoice
// run. Same idempotency caveat as Apply.
func (s *CreditService) Reserve(ctx context.Context, params ApplyParams) (*domain.CreditAdjustment, error) {
	if params.InvoiceID != nil {
		return nil, fmt.Errorf("%w: a reserved credit cannot target an invoice", domain.ErrValidation)
	}
	return s.create(ctx, params, domain.CreditStatusPending)
}

func (s *CreditService) create(ctx context.Context, params ApplyParams, status domain.CreditStatus) (*domain.CreditAdjustment, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now().UTC()
	credit := &domain.CreditAdjustment{
		ID:            uuid.NewString(),
		RecipientType: params.RecipientType,
		RecipientID:   params.RecipientID,
		InvoiceID:     params.InvoiceID,
		Amount:        params.Amount,
		Reason:        params.Reason,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == domain.CreditStatusApplied {
		credit.AppliedAt = &now
	}

	if err := credit.Validate(); err != nil {
		return nil, err
	}

	if err := s.credits.Create(ctx, credit); err != nil {
		return nil, fmt.Errorf("failed to persist credit adjustment: %w", err)
	}

	if status == domain.CreditStatusApplied {
		aggregateID := credit.RecipientID
		if credit.InvoiceID != nil {
			aggregateID = *credit.InvoiceID
		}
		if _, err := s.events.Append(ctx, aggregateID, domain.EventCreditApplied, domain.CreditAppliedEvent{
			AdjustmentID:  credit.ID,
			RecipientType: credit.RecipientType,
			RecipientID:   credit.RecipientID,
			InvoiceID:     credit.InvoiceID,
			CreditAmount:  credit.Amount,
			Reason:        credit.Reason,
			AppliedAt:     now,
		}); err != nil {
			observability.WithContextLogger(s.logger, ctx).Warn("failed to append credit event",
				zap.String("adjustmentId", credit.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("credit adjustment recorded",
		zap.String("adjustmentId", credit.ID),
		zap.String("recipientType", credit.RecipientType.String()),
		zap.String("recipientId", credit.RecipientID),
		zap.Int64("amount", credit.Amount),
		zap.String("status", credit.Status.String()),
	)

	return credit, nil
}

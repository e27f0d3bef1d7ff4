package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdeblander/billing-engine/internal/billing"
	"github.com/gdeblander/billing-engine/internal/domain"
	"github.com/gdeblander/billing-engine/internal/eventstore"
	"github.com/gdeblander/billing-engine/internal/lock"
	"github.com/gdeblander/billing-engine/internal/observability"
	"github.com/gdeblander/billing-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	dueDateTermDays      = 30

	skipReasonLocked          = "locked"
	skipReasonAlreadyInvoiced = "already_invoiced"
	skipReasonNoBeneficiaries = "no_beneficiaries"
)

var errGenerationPanic = errors.New("panic during invoice generation")

// failureReason buckets a per-recipient error into a low-cardinality metrics
// label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, errGenerationPanic):
		return "panic"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// ExecuteParams selects what a batch run covers. DivisionID and FinancerID
// narrow the recipient set; both nil means the whole tenant directory.
type ExecuteParams struct {
	MonthYear  string
	DivisionID *string
	FinancerID *string
	DryRun     bool
}

// BatchSummary is the terminal report of a batch run.
type BatchSummary struct {
	BatchID        string
	MonthYear      string
	Status         domain.BatchStatus
	TotalInvoices  int
	SucceededCount int
	FailedCount    int
	SkippedCount   int
	Failures       map[string]string
}

// BatchService drives monthly invoice generation: it resolves recipients,
// fans them out over a bounded worker pool and generates one invoice per
// recipient with per-recipient failure isolation.
type BatchService struct {
	invoices            repository.InvoiceRepository
	batches             repository.BatchRepository
	credits             repository.CreditRepository
	directory           repository.RecipientDirectory
	events              eventstore.Store
	locker              lock.Locker
	rates               *billing.StrategyFactory
	prorata             *billing.ProrataCalculator
	logger              *zap.Logger
	metrics             *observability.Metrics
	concurrency         int
	persistDryRunEvents bool
	now                 func() time.Time
}

func NewBatchService(
	invoices repository.InvoiceRepository,
	batches repository.BatchRepository,
	credits repository.CreditRepository,
	directory repository.RecipientDirectory,
	events eventstore.Store,
	locker lock.Locker,
	rates *billing.StrategyFactory,
	prorata *billing.ProrataCalculator,
	concurrency int,
	persistDryRunEvents bool,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*BatchService, error) {
	if invoices == nil {
		return nil, fmt.Errorf("invoice repository is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if credits == nil {
		return nil, fmt.Errorf("credit repository is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("recipient directory is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if prorata == nil {
		return nil, fmt.Errorf("prorata calculator is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		invoices:            invoices,
		batches:             batches,
		credits:             credits,
		directory:           directory,
		events:              events,
		locker:              locker,
		rates:               rates,
		prorata:             prorata,
		logger:              logger,
		metrics:             metrics,
		concurrency:         concurrency,
		persistDryRunEvents: persistDryRunEvents,
		now:                 time.Now,
	}, nil
}

// Execute runs one batch over all recipients matching the params. Individual
// recipient failures never abort the run; only recipient resolution errors
// and context cancellation are fatal.
func (s *BatchService) Execute(ctx context.Context, params ExecuteParams) (*BatchSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	periodStart, periodEnd, err := domain.ParseMonthYear(params.MonthYear)
	if err != nil {
		return nil, err
	}
	monthYear := domain.FormatMonthYear(periodStart)

	startedAt := s.now().UTC()
	batch := &domain.InvoiceBatch{
		ID:        uuid.NewString(),
		MonthYear: monthYear,
		Status:    domain.BatchStatusRunning,
		DryRun:    params.DryRun,
		StartedAt: startedAt,
	}

	ctx = observability.WithBatchID(ctx, batch.ID)
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("monthYear", monthYear),
		zap.Bool("dryRun", params.DryRun),
	)

	events := s.events
	if params.DryRun && !s.persistDryRunEvents {
		events = eventstore.NewMemoryStore()
	}

	recipients, err := s.directory.ActiveRecipients(ctx, repository.RecipientFilter{
		DivisionID: params.DivisionID,
		FinancerID: params.FinancerID,
	})
	if err != nil {
		return nil, s.failBatch(ctx, events, batch, logger,
			fmt.Errorf("%w: %v", domain.ErrRecipientResolution, err))
	}

	batch.TotalInvoices = len(recipients)
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	s.appendEvent(ctx, events, logger, batch.ID, domain.EventBatchStarted, domain.BatchStartedEvent{
		BatchID:       batch.ID,
		MonthYear:     monthYear,
		TotalInvoices: batch.TotalInvoices,
		DryRun:        params.DryRun,
		StartedAt:     startedAt,
	})

	logger.Info("batch started", zap.Int("totalInvoices", batch.TotalInvoices))

	var (
		mu       sync.Mutex
		failures = make(map[string]string)
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range recipients {
		recipient := recipients[i]
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			outcome := s.generateForRecipient(groupCtx, events, batch, recipient, periodStart, periodEnd, params.DryRun, logger)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.err != nil:
				batch.FailedCount++
				failures[recipient.ID] = outcome.err.Error()
			case outcome.skipped:
				batch.SkippedCount++
			default:
				batch.SucceededCount++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, s.failBatch(ctx, events, batch, logger, fmt.Errorf("batch interrupted: %w", err))
	}

	batch.Status = domain.BatchStatusCompleted
	if batch.FailedCount > 0 {
		batch.Status = domain.BatchStatusCompletedWithErrors
	}
	completedAt := s.now().UTC()
	batch.CompletedAt = &completedAt

	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to finalize batch: %w", err)
	}

	s.appendEvent(ctx, events, logger, batch.ID, domain.EventBatchCompleted, domain.BatchCompletedEvent{
		BatchID:        batch.ID,
		Status:         batch.Status,
		SucceededCount: batch.SucceededCount,
		FailedCount:    batch.FailedCount,
		SkippedCount:   batch.SkippedCount,
		CompletedAt:    completedAt,
	})

	s.metrics.IncBatch(batch.Status.String())
	s.metrics.ObserveBatchDuration(completedAt.Sub(startedAt))

	logger.Info("batch completed",
		zap.String("status", batch.Status.String()),
		zap.Int("succeeded", batch.SucceededCount),
		zap.Int("failed", batch.FailedCount),
		zap.Int("skipped", batch.SkippedCount),
	)

	return &BatchSummary{
		BatchID:        batch.ID,
		MonthYear:      monthYear,
		Status:         batch.Status,
		TotalInvoices:  batch.TotalInvoices,
		SucceededCount: batch.SucceededCount,
		FailedCount:    batch.FailedCount,
		SkippedCount:   batch.SkippedCount,
		Failures:       failures,
	}, nil
}

// RetryRecipient re-runs the per-recipient generation path for a single
// recipient of an already-finished batch month, attributing events to the
// most recent batch of that month.
func (s *BatchService) RetryRecipient(ctx context.Context, rt domain.RecipientType, recipientID string, monthYear string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !rt.IsValid() {
		return fmt.Errorf("%w: invalid recipient type %q", domain.ErrValidation, rt)
	}

	periodStart, periodEnd, err := domain.ParseMonthYear(monthYear)
	if err != nil {
		return err
	}

	batch, err := s.batches.LatestByMonth(ctx, domain.FormatMonthYear(periodStart))
	if err != nil {
		return fmt.Errorf("no batch found for month %s: %w", monthYear, err)
	}

	filter := repository.RecipientFilter{}
	switch rt {
	case domain.RecipientDivision:
		filter.DivisionID = &recipientID
	case domain.RecipientFinancer:
		filter.FinancerID = &recipientID
	}

	recipients, err := s.directory.ActiveRecipients(ctx, filter)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRecipientResolution, err)
	}

	var target *domain.Recipient
	for i := range recipients {
		if recipients[i].Type == rt && recipients[i].ID == recipientID {
			target = &recipients[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: recipient %s %s is not active", domain.ErrNotFound, rt, recipientID)
	}

	ctx = observability.WithBatchID(ctx, batch.ID)
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("monthYear", batch.MonthYear),
		zap.Bool("retry", true),
	)

	outcome := s.generateForRecipient(ctx, s.events, batch, *target, periodStart, periodEnd, false, logger)
	if outcome.err != nil {
		return outcome.err
	}
	return nil
}

type recipientOutcome struct {
	skipped    bool
	skipReason string
	invoiceID  string
	err        error
}

func (s *BatchService) generateForRecipient(
	ctx context.Context,
	events eventstore.Store,
	batch *domain.InvoiceBatch,
	recipient domain.Recipient,
	periodStart, periodEnd time.Time,
	dryRun bool,
	logger *zap.Logger,
) (outcome recipientOutcome) {
	recipientLogger := logger.With(
		zap.String("recipientType", recipient.Type.String()),
		zap.String("recipientId", recipient.ID),
	)

	s.metrics.IncWorkerInFlight()
	start := s.now()
	defer func() {
		s.metrics.DecWorkerInFlight()
		s.metrics.ObserveInvoiceGenerationDuration(recipient.Type.String(), s.now().Sub(start))

		if r := recover(); r != nil {
			outcome = recipientOutcome{err: fmt.Errorf("%w: %v", errGenerationPanic, r)}
		}

		switch {
		case outcome.err != nil:
			s.metrics.IncInvoiceFailed(recipient.Type.String(), failureReason(outcome.err))
			recipientLogger.Error("invoice generation failed", zap.Error(outcome.err))
			s.appendEvent(ctx, events, recipientLogger, batch.ID, domain.EventInvoiceFailed, domain.InvoiceFailedEvent{
				BatchID:       batch.ID,
				InvoiceID:     outcome.invoiceID,
				RecipientType: recipient.Type,
				RecipientID:   recipient.ID,
				Error:         outcome.err.Error(),
				FailedAt:      s.now().UTC(),
			})
		case outcome.skipped:
			s.metrics.IncInvoiceSkipped(recipient.Type.String(), outcome.skipReason)
			recipientLogger.Info("recipient skipped", zap.String("reason", outcome.skipReason))
		default:
			s.metrics.IncInvoiceGenerated(recipient.Type.String())
			s.appendEvent(ctx, events, recipientLogger, batch.ID, domain.EventInvoiceCompleted, domain.InvoiceCompletedEvent{
				BatchID:     batch.ID,
				InvoiceID:   outcome.invoiceID,
				CompletedAt: s.now().UTC(),
			})
		}
	}()

	release, acquired, err := s.locker.Acquire(ctx, recipient.LockKey(batch.MonthYear))
	if err != nil {
		return recipientOutcome{err: fmt.Errorf("failed to acquire recipient lock: %w", err)}
	}
	if !acquired {
		// Another worker is already generating this recipient's invoice.
		return recipientOutcome{skipped: true, skipReason: skipReasonLocked}
	}
	defer func() {
		if err := release(ctx); err != nil {
			recipientLogger.Warn("failed to release recipient lock", zap.Error(err))
		}
	}()

	exists, err := s.invoices.ExistsForPeriod(ctx, recipient.Type, recipient.ID, periodStart)
	if err != nil {
		return recipientOutcome{err: fmt.Errorf("failed idempotency check: %w", err)}
	}
	if exists {
		return recipientOutcome{skipped: true, skipReason: skipReasonAlreadyInvoiced}
	}

	if recipient.BeneficiaryCount == 0 {
		// A financer without beneficiaries simply has nothing to invoice this
		// month; a division in that state points at broken directory data.
		if recipient.Type == domain.RecipientFinancer {
			return recipientOutcome{skipped: true, skipReason: skipReasonNoBeneficiaries}
		}
		return recipientOutcome{err: fmt.Errorf("division %s has no active beneficiaries", recipient.ID)}
	}

	pendingCredits, err := s.credits.PendingForRecipient(ctx, recipient.Type, recipient.ID)
	if err != nil {
		return recipientOutcome{err: fmt.Errorf("failed to load pending credits: %w", err)}
	}

	created, err := s.buildInvoice(ctx, recipient, periodStart, periodEnd, pendingCredits)
	if err != nil {
		return recipientOutcome{err: err}
	}

	invoiceID := uuid.NewString()
	generatedAt := s.now().UTC()

	if dryRun {
		s.appendEvent(ctx, events, recipientLogger, invoiceID, domain.EventInvoiceGenerated, domain.InvoiceGeneratedEvent{
			BatchID:       batch.ID,
			InvoiceID:     invoiceID,
			RecipientType: recipient.Type,
			RecipientID:   recipient.ID,
			TotalTtc:      created.TotalTtc,
			GeneratedAt:   generatedAt,
		})
		recipientLogger.Info("invoice computed",
			zap.Int64("totalTtc", created.TotalTtc),
			zap.Int("items", len(created.Items)),
		)
		return recipientOutcome{invoiceID: invoiceID}
	}

	batchID := batch.ID
	invoice := &domain.Invoice{
		ID:                 invoiceID,
		BatchID:            &batchID,
		RecipientType:      created.RecipientType,
		RecipientID:        created.RecipientID,
		BillingPeriodStart: created.BillingPeriodStart,
		BillingPeriodEnd:   created.BillingPeriodEnd,
		Currency:           created.Currency,
		SubtotalHtva:       created.SubtotalHtva,
		VatRate:            created.VatRate,
		VatAmount:          created.VatAmount,
		TotalTtc:           created.TotalTtc,
		Status:             domain.InvoiceStatusDraft,
		DueDate:            created.BillingPeriodEnd.AddDate(0, 0, dueDateTermDays),
		CreatedAt:          generatedAt,
		UpdatedAt:          generatedAt,
	}

	items := make([]domain.InvoiceItem, 0, len(created.Items))
	for _, item := range created.Items {
		items = append(items, domain.InvoiceItem{
			ID:                 uuid.NewString(),
			InvoiceID:          invoiceID,
			ItemType:           item.ItemType,
			ModuleID:           item.ModuleID,
			AdjustmentID:       item.AdjustmentID,
			Label:              item.Label,
			BeneficiariesCount: item.BeneficiariesCount,
			Quantity:           item.Quantity,
			UnitPriceHtva:      item.UnitPriceHtva,
			ProrataPercentage:  item.ProrataPercentage,
			ProrataDays:        item.ProrataDays,
			TotalDays:          item.TotalDays,
			SubtotalHtva:       item.SubtotalHtva,
			VatRate:            item.VatRate,
			VatAmount:          item.VatAmount,
			TotalTtc:           item.TotalTtc,
			CreatedAt:          generatedAt,
		})
	}

	creditIDs := make([]string, 0, len(pendingCredits))
	for _, credit := range pendingCredits {
		creditIDs = append(creditIDs, credit.ID)
	}

	// Invoice, items and credit consumption commit or roll back together, so
	// a failed run leaves the credits pending for the retry.
	if err := s.invoices.CreateWithItems(ctx, invoice, items, creditIDs); err != nil {
		if errors.Is(err, domain.ErrDuplicateInvoice) {
			// Lost the race against a concurrent run; the period is covered.
			return recipientOutcome{skipped: true, skipReason: skipReasonAlreadyInvoiced}
		}
		return recipientOutcome{err: fmt.Errorf("failed to persist invoice: %w", err)}
	}

	for _, credit := range pendingCredits {
		creditInvoiceID := invoice.ID
		s.appendEvent(ctx, events, recipientLogger, invoice.ID, domain.EventCreditApplied, domain.CreditAppliedEvent{
			AdjustmentID:  credit.ID,
			RecipientType: credit.RecipientType,
			RecipientID:   credit.RecipientID,
			InvoiceID:     &creditInvoiceID,
			CreditAmount:  credit.Amount,
			Reason:        credit.Reason,
			AppliedAt:     invoice.CreatedAt,
		})
	}

	s.appendEvent(ctx, events, recipientLogger, invoice.ID, domain.EventInvoiceGenerated, domain.InvoiceGeneratedEvent{
		BatchID:       batch.ID,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		RecipientType: recipient.Type,
		RecipientID:   recipient.ID,
		TotalTtc:      invoice.TotalTtc,
		GeneratedAt:   generatedAt,
	})

	recipientLogger.Info("invoice generated",
		zap.String("invoiceNumber", invoice.InvoiceNumber),
		zap.Int64("totalTtc", invoice.TotalTtc),
		zap.Int("items", len(items)),
		zap.Int("creditsApplied", len(pendingCredits)),
	)

	return recipientOutcome{invoiceID: invoice.ID}
}

func (s *BatchService) buildInvoice(
	ctx context.Context,
	recipient domain.Recipient,
	periodStart, periodEnd time.Time,
	pendingCredits []domain.CreditAdjustment,
) (*domain.CreateInvoice, error) {
	builder := billing.NewBuilder(s.rates).
		ForPeriod(periodStart, periodEnd).
		WithCountry(recipient.Country).
		WithCurrency(recipient.Currency)

	switch recipient.Type {
	case domain.RecipientDivision:
		builder.ForDivision(recipient.ID)
	case domain.RecipientFinancer:
		builder.ForFinancer(recipient.ID)
	}

	if recipient.VatRateOverride != nil {
		builder.WithVatRate(*recipient.VatRateOverride)
	}

	coreProrata := billing.FullPeriod(periodStart, periodEnd)
	if recipient.ContractStartDate != nil {
		coreProrata = s.prorata.ContractProrata(ctx, *recipient.ContractStartDate, periodStart, periodEnd)
	}
	builder.AddCorePackageItem(recipient.CorePackagePrice, recipient.BeneficiaryCount, coreProrata,
		map[string]string{"en": "Core package", "fr": "Forfait de base"}, recipient.BeneficiaryCount)

	for _, module := range recipient.Modules {
		moduleProrata := s.prorata.ModuleProrata(ctx, module.ActivatedAt, module.DeactivatedAt, periodStart, periodEnd)
		builder.AddModuleItem(module.ModuleID, module.PricePerBeneficiary, recipient.BeneficiaryCount,
			moduleProrata, module.Label, recipient.BeneficiaryCount)
	}

	for _, credit := range pendingCredits {
		builder.AddCreditAdjustment(credit.ID, credit.Amount, creditLabel(credit))
	}

	return builder.Build()
}

func (s *BatchService) failBatch(
	ctx context.Context,
	events eventstore.Store,
	batch *domain.InvoiceBatch,
	logger *zap.Logger,
	cause error,
) error {
	completedAt := s.now().UTC()
	batch.Status = domain.BatchStatusFailed
	batch.CompletedAt = &completedAt

	if err := s.batches.Create(ctx, batch); err != nil {
		// Keep the original failure; a second Create means the row exists.
		if updateErr := s.batches.Update(ctx, batch); updateErr != nil {
			logger.Error("failed to record failed batch", zap.Error(updateErr))
		}
	} else {
		// The run never got past startup, so open the stream retroactively
		// to keep the started/completed lifecycle foldable.
		s.appendEvent(ctx, events, logger, batch.ID, domain.EventBatchStarted, domain.BatchStartedEvent{
			BatchID:       batch.ID,
			MonthYear:     batch.MonthYear,
			TotalInvoices: batch.TotalInvoices,
			DryRun:        batch.DryRun,
			StartedAt:     batch.StartedAt,
		})
	}

	s.appendEvent(ctx, events, logger, batch.ID, domain.EventBatchCompleted, domain.BatchCompletedEvent{
		BatchID:        batch.ID,
		Status:         domain.BatchStatusFailed,
		SucceededCount: batch.SucceededCount,
		FailedCount:    batch.FailedCount,
		SkippedCount:   batch.SkippedCount,
		CompletedAt:    completedAt,
	})

	s.metrics.IncBatch(domain.BatchStatusFailed.String())
	logger.Error("batch failed", zap.Error(cause))
	return cause
}

// Event persistence is best-effort: a write failure degrades the audit trail
// but never undoes an already-persisted invoice.
func (s *BatchService) appendEvent(ctx context.Context, events eventstore.Store, logger *zap.Logger, aggregateID, eventType string, payload any) {
	if _, err := events.Append(ctx, aggregateID, eventType, payload); err != nil {
		logger.Warn("failed to append event",
			zap.String("eventType", eventType),
			zap.String("aggregateId", aggregateID),
			zap.Error(err),
		)
	}
}

func creditLabel(credit domain.CreditAdjustment) map[string]string {
	label := map[string]string{"en": "Credit adjustment", "fr": "Avoir"}
	if credit.Reason != nil && *credit.Reason != "" {
		label["en"] = *credit.Reason
		label["fr"] = *credit.Reason
	}
	return label
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/gdeblander/billing-engine/internal/domain"
	"github.com/gdeblander/billing-engine/internal/eventstore"
)

func TestCreditServiceApply(t *testing.T) {
	t.Parallel()

	var created *domain.CreditAdjustment
	credits := &fakeCreditRepo{
		createFn: func(ctx context.Context, c *domain.CreditAdjustment) error {
			created = c
			return nil
		},
	}
	events := eventstore.NewMemoryStore()

	svc, err := NewCreditService(credits, events, nil)
	if err != nil {
		t.Fatalf("NewCreditService() error = %v", err)
	}

	reason := "billing dispute"
	credit, err := svc.Apply(context.Background(), ApplyParams{
		RecipientType: domain.RecipientFinancer,
		RecipientID:   "f1",
		Amount:        4000,
		Reason:        &reason,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if credit.Status != domain.CreditStatusApplied {
		t.Fatalf("Status = %s, want applied", credit.Status)
	}
	if credit.AppliedAt == nil {
		t.Fatal("AppliedAt should be set on immediate application")
	}
	if created == nil || created.ID != credit.ID {
		t.Fatal("credit was not persisted")
	}

	trail, err := events.Stream(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(trail) != 1 || trail[0].EventType != domain.EventCreditApplied {
		t.Fatalf("trail = %+v, want one credit_applied on the recipient", trail)
	}
}

func TestCreditServiceApplyToInvoice(t *testing.T) {
	t.Parallel()

	events := eventstore.NewMemoryStore()
	svc, err := NewCreditService(&fakeCreditRepo{}, events, nil)
	if err != nil {
		t.Fatalf("NewCreditService() error = %v", err)
	}

	invoiceID := "inv-1"
	credit, err := svc.Apply(context.Background(), ApplyParams{
		RecipientType: domain.RecipientDivision,
		RecipientID:   "d1",
		Amount:        1500,
		InvoiceID:     &invoiceID,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if credit.InvoiceID == nil || *credit.InvoiceID != invoiceID {
		t.Fatalf("InvoiceID = %v, want %s", credit.InvoiceID, invoiceID)
	}

	trail, _ := events.Stream(context.Background(), invoiceID)
	if len(trail) != 1 {
		t.Fatalf("trail on invoice aggregate = %d events, want 1", len(trail))
	}
}

func TestCreditServiceReserve(t *testing.T) {
	t.Parallel()

	events := eventstore.NewMemoryStore()
	svc, err := NewCreditService(&fakeCreditRepo{}, events, nil)
	if err != nil {
		t.Fatalf("NewCreditService() error = %v", err)
	}

	credit, err := svc.Reserve(context.Background(), ApplyParams{
		RecipientType: domain.RecipientFinancer,
		RecipientID:   "f1",
		Amount:        2000,
	})
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	if credit.Status != domain.CreditStatusPending {
		t.Fatalf("Status = %s, want pending", credit.Status)
	}
	if credit.AppliedAt != nil {
		t.Fatal("AppliedAt must stay unset until a batch consumes the credit")
	}

	// The credit_applied event belongs to the consuming invoice run.
	trail, _ := events.Stream(context.Background(), "f1")
	if len(trail) != 0 {
		t.Fatalf("trail = %d events, want 0 for a reservation", len(trail))
	}
}

func TestCreditServiceReserveRejectsInvoiceTarget(t *testing.T) {
	t.Parallel()

	svc, err := NewCreditService(&fakeCreditRepo{}, eventstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewCreditService() error = %v", err)
	}

	invoiceID := "inv-1"
	_, err = svc.Reserve(context.Background(), ApplyParams{
		RecipientType: domain.RecipientFinancer,
		RecipientID:   "f1",
		Amount:        2000,
		InvoiceID:     &invoiceID,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Reserve() error = %v, want ErrValidation", err)
	}
}

func TestCreditServiceApplyValidation(t *testing.T) {
	t.Parallel()

	svc, err := NewCreditService(&fakeCreditRepo{}, eventstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewCreditService() error = %v", err)
	}

	testCases := []struct {
		name   string
		params ApplyParams
	}{
		{
			name:   "zero amount",
			params: ApplyParams{RecipientType: domain.RecipientFinancer, RecipientID: "f1", Amount: 0},
		},
		{
			name:   "negative amount",
			params: ApplyParams{RecipientType: domain.RecipientFinancer, RecipientID: "f1", Amount: -100},
		},
		{
			name:   "missing recipient",
			params: ApplyParams{RecipientType: domain.RecipientFinancer, Amount: 100},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := svc.Apply(context.Background(), tc.params); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Apply() error = %v, want ErrValidation", err)
			}
		})
	}
}

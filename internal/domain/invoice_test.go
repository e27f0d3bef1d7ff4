package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseRecipientTypeFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    RecipientType
		wantErr bool
	}{
		{name: "division", input: "division", want: RecipientDivision},
		{name: "financer with spaces and case", input: " Financer ", want: RecipientFinancer},
		{name: "invalid", input: "tenant", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRecipientTypeFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseRecipientTypeFromString() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecipientTypeFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseRecipientTypeFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInvoiceStatusBlocksReinvoicing(t *testing.T) {
	t.Parallel()

	blocking := []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusConfirmed, InvoiceStatusSent, InvoiceStatusPaid}
	for _, status := range blocking {
		if !status.BlocksReinvoicing() {
			t.Fatalf("%s should block reinvoicing", status)
		}
	}
	if InvoiceStatusCancelled.BlocksReinvoicing() {
		t.Fatal("cancelled should not block reinvoicing")
	}
}

func TestParseInvoiceStatusFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseInvoiceStatusFromString(" Draft ")
	if err != nil {
		t.Fatalf("ParseInvoiceStatusFromString() unexpected error = %v", err)
	}
	if got != InvoiceStatusDraft {
		t.Fatalf("ParseInvoiceStatusFromString() = %s, want %s", got, InvoiceStatusDraft)
	}

	_, err = ParseInvoiceStatusFromString("archived")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseInvoiceStatusFromString() error = %v, want ErrValidation", err)
	}
}

func TestParseMonthYear(t *testing.T) {
	t.Parallel()

	start, end, err := ParseMonthYear("2025-02")
	if err != nil {
		t.Fatalf("ParseMonthYear() unexpected error = %v", err)
	}
	if want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("start = %v, want %v", start, want)
	}
	if want := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("end = %v, want %v", end, want)
	}

	_, _, err = ParseMonthYear("02-2025")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseMonthYear() error = %v, want ErrValidation", err)
	}
}

func TestBatchStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if BatchStatusRunning.IsTerminal() {
		t.Fatal("running should not be terminal")
	}
	for _, status := range []BatchStatus{BatchStatusCompleted, BatchStatusCompletedWithErrors, BatchStatusFailed} {
		if !status.IsTerminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
}

func TestCreditAdjustmentValidate(t *testing.T) {
	t.Parallel()

	valid := &CreditAdjustment{
		RecipientType: RecipientFinancer,
		RecipientID:   "fin-1",
		Amount:        1500,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	tests := []struct {
		name   string
		credit CreditAdjustment
	}{
		{name: "zero amount", credit: CreditAdjustment{RecipientType: RecipientFinancer, RecipientID: "fin-1", Amount: 0}},
		{name: "negative amount", credit: CreditAdjustment{RecipientType: RecipientFinancer, RecipientID: "fin-1", Amount: -50}},
		{name: "missing recipient id", credit: CreditAdjustment{RecipientType: RecipientDivision, Amount: 100}},
		{name: "invalid recipient type", credit: CreditAdjustment{RecipientType: "tenant", RecipientID: "x", Amount: 100}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := tt.credit.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}

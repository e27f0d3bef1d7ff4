package billing

import (
	"errors"
	"strings"
	"testing"

	"github.com/gdeblander/billing-engine/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	coreLabel   = map[string]string{"en": "Core package", "fr": "Forfait de base"}
	moduleLabel = map[string]string{"en": "Wellness module", "fr": "Module bien-etre"}
)

func TestBuilderReferenceScenario(t *testing.T) {
	t.Parallel()

	// Belgian division: core package 4000/beneficiary x 12 full month, plus
	// one module 2500/beneficiary x 8 at half-month prorata.
	invoice, err := NewBuilder(NewStrategyFactory(nil)).
		ForDivision("div-1").
		ForPeriod(date(2025, 10, 1), date(2025, 10, 31)).
		WithCountry("BE").
		AddCorePackageItem(4000, 12, Prorata{Percentage: decimal.NewFromInt(1), Days: 31, TotalDays: 31}, coreLabel, 12).
		AddModuleItem("mod-1", 2500, 8, Prorata{Percentage: decimal.RequireFromString("0.5"), Days: 16, TotalDays: 31}, moduleLabel, 8).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(invoice.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(invoice.Items))
	}
	if got := invoice.Items[0].SubtotalHtva; got != 48000 {
		t.Fatalf("core subtotal = %d, want 48000", got)
	}
	if got := invoice.Items[1].SubtotalHtva; got != 10000 {
		t.Fatalf("module subtotal = %d, want 10000", got)
	}
	if invoice.SubtotalHtva != 58000 {
		t.Fatalf("invoice subtotal = %d, want 58000", invoice.SubtotalHtva)
	}
	if invoice.VatAmount != 12180 {
		t.Fatalf("invoice vat = %d, want 12180", invoice.VatAmount)
	}
	if invoice.TotalTtc != 70180 {
		t.Fatalf("invoice total = %d, want 70180", invoice.TotalTtc)
	}
	if !invoice.VatRate.Equal(decimal.RequireFromString("0.21")) {
		t.Fatalf("vat rate = %s, want 0.21", invoice.VatRate)
	}
}

func TestBuilderTotalsEqualItemSums(t *testing.T) {
	t.Parallel()

	invoice, err := NewBuilder(NewStrategyFactory(nil)).
		ForFinancer("fin-1").
		ForPeriod(date(2025, 3, 1), date(2025, 3, 31)).
		WithCountry("PT").
		AddCorePackageItem(3333, 7, Prorata{Percentage: decimal.RequireFromString("0.55"), Days: 17, TotalDays: 31}, coreLabel, 7).
		AddModuleItem("mod-1", 999, 3, Prorata{Percentage: decimal.RequireFromString("0.33"), Days: 10, TotalDays: 31}, moduleLabel, 3).
		AddCreditAdjustment("adj-1", 2500, map[string]string{"en": "Goodwill credit"}).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var subtotal, vat, total int64
	for _, item := range invoice.Items {
		subtotal += item.SubtotalHtva
		vat += item.VatAmount
		total += item.TotalTtc
		if item.TotalTtc != item.SubtotalHtva+item.VatAmount {
			t.Fatalf("item %s total %d != subtotal %d + vat %d", item.ItemType, item.TotalTtc, item.SubtotalHtva, item.VatAmount)
		}
	}
	if invoice.SubtotalHtva != subtotal || invoice.VatAmount != vat || invoice.TotalTtc != total {
		t.Fatalf("invoice totals (%d, %d, %d) drift from item sums (%d, %d, %d)",
			invoice.SubtotalHtva, invoice.VatAmount, invoice.TotalTtc, subtotal, vat, total)
	}
}

func TestBuilderCreditAdjustmentReducesInvoice(t *testing.T) {
	t.Parallel()

	invoice, err := NewBuilder(NewStrategyFactory(nil)).
		ForFinancer("fin-1").
		ForPeriod(date(2025, 10, 1), date(2025, 10, 31)).
		WithCountry("BE").
		AddCorePackageItem(1000, 10, Prorata{Percentage: decimal.NewFromInt(1), Days: 31, TotalDays: 31}, coreLabel, 10).
		AddCreditAdjustment("adj-1", 4000, map[string]string{"en": "Credit"}).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	credit := invoice.Items[1]
	if credit.SubtotalHtva != -4000 {
		t.Fatalf("credit subtotal = %d, want -4000", credit.SubtotalHtva)
	}
	if credit.VatAmount != -840 {
		t.Fatalf("credit vat = %d, want -840", credit.VatAmount)
	}
	if invoice.SubtotalHtva != 6000 {
		t.Fatalf("invoice subtotal = %d, want 6000", invoice.SubtotalHtva)
	}
	if invoice.TotalTtc != 7260 {
		t.Fatalf("invoice total = %d, want 7260", invoice.TotalTtc)
	}
}

func TestBuilderVatRateOverride(t *testing.T) {
	t.Parallel()

	invoice, err := NewBuilder(NewStrategyFactory(nil)).
		ForDivision("div-1").
		ForPeriod(date(2025, 10, 1), date(2025, 10, 31)).
		WithCountry("BE").
		WithVatRate(decimal.RequireFromString("0.06")).
		AddCorePackageItem(1000, 10, Prorata{Percentage: decimal.NewFromInt(1)}, coreLabel, 10).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !invoice.VatRate.Equal(decimal.RequireFromString("0.06")) {
		t.Fatalf("vat rate = %s, want 0.06", invoice.VatRate)
	}
	if invoice.VatAmount != 600 {
		t.Fatalf("vat amount = %d, want 600", invoice.VatAmount)
	}
}

func TestBuilderValidationFailures(t *testing.T) {
	t.Parallel()

	period := func(b *Builder) *Builder {
		return b.ForPeriod(date(2025, 10, 1), date(2025, 10, 31))
	}

	tests := []struct {
		name    string
		build   func() (*domain.CreateInvoice, error)
		wantMsg string
	}{
		{
			name: "negative quantity",
			build: func() (*domain.CreateInvoice, error) {
				return period(NewBuilder(nil).ForDivision("d")).
					AddCorePackageItem(1000, -1, Prorata{Percentage: decimal.NewFromInt(1)}, coreLabel, 0).
					Build()
			},
			wantMsg: "quantity must be non-negative",
		},
		{
			name: "prorata above one",
			build: func() (*domain.CreateInvoice, error) {
				return period(NewBuilder(nil).ForDivision("d")).
					AddCorePackageItem(1000, 1, Prorata{Percentage: decimal.RequireFromString("1.01")}, coreLabel, 1).
					Build()
			},
			wantMsg: "outside [0, 1]",
		},
		{
			name: "negative prorata",
			build: func() (*domain.CreateInvoice, error) {
				return period(NewBuilder(nil).ForFinancer("f")).
					AddModuleItem("m", 1000, 1, Prorata{Percentage: decimal.RequireFromString("-0.1")}, moduleLabel, 1).
					Build()
			},
			wantMsg: "outside [0, 1]",
		},
		{
			name: "recipient set twice",
			build: func() (*domain.CreateInvoice, error) {
				return period(NewBuilder(nil).ForDivision("d").ForFinancer("f")).
					AddCorePackageItem(1000, 1, Prorata{Percentage: decimal.NewFromInt(1)}, coreLabel, 1).
					Build()
			},
			wantMsg: "recipient set more than once",
		},
		{
			name: "missing recipient",
			build: func() (*domain.CreateInvoice, error) {
				return period(NewBuilder(nil)).
					AddCorePackageItem(1000, 1, Prorata{Percentage: decimal.NewFromInt(1)}, coreLabel, 1).
					Build()
			},
			wantMsg: "recipient is required",
		},
		{
			name: "missing period",
			build: func() (*domain.CreateInvoice, error) {
				return NewBuilder(nil).ForDivision("d").
					AddCorePackageItem(1000, 1, Prorata{Percentage: decimal.NewFromInt(1)}, coreLabel, 1).
					Build()
			},
			wantMsg: "billing period is required",
		},
		{
			name: "period end before start",
			build: func() (*domain.CreateInvoice, error) {
				return NewBuilder(nil).ForDivision("d").
					ForPeriod(date(2025, 10, 31), date(2025, 10, 1)).
					AddCorePackageItem(1000, 1, Prorata{Percentage: decimal.NewFromInt(1)}, coreLabel, 1).
					Build()
			},
			wantMsg: "period end precedes start",
		},
		{
			name: "no items",
			build: func() (*domain.CreateInvoice, error) {
				return period(NewBuilder(nil).ForDivision("d")).Build()
			},
			wantMsg: "at least one item",
		},
		{
			name: "non-positive credit",
			build: func() (*domain.CreateInvoice, error) {
				return period(NewBuilder(nil).ForFinancer("f")).
					AddCreditAdjustment("adj", 0, nil).
					Build()
			},
			wantMsg: "credit amount must be positive",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.build()
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Build() error = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("Build() error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestBuilderUnknownCountryUsesFallbackRate(t *testing.T) {
	t.Parallel()

	invoice, err := NewBuilder(NewStrategyFactory(nil)).
		ForDivision("d").
		ForPeriod(date(2025, 10, 1), date(2025, 10, 31)).
		WithCountry("XX").
		AddCorePackageItem(1000, 10, Prorata{Percentage: decimal.NewFromInt(1)}, coreLabel, 10).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !invoice.VatRate.Equal(decimal.RequireFromString("0.20")) {
		t.Fatalf("vat rate = %s, want fallback 0.20", invoice.VatRate)
	}
}

package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundHalfUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{name: "exact", input: "100", want: 100},
		{name: "below half", input: "100.4", want: 100},
		{name: "half rounds up", input: "100.5", want: 101},
		{name: "above half", input: "100.6", want: 101},
		{name: "negative half away from zero", input: "-100.5", want: -101},
		{name: "negative below half", input: "-100.4", want: -100},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := RoundHalfUp(decimal.RequireFromString(tt.input)); got != tt.want {
				t.Fatalf("RoundHalfUp(%s) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestItemSubtotal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		unitPrice int64
		quantity  int
		prorata   string
		want      int64
	}{
		{name: "full month core package", unitPrice: 4000, quantity: 12, prorata: "1", want: 48000},
		{name: "half month module", unitPrice: 2500, quantity: 8, prorata: "0.5", want: 10000},
		{name: "rounding on odd fraction", unitPrice: 999, quantity: 1, prorata: "0.33", want: 330},
		{name: "half cent rounds up", unitPrice: 25, quantity: 1, prorata: "0.5", want: 13},
		{name: "zero quantity", unitPrice: 4000, quantity: 0, prorata: "1", want: 0},
		{name: "negative credit base", unitPrice: -5000, quantity: 1, prorata: "1", want: -5000},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ItemSubtotal(tt.unitPrice, tt.quantity, decimal.RequireFromString(tt.prorata))
			if got != tt.want {
				t.Fatalf("ItemSubtotal() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVatOf(t *testing.T) {
	t.Parallel()

	if got := VatOf(58000, decimal.RequireFromString("0.21")); got != 12180 {
		t.Fatalf("VatOf(58000, 0.21) = %d, want 12180", got)
	}
	if got := VatOf(-5000, decimal.RequireFromString("0.21")); got != -1050 {
		t.Fatalf("VatOf(-5000, 0.21) = %d, want -1050", got)
	}
	if got := VatOf(0, decimal.RequireFromString("0.20")); got != 0 {
		t.Fatalf("VatOf(0, 0.20) = %d, want 0", got)
	}
}
